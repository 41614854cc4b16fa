package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/inkwell/internal/apperr"
)

const maxBody = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decode reads a JSON body into v and validates it when v knows how. An
// empty body leaves v zero. It writes the 400 response itself and reports
// whether to continue.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if vv, ok := v.(validation.Validatable); ok {
		if err := vv.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return false
		}
	}
	return true
}

// statusOf maps domain errors to HTTP statuses; ok is false for errors that
// are not the caller's fault.
func statusOf(err error) (status int, msg string, ok bool) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not found", true
	case errors.Is(err, apperr.ErrInvalidID):
		return http.StatusBadRequest, apperr.ErrInvalidID.Error(), true
	case errors.Is(err, apperr.ErrEmptyInput):
		return http.StatusBadRequest, apperr.ErrEmptyInput.Error(), true
	case errors.Is(err, apperr.ErrAlreadyExists):
		return http.StatusConflict, apperr.ErrAlreadyExists.Error(), true
	case errors.Is(err, apperr.ErrSessionChanged):
		return http.StatusConflict, apperr.ErrSessionChanged.Error(), true
	case errors.Is(err, apperr.ErrRootUnavailable):
		// The message names the path that failed.
		return http.StatusUnprocessableEntity, err.Error(), true
	case errors.Is(err, apperr.ErrDiscardDeclined):
		return http.StatusConflict, apperr.ErrDiscardDeclined.Error(), true
	case errors.Is(err, apperr.ErrNoSession):
		return http.StatusConflict, apperr.ErrNoSession.Error(), true
	case errors.Is(err, apperr.ErrWorkflowActive):
		return http.StatusConflict, apperr.ErrWorkflowActive.Error(), true
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusConflict, apperr.ErrInvalidTransition.Error(), true
	case errors.Is(err, apperr.ErrNoWorkflow):
		return http.StatusNotFound, apperr.ErrNoWorkflow.Error(), true
	case errors.Is(err, apperr.ErrNoCredential):
		return http.StatusPreconditionRequired, apperr.ErrNoCredential.Error(), true
	case errors.Is(err, apperr.ErrInvalidCredential):
		return http.StatusUnprocessableEntity, apperr.ErrInvalidCredential.Error(), true
	}
	return http.StatusInternalServerError, "internal error", false
}

// writeError answers with the status for err, logging anything unexpected.
func writeError(w http.ResponseWriter, op string, err error) {
	status, msg, ok := statusOf(err)
	if !ok {
		slog.Error(op+" failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody(msg))
}
