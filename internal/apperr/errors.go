// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidID         = errors.New("invalid note id")
	ErrAlreadyExists     = errors.New("already exists")
	ErrDiscardDeclined   = errors.New("unsaved changes: discard declined")
	ErrNoSession         = errors.New("no open session")
	ErrSessionChanged    = errors.New("note changed since the edit was prepared")
	ErrNoCredential      = errors.New("credential required")
	ErrInvalidCredential = errors.New("credential rejected by provider")
	ErrWorkflowActive    = errors.New("inline transform already active")
	ErrNoWorkflow        = errors.New("no inline transform")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrEmptyInput        = errors.New("empty input")
	ErrRootUnavailable   = errors.New("storage root unavailable")
)
