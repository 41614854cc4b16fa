package api

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/inkwell/internal/chat"
	"github.com/starford/inkwell/internal/editor"
	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/notes"
	"github.com/starford/inkwell/internal/selection"
	"github.com/starford/inkwell/internal/transform"
	"github.com/starford/inkwell/internal/trash"
)

// maxTitle bounds titles in runes.
const maxTitle = 1024

// NoteListResponse is the collection with the current selection.
type NoteListResponse struct {
	Notes    []models.Note `json:"notes"`
	Selected string        `json:"selected"`
	Total    int           `json:"total"`
}

// PatchNoteRequest updates a note directly. At least one field is required.
type PatchNoteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// Validate implements validation.Validatable.
func (r PatchNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title,
			validation.When(r.Content == nil, validation.NotNil.Error("title or content is required")),
			validation.RuneLength(0, maxTitle)),
	)
}

// Patch converts the request to the domain patch.
func (r PatchNoteRequest) Patch() models.NotePatch {
	return models.NotePatch{Title: r.Title, Content: r.Content}
}

// TrashResponse lists trashed notes.
type TrashResponse struct {
	Entries []trash.Entry `json:"entries"`
}

// RestoreResponse is the restored note; Note is nil when it went back to a
// storage root other than the current one.
type RestoreResponse struct {
	Note *models.Note `json:"note"`
}

// TabsResponse is the open note set.
type TabsResponse struct {
	Tabs     []string `json:"tabs"`
	Selected string   `json:"selected"`
}

// SessionResponse is the open editor session and, after cursor-moving
// operations, where the cursor landed.
type SessionResponse struct {
	Session notes.Session    `json:"session"`
	Cursor  *editor.Position `json:"cursor,omitempty"`
}

// TitleRequest replaces the title draft.
type TitleRequest struct {
	Title string `json:"title"`
}

// Validate implements validation.Validatable.
func (r TitleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.RuneLength(0, maxTitle)),
	)
}

// ContentRequest replaces the content draft.
type ContentRequest struct {
	Content string `json:"content"`
}

// EditRequest replaces a range of the content draft.
type EditRequest struct {
	NoteID string       `json:"note_id"`
	Range  editor.Range `json:"range"`
	Text   string       `json:"text"`
}

// Validate implements validation.Validatable.
func (r EditRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Range, validation.By(validRange)),
	)
}

// SelectionRequest reports the editor selection and geometry.
type SelectionRequest struct {
	Range    editor.Range       `json:"range"`
	Cursor   editor.Position    `json:"cursor"`
	Viewport selection.Viewport `json:"viewport"`
}

// Validate implements validation.Validatable.
func (r SelectionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Range, validation.By(validRange)),
		validation.Field(&r.Cursor, validation.By(validPosition)),
	)
}

// SelectionResponse is the projected selection control.
type SelectionResponse struct {
	Selection selection.Snapshot `json:"selection"`
	Changed   bool               `json:"changed"`
}

func validPosition(v any) error {
	p, _ := v.(editor.Position)
	if p.Line < 0 || p.Column < 0 {
		return errors.New("line and column must not be negative")
	}
	return nil
}

func validRange(v any) error {
	r, _ := v.(editor.Range)
	if err := validPosition(r.Start); err != nil {
		return err
	}
	return validPosition(r.End)
}

// StorageRootRequest switches the storage root.
type StorageRootRequest struct {
	Path string `json:"path"`
}

// Validate implements validation.Validatable.
func (r StorageRootRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
	)
}

// StorageRootResponse is the current storage root.
type StorageRootResponse struct {
	Path string `json:"path"`
}

// CredentialRequest registers or replaces the provider key.
type CredentialRequest struct {
	APIKey string `json:"api_key"`
}

// Validate implements validation.Validatable.
func (r CredentialRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.APIKey, validation.Required, validation.Length(1, 512)),
	)
}

// CredentialResponse reports whether a key is registered. The key itself is
// never returned.
type CredentialResponse struct {
	Registered bool `json:"registered"`
}

// ChatResponse is the conversation and the pending snippets.
type ChatResponse struct {
	Messages []chat.Message `json:"messages"`
	Snippets []chat.Snippet `json:"snippets"`
}

// ChatMessageRequest sends one message.
type ChatMessageRequest struct {
	Text string `json:"text"`
}

// Validate implements validation.Validatable.
func (r ChatMessageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required),
	)
}

// SnippetRequest adds selected text to the chat. An empty Text takes the
// last tracked selection.
type SnippetRequest struct {
	Text string `json:"text"`
}

// TransformBeginRequest opens the inline transform.
type TransformBeginRequest struct {
	Surface string `json:"surface"`
}

// TransformSubmitRequest sends the instruction.
type TransformSubmitRequest struct {
	Surface     string `json:"surface"`
	Instruction string `json:"instruction"`
	// Wait blocks the response until the reply arrives or fails.
	Wait bool `json:"wait"`
}

// TransformSurfaceRequest names the surface for apply and cancel.
type TransformSurfaceRequest struct {
	Surface string `json:"surface"`
}

// TransformResponse is the workflow state.
type TransformResponse = transform.State
