// Package storage maps notes to individual files directly under a
// relocatable storage root.
package storage

import (
	"context"

	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/trash"
)

// Ext is the extension of note files.
const Ext = ".md"

// Provider is the interface for note file operations.
type Provider interface {
	// List decodes every note file directly under the storage root.
	// Unreadable files are logged and skipped.
	List(ctx context.Context) ([]models.Note, error)
	// Get reads a single note.
	Get(ctx context.Context, id string) (*models.Note, error)
	// Save encodes the note and overwrites <root>/<id>.md.
	Save(ctx context.Context, note models.Note) error
	// Delete moves the note file to the trash.
	Delete(ctx context.Context, id string) error

	// Trashed lists recoverable deleted notes.
	Trashed(ctx context.Context) ([]trash.Entry, error)
	// Restore moves a trashed note back to where it was deleted from.
	Restore(ctx context.Context, trashID int64) (*trash.Entry, error)

	StorageRoot() string
	// SetStorageRoot creates path if needed, persists it and switches to it.
	SetStorageRoot(ctx context.Context, path string) error
	// ResetStorageRoot returns to the default root and forgets the override.
	ResetStorageRoot(ctx context.Context) error

	// LastWritten returns the checksum of the most recent Save of id through
	// this provider, so callers can recognise their own writes.
	LastWritten(id string) (string, bool)
}

// Bin is the trash the provider hands deleted files to.
type Bin interface {
	Trash(ctx context.Context, path, noteID, title string) (*trash.Entry, error)
	List(ctx context.Context) ([]trash.Entry, error)
	Restore(ctx context.Context, id int64) (*trash.Entry, error)
}
