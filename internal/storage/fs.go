package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/checksum"
	"github.com/starford/inkwell/internal/codec"
	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/settings"
	"github.com/starford/inkwell/internal/trash"
)

// FS implements Provider on the local file system.
type FS struct {
	record      settings.Record
	bin         Bin
	defaultRoot string
	logger      *slog.Logger

	mu      sync.RWMutex
	root    string            // absolute path of the current storage root
	written map[string]string // id -> checksum of our last write
}

// NewFS resolves the storage root from the settings record (falling back to
// defaultRoot) and makes sure it exists. Failing to create the directory is
// logged, not fatal: listing simply comes back empty.
func NewFS(record settings.Record, bin Bin, defaultRoot string, logger *slog.Logger) (*FS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	def, err := ResolveRoot(defaultRoot)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve default root: %w", err)
	}
	f := &FS{
		record:      record,
		bin:         bin,
		defaultRoot: def,
		logger:      logger,
		written:     make(map[string]string),
	}

	root := def
	if v, ok := record.Get(settings.KeyNotesDir); ok && v != "" {
		if r, err := ResolveRoot(v); err == nil {
			root = r
		} else {
			logger.Warn("storage: ignoring configured notes dir",
				slog.String("notes_dir", v), slog.String("error", err.Error()))
		}
	}
	f.root = root

	if err := os.MkdirAll(root, 0o755); err != nil {
		logger.Error("storage: create notes dir failed",
			slog.String("root", root), slog.String("error", err.Error()))
	}
	return f, nil
}

// ResolveRoot expands a leading ~ and makes path absolute.
func ResolveRoot(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("storage: empty root path")
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("storage: expand %s: %w", path, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("storage: resolve %s: %w", path, err)
	}
	return abs, nil
}

// StorageRoot returns the directory currently read from and written to.
func (f *FS) StorageRoot() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.root
}

// DefaultRoot returns the root used when no override is persisted.
func (f *FS) DefaultRoot() string { return f.defaultRoot }

// notePath validates id and returns <root>/<id>.md. Ids are plain file stems:
// anything that could name another directory is rejected.
func (f *FS) notePath(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return filepath.Join(f.StorageRoot(), id+Ext), nil
}

// ValidateID rejects ids that are empty, hidden, or contain path elements.
func ValidateID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return apperr.ErrInvalidID
	case strings.ContainsAny(id, `/\`), strings.ContainsRune(id, 0):
		return apperr.ErrInvalidID
	case strings.HasPrefix(id, "."):
		return apperr.ErrInvalidID
	}
	return nil
}

// List reads every *.md file directly under the root, in directory order.
func (f *FS) List(ctx context.Context) ([]models.Note, error) {
	root := f.StorageRoot()
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("storage: notes dir missing", slog.String("root", root))
			return []models.Note{}, nil
		}
		return nil, fmt.Errorf("storage: list %s: %w", root, err)
	}

	out := make([]models.Note, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != Ext {
			continue
		}
		p := filepath.Join(root, name)
		data, err := os.ReadFile(p)
		if err != nil {
			f.logger.Warn("storage: skipping unreadable note",
				slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		var modTime time.Time
		if info, err := e.Info(); err == nil {
			modTime = info.ModTime()
		}
		out = append(out, noteFromFile(strings.TrimSuffix(name, Ext), data, modTime))
	}
	return out, nil
}

// Get reads and decodes a single note.
func (f *FS) Get(_ context.Context, id string) (*models.Note, error) {
	p, err := f.notePath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("storage: read %s: %w", id, err)
	}
	var modTime time.Time
	if info, err := os.Stat(p); err == nil {
		modTime = info.ModTime()
	}
	n := noteFromFile(id, data, modTime)
	return &n, nil
}

// noteFromFile decodes file contents. Missing timestamps fall back to the
// file's modification time and UpdatedAt is never earlier than CreatedAt.
func noteFromFile(id string, data []byte, modTime time.Time) models.Note {
	d := codec.Decode(data, id)
	n := models.Note{
		ID:        id,
		Title:     d.Meta.Title,
		Filename:  d.Meta.Filename,
		Content:   d.Body,
		CreatedAt: d.Meta.CreatedAt,
		UpdatedAt: d.Meta.UpdatedAt,
	}
	modTime = modTime.UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = modTime
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = modTime
	}
	if n.UpdatedAt.Before(n.CreatedAt) {
		n.UpdatedAt = n.CreatedAt
	}
	return n
}

// Save encodes the note and overwrites its file.
func (f *FS) Save(_ context.Context, note models.Note) error {
	p, err := f.notePath(note.ID)
	if err != nil {
		return err
	}
	data := codec.Encode(note)
	if err := writeAtomic(p, data); err != nil {
		return err
	}
	f.mu.Lock()
	f.written[note.ID] = checksum.Sum(data)
	f.mu.Unlock()
	return nil
}

// writeAtomic writes content: tmp file → fsync → rename.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".inkwell-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete moves the note file to the trash; it is never unlinked.
func (f *FS) Delete(ctx context.Context, id string) error {
	p, err := f.notePath(id)
	if err != nil {
		return err
	}
	title := ""
	if data, err := os.ReadFile(p); err == nil {
		title = codec.Decode(data, id).Meta.Title
	}
	if _, err := f.bin.Trash(ctx, p, id, title); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("storage: delete %s: %w", id, err)
	}
	f.mu.Lock()
	delete(f.written, id)
	f.mu.Unlock()
	return nil
}

// Trashed lists trash entries across all roots.
func (f *FS) Trashed(ctx context.Context) ([]trash.Entry, error) {
	return f.bin.List(ctx)
}

// Restore puts a trashed file back at its origin path.
func (f *FS) Restore(ctx context.Context, trashID int64) (*trash.Entry, error) {
	return f.bin.Restore(ctx, trashID)
}

// SetStorageRoot switches to path. The directory is created first; if that or
// persisting the choice fails, the current root stays in effect.
func (f *FS) SetStorageRoot(_ context.Context, path string) error {
	abs, err := ResolveRoot(path)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrRootUnavailable, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("storage: create notes dir %s: %w: %w", abs, apperr.ErrRootUnavailable, err)
	}
	if err := f.record.Set(settings.KeyNotesDir, abs); err != nil {
		return fmt.Errorf("storage: persist notes dir: %w", err)
	}
	f.switchTo(abs)
	f.logger.Info("storage: root changed", slog.String("root", abs))
	return nil
}

// ResetStorageRoot switches back to the default root.
func (f *FS) ResetStorageRoot(_ context.Context) error {
	if err := os.MkdirAll(f.defaultRoot, 0o755); err != nil {
		return fmt.Errorf("storage: create notes dir %s: %w: %w", f.defaultRoot, apperr.ErrRootUnavailable, err)
	}
	if err := f.record.Delete(settings.KeyNotesDir); err != nil {
		return fmt.Errorf("storage: clear notes dir: %w", err)
	}
	f.switchTo(f.defaultRoot)
	f.logger.Info("storage: root reset", slog.String("root", f.defaultRoot))
	return nil
}

func (f *FS) switchTo(root string) {
	f.mu.Lock()
	f.root = root
	f.written = make(map[string]string)
	f.mu.Unlock()
}

// LastWritten returns the checksum of our last write of id.
func (f *FS) LastWritten(id string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	cs, ok := f.written[id]
	return cs, ok
}

var _ Provider = (*FS)(nil)
