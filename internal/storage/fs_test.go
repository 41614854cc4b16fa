package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/checksum"
	"github.com/starford/inkwell/internal/codec"
	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/settings"
	"github.com/starford/inkwell/internal/trash"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tempStore(t *testing.T) (*FS, settings.Record) {
	t.Helper()
	base := t.TempDir()
	bin, err := trash.Open(filepath.Join(base, "state", "trash.db"))
	if err != nil {
		t.Fatalf("trash.Open: %v", err)
	}
	t.Cleanup(func() { _ = bin.Close() })

	rec := settings.NewMemory()
	fs, err := NewFS(rec, bin, filepath.Join(base, "notes"), quietLogger())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs, rec
}

func note(id, title, content string) models.Note {
	ts := time.Date(2025, 5, 4, 12, 0, 0, 0, time.UTC)
	return models.Note{ID: id, Title: title, Filename: id, Content: content, CreatedAt: ts, UpdatedAt: ts}
}

func TestNewFS_CreatesDefaultRoot(t *testing.T) {
	s, _ := tempStore(t)
	info, err := os.Stat(s.StorageRoot())
	if err != nil || !info.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
}

func TestNewFS_UsesPersistedRoot(t *testing.T) {
	base := t.TempDir()
	custom := filepath.Join(base, "custom")
	rec := settings.NewMemory()
	_ = rec.Set(settings.KeyNotesDir, custom)

	s, err := NewFS(rec, nil, filepath.Join(base, "default"), quietLogger())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if s.StorageRoot() != custom {
		t.Errorf("root = %q, want %q", s.StorageRoot(), custom)
	}
}

func TestSaveAndGet(t *testing.T) {
	s, _ := tempStore(t)
	ctx := context.Background()
	n := note("abc", "Hello", "# Hello\nWorld\n")
	if err := s.Save(ctx, n); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(s.StorageRoot(), "abc.md"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(raw) != string(codec.Encode(n)) {
		t.Errorf("file = %q", raw)
	}

	got, err := s.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Hello" || got.Content != n.Content || got.Filename != "abc" {
		t.Errorf("got %+v", got)
	}
	if !got.CreatedAt.Equal(n.CreatedAt) || !got.UpdatedAt.Equal(n.UpdatedAt) {
		t.Errorf("timestamps = %v / %v", got.CreatedAt, got.UpdatedAt)
	}

	cs, ok := s.LastWritten("abc")
	if !ok || cs != checksum.Sum(raw) {
		t.Errorf("LastWritten = %q, %v", cs, ok)
	}
}

func TestGet_NotFound(t *testing.T) {
	s, _ := tempStore(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestList_SkipsNonNotes(t *testing.T) {
	s, _ := tempStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, note("a", "A", "a"))
	_ = s.Save(ctx, note("b", "B", "b"))
	root := s.StorageRoot()
	_ = os.WriteFile(filepath.Join(root, "readme.txt"), []byte("not md"), 0o644)
	_ = os.WriteFile(filepath.Join(root, ".hidden.md"), []byte("hidden"), 0o644)
	_ = os.MkdirAll(filepath.Join(root, "sub"), 0o755)
	_ = os.WriteFile(filepath.Join(root, "sub", "nested.md"), []byte("nested"), 0o644)

	items, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	if items[0].ID != "a" || items[1].ID != "b" {
		t.Errorf("ids = %q, %q", items[0].ID, items[1].ID)
	}
}

func TestList_HeaderlessFile(t *testing.T) {
	s, _ := tempStore(t)
	p := filepath.Join(s.StorageRoot(), "stray.md")
	if err := os.WriteFile(p, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}
	items, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len = %d", len(items))
	}
	n := items[0]
	if n.ID != "stray" || n.Filename != "stray" || n.Title != "" || n.Content != "plain text" {
		t.Errorf("note = %+v", n)
	}
	if n.CreatedAt.IsZero() || n.UpdatedAt.Before(n.CreatedAt) {
		t.Errorf("timestamps = %v / %v", n.CreatedAt, n.UpdatedAt)
	}
	if n.DisplayName() != "stray" {
		t.Errorf("display = %q", n.DisplayName())
	}
}

func TestList_MissingRoot(t *testing.T) {
	s, _ := tempStore(t)
	_ = os.RemoveAll(s.StorageRoot())
	items, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len = %d", len(items))
	}
}

func TestInvalidIDsRejected(t *testing.T) {
	s, _ := tempStore(t)
	ctx := context.Background()
	for _, id := range []string{"", ".", "..", "../escape", "a/b", `a\b`, ".hidden"} {
		if err := s.Save(ctx, note(id, "x", "x")); !errors.Is(err, apperr.ErrInvalidID) {
			t.Errorf("Save(%q) err = %v", id, err)
		}
		if _, err := s.Get(ctx, id); !errors.Is(err, apperr.ErrInvalidID) {
			t.Errorf("Get(%q) err = %v", id, err)
		}
	}
}

func TestDeleteMovesToTrash(t *testing.T) {
	s, _ := tempStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, note("gone", "Gone", "bye"))

	if err := s.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "gone"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after delete: %v", err)
	}
	if _, ok := s.LastWritten("gone"); ok {
		t.Error("checksum should be forgotten")
	}

	entries, err := s.Trashed(ctx)
	if err != nil {
		t.Fatalf("Trashed: %v", err)
	}
	if len(entries) != 1 || entries[0].NoteID != "gone" || entries[0].Title != "Gone" {
		t.Fatalf("entries = %+v", entries)
	}

	if _, err := s.Restore(ctx, entries[0].ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, err := s.Get(ctx, "gone")
	if err != nil || got.Content != "bye" {
		t.Errorf("restored = %+v, %v", got, err)
	}
}

func TestDelete_Missing(t *testing.T) {
	s, _ := tempStore(t)
	if err := s.Delete(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestSetStorageRoot(t *testing.T) {
	s, rec := tempStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, note("old", "Old", "old"))

	next := filepath.Join(t.TempDir(), "elsewhere", "notes")
	if err := s.SetStorageRoot(ctx, next); err != nil {
		t.Fatalf("SetStorageRoot: %v", err)
	}
	if s.StorageRoot() != next {
		t.Errorf("root = %q", s.StorageRoot())
	}
	if v, _ := rec.Get(settings.KeyNotesDir); v != next {
		t.Errorf("persisted = %q", v)
	}
	items, _ := s.List(ctx)
	if len(items) != 0 {
		t.Errorf("new root should be empty, got %d", len(items))
	}

	if err := s.ResetStorageRoot(ctx); err != nil {
		t.Fatalf("ResetStorageRoot: %v", err)
	}
	if s.StorageRoot() != s.DefaultRoot() {
		t.Errorf("root = %q, want default", s.StorageRoot())
	}
	if _, ok := rec.Get(settings.KeyNotesDir); ok {
		t.Error("override should be cleared")
	}
	items, _ = s.List(ctx)
	if len(items) != 1 || items[0].ID != "old" {
		t.Errorf("items = %+v", items)
	}
}

func TestSetStorageRoot_CreateFails(t *testing.T) {
	s, rec := tempStore(t)
	before := s.StorageRoot()

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.SetStorageRoot(context.Background(), filepath.Join(blocker, "notes")); !errors.Is(err, apperr.ErrRootUnavailable) {
		t.Fatalf("err = %v, want ErrRootUnavailable", err)
	}
	if s.StorageRoot() != before {
		t.Errorf("root changed to %q", s.StorageRoot())
	}
	if _, ok := rec.Get(settings.KeyNotesDir); ok {
		t.Error("failed switch must not be persisted")
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s, _ := tempStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, note("atomic", "v1", "original"))
	if err := s.Save(ctx, note("atomic", "v2", "updated")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := s.Get(ctx, "atomic")
	if got.Content != "updated" {
		t.Errorf("content = %q", got.Content)
	}
	matches, _ := filepath.Glob(filepath.Join(s.StorageRoot(), ".inkwell-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestResolveRoot_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	got, err := ResolveRoot("~/inkwell-notes")
	if err != nil {
		t.Fatalf("ResolveRoot: %v", err)
	}
	if got != filepath.Join(home, "inkwell-notes") {
		t.Errorf("got %q", got)
	}
}
