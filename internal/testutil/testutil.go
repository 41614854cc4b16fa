// Package testutil provides shared test helpers for setting up note stores.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/settings"
	"github.com/starford/inkwell/internal/storage"
	"github.com/starford/inkwell/internal/trash"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestBin opens a trash ledger in a temporary directory.
func TestBin(t *testing.T) *trash.Bin {
	t.Helper()
	bin, err := trash.Open(filepath.Join(t.TempDir(), "trash.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bin.Close() })
	return bin
}

// TestStore creates a file-backed store rooted in a temporary directory.
// The returned path is the default notes root.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "notes")
	store, err := storage.NewFS(settings.NewMemory(), TestBin(t), root, Logger())
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// FlakyStore wraps a Provider and fails Save or Delete while told to.
type FlakyStore struct {
	storage.Provider

	mu         sync.Mutex
	saveErr    error
	deleteErr  error
	saves      int
	beforeSave func(models.Note)
}

// NewFlakyStore wraps p.
func NewFlakyStore(p storage.Provider) *FlakyStore {
	return &FlakyStore{Provider: p}
}

// FailSaves makes every Save return err until called again with nil.
func (f *FlakyStore) FailSaves(err error) {
	f.mu.Lock()
	f.saveErr = err
	f.mu.Unlock()
}

// FailDeletes makes every Delete return err until called again with nil.
func (f *FlakyStore) FailDeletes(err error) {
	f.mu.Lock()
	f.deleteErr = err
	f.mu.Unlock()
}

// BeforeSave registers a hook that runs inside Save before the write.
func (f *FlakyStore) BeforeSave(fn func(models.Note)) {
	f.mu.Lock()
	f.beforeSave = fn
	f.mu.Unlock()
}

// Saves returns how many Save calls reached the underlying store.
func (f *FlakyStore) Saves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *FlakyStore) Save(ctx context.Context, n models.Note) error {
	f.mu.Lock()
	err, hook := f.saveErr, f.beforeSave
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.saves++
	f.mu.Unlock()
	return f.Provider.Save(ctx, n)
}

func (f *FlakyStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	err := f.deleteErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Provider.Delete(ctx, id)
}
