// Package settings persists the small key-value record the application keeps
// outside the notes directory (for example the chosen notes directory).
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// KeyNotesDir holds the absolute path of the storage root.
const KeyNotesDir = "notesDir"

// Record is a key-value configuration document.
type Record interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// File is a Record stored as a flat YAML mapping. A missing file reads as empty.
type File struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

// Open loads the document at path. A missing file is not an error.
func Open(path string) (*File, error) {
	f := &File{path: path, values: map[string]string{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return f, nil
	}
	if err := yaml.Unmarshal(data, &f.values); err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	if f.values == nil {
		f.values = map[string]string{}
	}
	return f, nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Get returns the value for key.
func (f *File) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

// Set stores value under key and writes the document.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.values[key]
	f.values[key] = value
	if err := f.flush(); err != nil {
		if had {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

// Delete removes key and writes the document.
func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.values[key]
	if !had {
		return nil
	}
	delete(f.values, key)
	if err := f.flush(); err != nil {
		f.values[key] = prev
		return err
	}
	return nil
}

// flush writes the document atomically: tmp file, fsync, rename.
func (f *File) flush() error {
	data, err := yaml.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("settings: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-tmp-*")
	if err != nil {
		return fmt.Errorf("settings: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("settings: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("settings: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("settings: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("settings: rename: %w", err)
	}
	return nil
}

// Memory is an in-process Record, handy for tests and ephemeral runs.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemory returns an empty in-memory record.
func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

var (
	_ Record = (*File)(nil)
	_ Record = (*Memory)(nil)
)
