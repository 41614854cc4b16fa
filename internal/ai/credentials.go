package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/peterbourgon/diskv/v3"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/models"
)

const credentialKey = "api_key.json"

type credentialFile struct {
	APIKey string `json:"apiKey"`
}

// Validator checks a key before it is stored.
type Validator func(ctx context.Context, key string) error

// TrialValidator validates with a throwaway client that is never kept.
func TrialValidator(s Settings, logger *slog.Logger) Validator {
	return func(ctx context.Context, key string) error {
		return NewClient(key, s, logger).Ping(ctx)
	}
}

// CredentialStore keeps the API key on disk.
type CredentialStore struct {
	kv       *diskv.Diskv
	validate Validator
}

// OpenCredentials stores the key under dir.
func OpenCredentials(dir string, validate Validator) *CredentialStore {
	return &CredentialStore{
		kv: diskv.New(diskv.Options{
			BasePath:     dir,
			CacheSizeMax: 4 * 1024,
			PathPerm:     0o700,
			FilePerm:     0o600,
		}),
		validate: validate,
	}
}

// HasCredential reports whether a non-empty key is stored.
func (s *CredentialStore) HasCredential() bool {
	_, ok := s.Load()
	return ok
}

// Load returns the stored key.
func (s *CredentialStore) Load() (string, bool) {
	if !s.kv.Has(credentialKey) {
		return "", false
	}
	data, err := s.kv.Read(credentialKey)
	if err != nil {
		return "", false
	}
	var f credentialFile
	if err := json.Unmarshal(data, &f); err != nil || f.APIKey == "" {
		return "", false
	}
	return f.APIKey, true
}

// Save validates key and persists it. ok is false when validation rejects
// the key; err then wraps apperr.ErrInvalidCredential.
func (s *CredentialStore) Save(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, apperr.ErrInvalidCredential
	}
	if s.validate != nil {
		if err := s.validate(ctx, key); err != nil {
			return false, fmt.Errorf("%w: %v", apperr.ErrInvalidCredential, err)
		}
	}
	data, err := json.Marshal(credentialFile{APIKey: key})
	if err != nil {
		return false, fmt.Errorf("ai: encode credential: %w", err)
	}
	if err := s.kv.Write(credentialKey, data); err != nil {
		return false, fmt.Errorf("ai: write credential: %w", err)
	}
	return true, nil
}

// Gate holds the live completion client. It is built once from the stored
// credential and replaced only when a new credential is saved.
type Gate struct {
	creds    *CredentialStore
	settings Settings
	logger   *slog.Logger

	mu     sync.RWMutex
	client Completer
}

// NewGate builds the client from a stored credential, if there is one.
func NewGate(creds *CredentialStore, s Settings, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{creds: creds, settings: s, logger: logger}
	if key, ok := creds.Load(); ok {
		g.client = NewClient(key, s, logger)
	}
	return g
}

// HasCredential reports whether requests can be made.
func (g *Gate) HasCredential() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client != nil
}

// SaveCredential validates, stores and starts using key.
func (g *Gate) SaveCredential(ctx context.Context, key string) error {
	ok, err := g.creds.Save(ctx, key)
	if !ok {
		g.logger.Warn("ai: credential rejected", slog.String("error", err.Error()))
		return err
	}
	key, _ = g.creds.Load()
	g.mu.Lock()
	g.client = NewClient(key, g.settings, g.logger)
	g.mu.Unlock()
	g.logger.Info("ai: credential saved")
	return nil
}

// Complete forwards to the live client.
func (g *Gate) Complete(ctx context.Context, messages []models.ChatMessage, noteContext string) (string, error) {
	g.mu.RLock()
	c := g.client
	g.mu.RUnlock()
	if c == nil {
		return "", apperr.ErrNoCredential
	}
	return c.Complete(ctx, messages, noteContext)
}

var (
	_ Completer = (*Client)(nil)
	_ Completer = (*Gate)(nil)
)
