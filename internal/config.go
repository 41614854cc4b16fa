package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mitchellh/go-homedir"

	"github.com/starford/inkwell/internal/ai"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	Trash   TrashConfig       `yaml:"trash"`
	AI      AIConfig          `yaml:"ai"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration and expands "~" in paths. Empty
// derived paths are filled in from the data directory.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if c.Trash.LedgerPath == "" {
		c.Trash.LedgerPath = filepath.Join(c.Storage.DataDir, "trash.db")
	}
	if err := c.Trash.Validate(); err != nil {
		return err
	}
	if c.AI.CredentialsDir == "" {
		c.AI.CredentialsDir = filepath.Join(c.Storage.DataDir, "credentials")
	}
	if err := c.AI.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig locates application data and the notes directory used when
// the user has not picked one.
type StorageConfig struct {
	DataDir         string `yaml:"data_dir"`
	DefaultNotesDir string `yaml:"default_notes_dir"`
	SettingsFile    string `yaml:"settings_file"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.DataDir, validation.Required),
	); err != nil {
		return err
	}
	if err := expandPaths(&c.DataDir, &c.DefaultNotesDir, &c.SettingsFile); err != nil {
		return err
	}
	if c.DefaultNotesDir == "" {
		c.DefaultNotesDir = filepath.Join(c.DataDir, "notes")
	}
	if c.SettingsFile == "" {
		c.SettingsFile = filepath.Join(c.DataDir, "settings.yaml")
	}
	return nil
}

// TrashConfig holds the trash ledger location.
type TrashConfig struct {
	LedgerPath string `yaml:"ledger_path"`
}

// Validate validates the trash configuration.
func (c *TrashConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LedgerPath, validation.Required),
	); err != nil {
		return err
	}
	return expandPaths(&c.LedgerPath)
}

// AIConfig tunes the completion provider. Zero values take the client defaults.
type AIConfig struct {
	Model          string        `yaml:"model"`
	BaseURL        string        `yaml:"base_url"`
	Temperature    float32       `yaml:"temperature"`
	MaxTokens      int           `yaml:"max_tokens"`
	Timeout        time.Duration `yaml:"timeout"`
	CredentialsDir string        `yaml:"credentials_dir"`
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Temperature, validation.Min(float32(0)), validation.Max(float32(2))),
		validation.Field(&c.MaxTokens, validation.Min(0)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.CredentialsDir, validation.Required),
	); err != nil {
		return err
	}
	return expandPaths(&c.CredentialsDir)
}

// Settings converts the section into client settings.
func (c *AIConfig) Settings() ai.Settings {
	return ai.Settings{
		Model:       c.Model,
		BaseURL:     c.BaseURL,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Timeout:     c.Timeout,
	}
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

func expandPaths(paths ...*string) error {
	for _, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("config: expand %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// defaultDataDir is the per-user configuration directory, or ~/.inkwell
// where the platform has none.
func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "inkwell")
	}
	return "~/.inkwell"
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	s := ai.DefaultSettings()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		AI: AIConfig{
			Model:       s.Model,
			Temperature: s.Temperature,
			MaxTokens:   s.MaxTokens,
			Timeout:     s.Timeout,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
