// Package ai talks to an OpenAI-compatible chat completion endpoint and keeps
// the API credential the client is built from.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	openai "github.com/sashabaranov/go-openai"

	"github.com/starford/inkwell/internal/models"
)

// SystemPrompt is prepended to every conversation.
var SystemPrompt = heredoc.Doc(`
	You are a helpful AI assistant. Always focus on answering the current
	question directly and clearly. Use previous conversation context only as
	reference, but don't dwell on it. Keep your responses concise and to the
	point. If you're unsure about something, say so directly.
`)

// ContextPrefix introduces the note text sent along with a request.
const ContextPrefix = "Current note content: "

// Completer returns one assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []models.ChatMessage, noteContext string) (string, error)
}

// Settings tune requests. Zero fields take the defaults.
type Settings struct {
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Model:       openai.GPT3Dot5Turbo,
		Temperature: 0.7,
		MaxTokens:   500,
		Timeout:     60 * time.Second,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Model == "" {
		s.Model = d.Model
	}
	if s.Temperature == 0 {
		s.Temperature = d.Temperature
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = d.MaxTokens
	}
	if s.Timeout == 0 {
		s.Timeout = d.Timeout
	}
	return s
}

// Client is a completion client bound to one API key.
type Client struct {
	api      *openai.Client
	settings Settings
	logger   *slog.Logger
}

// NewClient builds a client for key.
func NewClient(key string, s Settings, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	s = s.withDefaults()
	cfg := openai.DefaultConfig(key)
	if s.BaseURL != "" {
		cfg.BaseURL = s.BaseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: s.Timeout}
	return &Client{api: openai.NewClientWithConfig(cfg), settings: s, logger: logger}
}

// BuildMessages prepends the system prompt and appends noteContext as a
// trailing system entry when it is not empty.
func BuildMessages(messages []models.ChatMessage, noteContext string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+2)
	out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt})
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: roleFor(m.Role), Content: m.Content})
	}
	if noteContext != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: ContextPrefix + noteContext,
		})
	}
	return out
}

func roleFor(role string) string {
	switch role {
	case models.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case models.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// Complete sends the conversation and returns the first choice.
func (c *Client) Complete(ctx context.Context, messages []models.ChatMessage, noteContext string) (string, error) {
	c.logger.Debug("ai: completion request",
		slog.String("model", c.settings.Model),
		slog.Int("messages", len(messages)),
		slog.Int("max_tokens", c.settings.MaxTokens))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.settings.Model,
		Messages:    BuildMessages(messages, noteContext),
		MaxTokens:   c.settings.MaxTokens,
		Temperature: c.settings.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("ai: complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("ai: complete: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping makes the smallest possible request to check the key works.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.settings.Model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "test"}},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("ai: ping: %w", err)
	}
	return nil
}
