// Package chat is the side conversation with the assistant: message history,
// snippets of note text attached to the next question, and the open note
// sent along as context.
package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/notes"
)

// Message is one entry of the visible conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Snippet is a piece of note text added to the chat.
type Snippet struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Assistant answers chat messages.
type Assistant interface {
	Complete(ctx context.Context, messages []models.ChatMessage, noteContext string) (string, error)
}

// SessionSource provides the open note used as context.
type SessionSource interface {
	Session() (notes.Session, bool)
}

// Panel holds one conversation.
type Panel struct {
	assistant Assistant
	source    SessionSource
	now       func() time.Time

	mu       sync.Mutex
	messages []Message
	snippets []Snippet
}

// NewPanel creates an empty conversation.
func NewPanel(assistant Assistant, source SessionSource) *Panel {
	return &Panel{assistant: assistant, source: source, now: time.Now}
}

// Messages returns the conversation so far.
func (p *Panel) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.messages)
}

// Snippets returns the pending snippets.
func (p *Panel) Snippets() []Snippet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.snippets)
}

// AddSnippet attaches text to the next message.
func (p *Panel) AddSnippet(text string) (Snippet, error) {
	if strings.TrimSpace(text) == "" {
		return Snippet{}, apperr.ErrEmptyInput
	}
	s := Snippet{ID: uuid.NewString(), Content: text}
	p.mu.Lock()
	p.snippets = append(p.snippets, s)
	p.mu.Unlock()
	return s, nil
}

// RemoveSnippet drops one pending snippet.
func (p *Panel) RemoveSnippet(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.IndexFunc(p.snippets, func(s Snippet) bool { return s.ID == id })
	if i < 0 {
		return apperr.ErrNotFound
	}
	p.snippets = slices.Delete(p.snippets, i, i+1)
	return nil
}

// Clear forgets the conversation and the pending snippets.
func (p *Panel) Clear() {
	p.mu.Lock()
	p.messages = nil
	p.snippets = nil
	p.mu.Unlock()
}

// Send asks the assistant about text, with pending snippets quoted ahead of
// it and the open note as context. On failure the conversation is left as
// it was so the message can be retried.
func (p *Panel) Send(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, apperr.ErrEmptyInput
	}

	p.mu.Lock()
	user := Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   compose(text, p.snippets),
		Timestamp: p.now(),
	}
	history := make([]models.ChatMessage, 0, len(p.messages)+1)
	for _, m := range p.messages {
		history = append(history, models.ChatMessage{Role: m.Role, Content: m.Content})
	}
	history = append(history, models.ChatMessage{Role: user.Role, Content: user.Content})
	sent := make(map[string]struct{}, len(p.snippets))
	for _, s := range p.snippets {
		sent[s.ID] = struct{}{}
	}
	p.mu.Unlock()

	var noteContext string
	if sess, ok := p.source.Session(); ok {
		noteContext = sess.Content
	}

	reply, err := p.assistant.Complete(ctx, history, noteContext)
	if err != nil {
		return Message{}, fmt.Errorf("chat: send: %w", err)
	}

	answer := Message{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   reply,
		Timestamp: p.now(),
	}
	p.mu.Lock()
	p.messages = append(p.messages, user, answer)
	// Snippets added while the request ran wait for the next message.
	p.snippets = slices.DeleteFunc(p.snippets, func(s Snippet) bool {
		_, ok := sent[s.ID]
		return ok
	})
	p.mu.Unlock()
	return answer, nil
}

func compose(text string, snippets []Snippet) string {
	if len(snippets) == 0 {
		return text
	}
	var b strings.Builder
	for _, s := range snippets {
		b.WriteString("> ")
		b.WriteString(strings.ReplaceAll(s.Content, "\n", "\n> "))
		b.WriteString("\n\n")
	}
	b.WriteString(text)
	return b.String()
}
