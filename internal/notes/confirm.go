package notes

import "context"

// Confirmer decides whether unsaved drafts of noteID may be thrown away.
type Confirmer interface {
	ConfirmDiscard(ctx context.Context, noteID string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, noteID string) bool

func (f ConfirmFunc) ConfirmDiscard(ctx context.Context, noteID string) bool {
	return f(ctx, noteID)
}

var (
	// Discard approves every discard.
	Discard Confirmer = ConfirmFunc(func(context.Context, string) bool { return true })
	// Keep declines every discard.
	Keep Confirmer = ConfirmFunc(func(context.Context, string) bool { return false })
)

// Answer returns Discard when ok and Keep otherwise.
func Answer(ok bool) Confirmer {
	if ok {
		return Discard
	}
	return Keep
}
