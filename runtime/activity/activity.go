// Package activity defines the user-visible progress narration contract.
//
// Narration is strictly best-effort: the supervisor swallows every failure
// from a Logger and a supervised run must never depend on narration
// succeeding. Durable backends live under features/activity.
package activity

import "context"

type (
	// Logger posts human-readable narration to the context's originating
	// surface (issue comments, chat thoughts).
	Logger interface {
		// Thought posts intermediate progress narration.
		Thought(ctx context.Context, contextID, text string) error
		// Response posts a user-facing reply, including the single terminal
		// message of a run.
		Response(ctx context.Context, contextID, text string) error
	}

	// Noop discards all narration.
	Noop struct{}
)

// NewNoop constructs a Logger that discards all narration.
func NewNoop() Logger {
	return Noop{}
}

// Thought discards the narration.
func (Noop) Thought(context.Context, string, string) error { return nil }

// Response discards the narration.
func (Noop) Response(context.Context, string, string) error { return nil }
