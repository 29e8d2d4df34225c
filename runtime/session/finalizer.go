package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentwarden/warden/runtime/activity"
	"github.com/agentwarden/warden/runtime/coord"
	"github.com/agentwarden/warden/runtime/telemetry"
)

type (
	// PlatformCompleter closes a platform-specific session concept tied to
	// the originating context (for example an issue tracker's own agent
	// session object). Optional; failures are logged, never fatal.
	PlatformCompleter interface {
		Complete(ctx context.Context, contextID string) error
	}

	// Finalizer performs the exactly-once transition of a session record to
	// a terminal status and notifies collaborators. Safe to invoke more than
	// once for the same session: both the cancellation path and a later
	// natural completion may race to finalize, and only the first mover
	// narrates and notifies.
	Finalizer struct {
		sessions *Store
		signals  coord.Store
		platform PlatformCompleter
		activity activity.Logger
		logger   telemetry.Logger
	}

	// FinalizerOption configures a Finalizer.
	FinalizerOption func(*Finalizer)
)

// WithPlatformCompleter attaches a platform session completer.
func WithPlatformCompleter(p PlatformCompleter) FinalizerOption {
	return func(f *Finalizer) {
		f.platform = p
	}
}

// WithActivityLogger attaches the narration logger used for the terminal
// message. Defaults to a no-op logger.
func WithActivityLogger(l activity.Logger) FinalizerOption {
	return func(f *Finalizer) {
		if l != nil {
			f.activity = l
		}
	}
}

// WithLogger attaches the operator logger. Defaults to a no-op logger.
func WithLogger(l telemetry.Logger) FinalizerOption {
	return func(f *Finalizer) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFinalizer builds a Finalizer over the session store and the coordination
// store holding the session's signalling keys.
func NewFinalizer(sessions *Store, signals coord.Store, opts ...FinalizerOption) (*Finalizer, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if signals == nil {
		return nil, errors.New("coordination store is required")
	}
	f := &Finalizer{
		sessions: sessions,
		signals:  signals,
		activity: activity.NewNoop(),
		logger:   telemetry.NewNoopLogger(),
	}
	for _, o := range opts {
		if o != nil {
			o(f)
		}
	}
	return f, nil
}

// Finalize moves the session to the given terminal status, clears its
// signalling keys, closes the platform session, and emits exactly one
// terminal narration. A second call for the same session is a no-op.
func (f *Finalizer) Finalize(ctx context.Context, sessionID, contextID string, status Status, errMsg string) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	sess, moved, err := f.sessions.Complete(ctx, sessionID, status, errMsg)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Nothing to finalize; treat as already done.
			f.logger.Debug(ctx, "finalize: session not found", "session_id", sessionID)
			return nil
		}
		return fmt.Errorf("finalize session %s: %w", sessionID, err)
	}
	if !moved {
		f.logger.Debug(ctx, "finalize: already finalized",
			"session_id", sessionID, "status", string(sess.Status))
		return nil
	}

	// Signals aimed at a finished session must not leak into a later run.
	if mailbox, merr := coord.NewMailbox(f.signals, sessionID); merr == nil {
		if cerr := mailbox.Clear(ctx); cerr != nil {
			f.logger.Warn(ctx, "finalize: clear signals failed",
				"session_id", sessionID, "err", cerr.Error())
		}
	}

	if f.platform != nil && contextID != "" {
		if perr := f.platform.Complete(ctx, contextID); perr != nil {
			f.logger.Warn(ctx, "finalize: platform session completion failed",
				"session_id", sessionID, "context_id", contextID, "err", perr.Error())
		}
	}

	if contextID != "" {
		if aerr := f.activity.Response(ctx, contextID, terminalMessage(status, errMsg)); aerr != nil {
			f.logger.Warn(ctx, "finalize: terminal narration failed",
				"session_id", sessionID, "err", aerr.Error())
		}
	}

	f.logger.Info(ctx, "session finalized",
		"session_id", sessionID, "context_id", contextID, "status", string(status))
	return nil
}

func terminalMessage(status Status, errMsg string) string {
	switch status {
	case StatusCancelled:
		return "Stopping now — this run was cancelled."
	case StatusError:
		if errMsg != "" {
			return fmt.Sprintf("The run ended with an error: %s", errMsg)
		}
		return "The run ended with an error."
	default:
		return "Done — the run completed successfully."
	}
}
