// Package supervise wraps every tool call an agent run makes with the
// cross-cutting policy that must hold for all tools identically: cancellation
// checks against both the local signal and the shared coordination store,
// circuit breaking of repeated identical calls, draining of externally
// queued interjections, execution-strategy bookkeeping, best-effort progress
// narration, and durable audit recording.
//
// The reasoning loop never invokes a tool directly. It obtains a wrapped
// executor from Run.Wrap and calls that instead; the wrapper has the same
// signature as the real executor and is a drop-in replacement.
package supervise

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/agentwarden/warden/runtime/activity"
	"github.com/agentwarden/warden/runtime/coord"
	"github.com/agentwarden/warden/runtime/memory"
	"github.com/agentwarden/warden/runtime/session"
	"github.com/agentwarden/warden/runtime/telemetry"
	"github.com/agentwarden/warden/runtime/tools"
)

type (
	// StatusFunc is the optional one-way progress callback a tool may emit
	// partial status through. The supervisor passes it along untouched.
	StatusFunc func(text string)

	// Executor is the call signature shared by real tool implementations and
	// their supervised replacements.
	Executor func(ctx context.Context, payload any, update StatusFunc) (any, error)

	// Config assembles the collaborators shared by all wrapped tools of one
	// run. Store, session store, finalizer, recorder, and registry are
	// required; narration and telemetry default to no-ops.
	Config struct {
		// SessionID identifies the run. Required.
		SessionID string
		// ContextID identifies the originating conversation/issue. Required.
		ContextID string
		// Coord is the shared coordination store polled for cancellation
		// flags and queued interjections. Required.
		Coord coord.Store
		// Sessions persists the externally visible session record. Required.
		Sessions *session.Store
		// Finalizer performs the exactly-once terminal transition. Required.
		Finalizer *session.Finalizer
		// Memory records one audit entry per supervised call. Required.
		Memory memory.Recorder
		// Registry resolves tool categories. Required.
		Registry *tools.Registry
		// Activity narrates progress. Optional; defaults to no-op.
		Activity activity.Logger
		// Logger is the operator log. Optional; defaults to no-op.
		Logger telemetry.Logger
		// Metrics records counters and timers. Optional; defaults to no-op.
		Metrics telemetry.Metrics
		// Tracer traces supervised executions. Optional; defaults to no-op.
		Tracer telemetry.Tracer
	}

	// Run is the supervision state for one agent run. A run is
	// single-threaded cooperative: the reasoning loop and every tool call
	// execute sequentially in one logical task, so the tracker and strategy
	// require no locking. The only state shared with other processes lives
	// in the coordination store.
	Run struct {
		sessionID string
		contextID string

		tracker  *Tracker
		strategy *Strategy

		mailbox   *coord.Mailbox
		sessions  *session.Store
		finalizer *session.Finalizer
		memory    memory.Recorder
		registry  *tools.Registry
		activity  activity.Logger
		logger    telemetry.Logger
		metrics   telemetry.Metrics
		tracer    telemetry.Tracer
	}
)

// NewRun validates the configuration and builds the supervision state for
// one run. The caller creates the session record before the reasoning loop
// starts; NewRun does not touch the store.
func NewRun(cfg Config) (*Run, error) {
	if cfg.SessionID == "" {
		return nil, errors.New("session id is required")
	}
	if cfg.ContextID == "" {
		return nil, errors.New("context id is required")
	}
	if cfg.Coord == nil {
		return nil, errors.New("coordination store is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Finalizer == nil {
		return nil, errors.New("finalizer is required")
	}
	if cfg.Memory == nil {
		return nil, errors.New("memory recorder is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("tool registry is required")
	}
	mailbox, err := coord.NewMailbox(cfg.Coord, cfg.SessionID)
	if err != nil {
		return nil, err
	}
	r := &Run{
		sessionID: cfg.SessionID,
		contextID: cfg.ContextID,
		tracker:   NewTracker(),
		strategy:  NewStrategy(),
		mailbox:   mailbox,
		sessions:  cfg.Sessions,
		finalizer: cfg.Finalizer,
		memory:    cfg.Memory,
		registry:  cfg.Registry,
		activity:  cfg.Activity,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
	}
	if r.activity == nil {
		r.activity = activity.NewNoop()
	}
	if r.logger == nil {
		r.logger = telemetry.NewNoopLogger()
	}
	if r.metrics == nil {
		r.metrics = telemetry.NewNoopMetrics()
	}
	if r.tracer == nil {
		r.tracer = telemetry.NewNoopTracer()
	}
	return r, nil
}

// Wrap returns an executor with the same signature as exec that applies the
// full supervision policy around every invocation. The reasoning loop uses
// the returned executor as a drop-in replacement for the real one.
func Wrap(name tools.Ident, exec Executor, run *Run) Executor {
	return run.Wrap(name, exec)
}

// Wrap returns the supervised replacement for exec.
func (r *Run) Wrap(name tools.Ident, exec Executor) Executor {
	return func(ctx context.Context, payload any, update StatusFunc) (any, error) {
		// Local cancellation: refuse before doing any work.
		if err := ctx.Err(); err != nil {
			return nil, &CancelError{Reason: CancelLocal, Cause: err}
		}

		// External cancellation: one store round trip. Observed before loop
		// detection so a cancelled run is never misreported as looping.
		if cancelled, err := r.mailbox.CancelRequested(ctx); err != nil {
			r.logger.Warn(ctx, "cancel flag check failed", "session_id", r.sessionID, "err", err.Error())
		} else if cancelled {
			r.finalize(ctx, session.StatusCancelled, "")
			return nil, &CancelError{Reason: CancelExternal}
		}

		// Circuit breaker: the signature is recorded for every call
		// regardless of outcome; the count includes the incoming call, so
		// the threshold-th identical call is refused and the tool executes
		// at most threshold-1 times with the same arguments.
		sig := CallSignature(name, payload)
		r.tracker.RecordCall(sig)
		if occurrences := r.tracker.CountRecent(sig); occurrences >= loopThreshold {
			r.metrics.IncCounter("tool.loop_detected", 1, "tool", string(name))
			r.narrate(ctx, fmt.Sprintf(
				"I've tried %s with the same arguments %d times without progress; switching to a different approach.",
				name, occurrences))
			return nil, &LoopError{Tool: name, Occurrences: occurrences}
		}

		// Interjections: a stop anywhere in the batch wins over everything
		// else queued with it.
		msgs, err := r.mailbox.Drain(ctx)
		if err != nil {
			r.logger.Warn(ctx, "interjection drain failed", "session_id", r.sessionID, "err", err.Error())
		}
		for _, msg := range msgs {
			if msg.Type == coord.MessageStop {
				r.respond(ctx, "Stopping now — a stop command was received.")
				r.finalize(ctx, session.StatusCancelled, "")
				return nil, &CancelError{Reason: CancelStop}
			}
		}
		if len(msgs) > 0 {
			turns := make([]session.Message, 0, len(msgs))
			for _, msg := range msgs {
				turns = append(turns, session.Message{
					Role:      "user",
					Content:   msg.Content,
					Timestamp: msg.Timestamp,
				})
			}
			if err := r.sessions.AppendMessages(ctx, r.sessionID, turns...); err != nil {
				r.logger.Error(ctx, "persist interjections failed", "session_id", r.sessionID, "err", err.Error())
			}
		}

		// Strategy bookkeeping before execution so the phase reflects the
		// call that is about to run.
		category := r.registry.Category(name)
		r.strategy.RecordTool(name, category)
		r.updateSession(ctx, func(sess *session.Session) {
			sess.CurrentTool = string(name)
		})

		r.narrate(ctx, callDescription(name, r.registry, payload))

		start := time.Now()
		spanCtx, span := r.tracer.Start(ctx, "tool."+string(name))
		result, execErr := exec(spanCtx, payload, update)
		elapsed := time.Since(start)
		r.metrics.IncCounter("tool.calls", 1, "tool", string(name), "category", string(category))
		r.metrics.RecordTimer("tool.duration", elapsed, "tool", string(name))

		if execErr != nil {
			span.RecordError(execErr)
			span.SetStatus(codes.Error, execErr.Error())
			span.End()
			kind, hint := classifyFailure(execErr.Error())
			text := fmt.Sprintf("%s failed (%s): %s", name, kind, clampPreview(execErr.Error()))
			if hint != "" {
				text += " " + hint
			}
			r.narrate(ctx, text)
			r.record(ctx, memory.Entry{
				Tool:      string(name),
				Input:     payload,
				Error:     execErr.Error(),
				Success:   false,
				Timestamp: time.Now().UTC(),
			})
			// The original error propagates unchanged: retry policy and
			// user-facing reporting depend on it.
			return nil, execErr
		}
		span.End()

		r.tracker.RecordToolUsed(name)
		summary := successSummary(category, name, result)
		if category == tools.CategoryAction {
			r.tracker.RecordAction(summary)
		}
		r.updateSession(ctx, func(sess *session.Session) {
			sess.RecordToolUse(string(name))
		})
		r.narrate(ctx, summary)
		r.record(ctx, memory.Entry{
			Tool:      string(name),
			Input:     payload,
			Output:    result,
			Success:   true,
			Timestamp: time.Now().UTC(),
		})
		return result, nil
	}
}

// End marks the reasoning loop's explicit completion on the tracker.
func (r *Run) End() {
	r.tracker.End()
}

// Tracker exposes the process-local execution record.
func (r *Run) Tracker() *Tracker {
	return r.tracker
}

// Strategy exposes the phase state machine for planner heuristics.
func (r *Run) Strategy() *Strategy {
	return r.strategy
}

// SessionID returns the supervised run's session identifier.
func (r *Run) SessionID() string {
	return r.sessionID
}

// ContextID returns the supervised run's originating context identifier.
func (r *Run) ContextID() string {
	return r.contextID
}

// finalize runs the exactly-once terminal transition. Errors are logged: by
// the time finalize runs the call already has a terminal outcome to report
// and must not trade it for a store error.
func (r *Run) finalize(ctx context.Context, status session.Status, errMsg string) {
	if err := r.finalizer.Finalize(ctx, r.sessionID, r.contextID, status, errMsg); err != nil {
		r.logger.Error(ctx, "finalize failed",
			"session_id", r.sessionID, "status", string(status), "err", err.Error())
	}
}

// narrate posts a best-effort thought. Narration failures are logged and
// swallowed; the run never depends on them.
func (r *Run) narrate(ctx context.Context, text string) {
	if err := r.activity.Thought(ctx, r.contextID, text); err != nil {
		r.logger.Warn(ctx, "narration failed", "context_id", r.contextID, "err", err.Error())
	}
}

// respond posts a best-effort user-facing message.
func (r *Run) respond(ctx context.Context, text string) {
	if err := r.activity.Response(ctx, r.contextID, text); err != nil {
		r.logger.Warn(ctx, "response narration failed", "context_id", r.contextID, "err", err.Error())
	}
}

// record writes the audit entry. Recording failures are logged; they never
// abort the supervised call.
func (r *Run) record(ctx context.Context, entry memory.Entry) {
	if err := r.memory.Record(ctx, r.contextID, memory.KindAction, entry); err != nil {
		r.logger.Error(ctx, "memory record failed", "context_id", r.contextID, "tool", entry.Tool, "err", err.Error())
	}
}

// updateSession applies a mutation to the active session record.
// Best-effort: a session the finalizer already moved is left alone.
func (r *Run) updateSession(ctx context.Context, mutate func(*session.Session)) {
	sess, err := r.sessions.LoadActive(ctx, r.sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			r.logger.Warn(ctx, "load session failed", "session_id", r.sessionID, "err", err.Error())
		}
		return
	}
	mutate(&sess)
	if err := r.sessions.UpdateActive(ctx, sess); err != nil {
		r.logger.Warn(ctx, "update session failed", "session_id", r.sessionID, "err", err.Error())
	}
}

// callDescription renders the pre-execution narration for a call.
func callDescription(name tools.Ident, registry *tools.Registry, payload any) string {
	if d, err := registry.Describe(name); err == nil && d.Description != "" {
		return fmt.Sprintf("Using %s — %s", name, d.Description)
	}
	preview := clampPreview(genericPreview(payload))
	if preview == "" || preview == "ok" {
		return fmt.Sprintf("Using %s", name)
	}
	return fmt.Sprintf("Using %s with %s", name, preview)
}
