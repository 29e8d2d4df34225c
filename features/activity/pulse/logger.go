// Package pulse exposes an activity.Logger implementation that publishes
// narration events to goa.design/pulse streams, one stream per work context.
// Services build a Redis client, pass it to the Pulse client, and hand the
// resulting logger to the supervisor.
package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	clientspulse "github.com/agentwarden/warden/features/activity/pulse/clients/pulse"
	"github.com/agentwarden/warden/runtime/activity"
)

const (
	eventThought  = "thought"
	eventResponse = "response"

	defaultThoughtRate  = rate.Limit(2)
	defaultThoughtBurst = 5
)

type (
	// Options configures the Pulse logger.
	Options struct {
		// Client is the Pulse client used to publish events. Required.
		Client clientspulse.Client
		// StreamID derives the target stream from a context ID. Defaults to
		// `activity/<contextID>`.
		StreamID func(contextID string) string
		// ThoughtRate bounds how many thoughts per second are published.
		// Thoughts over the limit are dropped, not delayed; narration must
		// never slow the run down. Zero uses the default of 2/s.
		ThoughtRate rate.Limit
		// ThoughtBurst is the burst size for the thought limiter. Zero uses
		// the default of 5.
		ThoughtBurst int
	}

	// Logger publishes narration events into Pulse streams. Responses are
	// always published; thoughts pass through a rate limiter first.
	// Thread-safe for concurrent calls.
	Logger struct {
		client   clientspulse.Client
		streamID func(contextID string) string
		limiter  *rate.Limiter
	}

	// envelope wraps narration events for transmission over Pulse streams.
	envelope struct {
		Kind      string    `json:"kind"`
		ContextID string    `json:"contextId"`
		Text      string    `json:"text"`
		Timestamp time.Time `json:"timestamp"`
	}
)

// NewLogger constructs a Pulse-backed activity logger. The Client field in
// opts is required; the remaining fields default to sensible values.
func NewLogger(opts Options) (*Logger, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse client is required")
	}
	streamID := opts.StreamID
	if streamID == nil {
		streamID = defaultStreamID
	}
	limit := opts.ThoughtRate
	if limit <= 0 {
		limit = defaultThoughtRate
	}
	burst := opts.ThoughtBurst
	if burst <= 0 {
		burst = defaultThoughtBurst
	}
	return &Logger{
		client:   opts.Client,
		streamID: streamID,
		limiter:  rate.NewLimiter(limit, burst),
	}, nil
}

var _ activity.Logger = (*Logger)(nil)

// Thought publishes an intermediate narration event. Thoughts over the rate
// limit are dropped silently; the feed is advisory and losing one never
// affects the run.
func (l *Logger) Thought(ctx context.Context, contextID, text string) error {
	if !l.limiter.Allow() {
		return nil
	}
	return l.publish(ctx, eventThought, contextID, text)
}

// Response publishes a user-facing reply event. Responses bypass the rate
// limiter: they carry the run's visible output.
func (l *Logger) Response(ctx context.Context, contextID, text string) error {
	return l.publish(ctx, eventResponse, contextID, text)
}

// Close releases resources owned by the logger.
func (l *Logger) Close(ctx context.Context) error {
	return l.client.Close(ctx)
}

func (l *Logger) publish(ctx context.Context, kind, contextID, text string) error {
	if contextID == "" {
		return errors.New("context id is required")
	}
	handle, err := l.client.Stream(l.streamID(contextID))
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{
		Kind:      kind,
		ContextID: contextID,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if _, err := handle.Add(ctx, kind, payload); err != nil {
		return err
	}
	return nil
}

func defaultStreamID(contextID string) string {
	return fmt.Sprintf("activity/%s", contextID)
}
