package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	streamopts "goa.design/pulse/streaming/options"

	clientspulse "github.com/agentwarden/warden/features/activity/pulse/clients/pulse"
)

type (
	// Event is a narration event read back from the activity feed.
	Event struct {
		Kind      string    `json:"kind"`
		ContextID string    `json:"contextId"`
		Text      string    `json:"text"`
		Timestamp time.Time `json:"timestamp"`
	}

	// SubscriberOptions configures a Pulse-backed feed subscriber.
	SubscriberOptions struct {
		// Client is the Pulse client used to consume events. Required.
		Client clientspulse.Client
		// SinkName identifies the Pulse consumer group. Defaults to
		// "warden_activity".
		SinkName string
		// Buffer specifies the event channel capacity. Defaults to 64.
		Buffer int
	}

	// Subscriber consumes activity streams and emits narration events. It
	// wraps a Pulse consumer group and decodes incoming envelopes.
	Subscriber struct {
		client clientspulse.Client
		buffer int
		name   string
	}
)

// NewSubscriber constructs a Pulse-backed feed subscriber.
func NewSubscriber(opts SubscriberOptions) (*Subscriber, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse client is required")
	}
	name := opts.SinkName
	if name == "" {
		name = "warden_activity"
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Subscriber{
		client: opts.Client,
		buffer: buffer,
		name:   name,
	}, nil
}

// Subscribe opens a consumer group on the activity stream for the given
// context and returns channels for events and errors. The returned cancel
// function stops consumption, closes the sink, and closes both channels.
func (s *Subscriber) Subscribe(
	ctx context.Context,
	contextID string,
	opts ...streamopts.Sink,
) (<-chan Event, <-chan error, context.CancelFunc, error) {
	str, err := s.client.Stream(defaultStreamID(contextID))
	if err != nil {
		return nil, nil, nil, err
	}
	sink, err := str.NewSink(ctx, s.name, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	events := make(chan Event, s.buffer)
	errs := make(chan error, 1)
	runCtx, cancel := context.WithCancel(ctx)
	go s.consume(runCtx, sink, events, errs)
	cancelFunc := func() {
		cancel()
		sink.Close(context.Background())
	}
	return events, errs, cancelFunc, nil
}

func (s *Subscriber) consume(ctx context.Context, sink clientspulse.Sink, out chan<- Event, errs chan<- error) {
	defer close(out)
	defer close(errs)
	ch := sink.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			var decoded Event
			if err := json.Unmarshal(evt.Payload, &decoded); err != nil {
				errs <- fmt.Errorf("pulse decode payload: %w", err)
				return
			}
			select {
			case out <- decoded:
			case <-ctx.Done():
				return
			}
			if ackErr := sink.Ack(ctx, evt); ackErr != nil {
				errs <- fmt.Errorf("pulse ack: %w", ackErr)
				return
			}
		}
	}
}
