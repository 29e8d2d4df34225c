package coord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type (
	// QueuedMessage is an interjection addressed to a running session by a
	// process outside its call stack.
	QueuedMessage struct {
		// Type distinguishes ordinary content from a stop command.
		Type MessageType `json:"type"`
		// Content is the message text. Empty for stop commands.
		Content string `json:"content,omitempty"`
		// Timestamp is when the sender queued the message. Preserved so
		// interjected transcript turns stay attributable and ordered.
		Timestamp time.Time `json:"timestamp"`
	}

	// MessageType identifies the kind of a queued message.
	MessageType string

	// Mailbox is the per-session signalling surface on top of a Store: a
	// cancellation flag and an ordered interjection queue. Every operation is
	// a single store round trip.
	Mailbox struct {
		store     Store
		sessionID string
	}
)

const (
	// MessageStop requests immediate, irreversible termination of the run.
	MessageStop MessageType = "stop"
	// MessageContent carries an ordinary conversational interjection.
	MessageContent MessageType = "message"
)

// Key layout within the shared store. Other processes (webhook handlers, UIs)
// write these keys with the same scheme.
const (
	cancelKeyPrefix = "session:cancel:"
	queueKeyPrefix  = "session:queue:"
)

// NewMailbox returns the mailbox for the given session.
func NewMailbox(store Store, sessionID string) (*Mailbox, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	return &Mailbox{store: store, sessionID: sessionID}, nil
}

// CancelRequested reports whether an external cancellation flag is set for
// the session. A single Get round trip.
func (m *Mailbox) CancelRequested(ctx context.Context) (bool, error) {
	_, err := m.store.Get(ctx, cancelKeyPrefix+m.sessionID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return true, nil
}

// RequestCancel sets the cancellation flag. A positive ttl bounds how long an
// unobserved flag lingers after the run has already terminated.
func (m *Mailbox) RequestCancel(ctx context.Context, ttl time.Duration) error {
	if err := m.store.Set(ctx, cancelKeyPrefix+m.sessionID, "1", ttl); err != nil {
		return fmt.Errorf("set cancel flag: %w", err)
	}
	return nil
}

// ClearCancel removes the cancellation flag once it has been honored.
func (m *Mailbox) ClearCancel(ctx context.Context) error {
	if err := m.store.Delete(ctx, cancelKeyPrefix+m.sessionID); err != nil {
		return fmt.Errorf("clear cancel flag: %w", err)
	}
	return nil
}

// Push queues a message for the running session. Messages are delivered in
// push order when the supervisor next drains the mailbox.
func (m *Mailbox) Push(ctx context.Context, msg QueuedMessage) error {
	if msg.Type == "" {
		msg.Type = MessageContent
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal queued message: %w", err)
	}
	if err := m.store.ListPush(ctx, queueKeyPrefix+m.sessionID, string(raw)); err != nil {
		return fmt.Errorf("push queued message: %w", err)
	}
	return nil
}

// Drain atomically removes and returns all queued messages in the order the
// store returns them. Entries that fail to decode are dropped rather than
// wedging the queue; a stop command always decodes because it carries only a
// type and timestamp.
func (m *Mailbox) Drain(ctx context.Context) ([]QueuedMessage, error) {
	raws, err := m.store.ListPopAll(ctx, queueKeyPrefix+m.sessionID)
	if err != nil {
		return nil, fmt.Errorf("drain queued messages: %w", err)
	}
	out := make([]QueuedMessage, 0, len(raws))
	for _, raw := range raws {
		var msg QueuedMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Clear discards the cancellation flag and any queued messages. Used by the
// finalizer so signals aimed at a finished session cannot leak into a later
// run that reuses the id.
func (m *Mailbox) Clear(ctx context.Context) error {
	if err := m.ClearCancel(ctx); err != nil {
		return err
	}
	if _, err := m.store.ListPopAll(ctx, queueKeyPrefix+m.sessionID); err != nil {
		return fmt.Errorf("clear queued messages: %w", err)
	}
	return nil
}
