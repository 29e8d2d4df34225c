package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentwarden/warden/runtime/coord"
)

type (
	// Store persists session records in the shared coordination store so
	// cooperating processes can observe run state. Active records carry no
	// expiry; completed records keep a retention TTL so finished runs age out
	// of the store.
	Store struct {
		store        coord.Store
		completedTTL time.Duration
	}

	// StoreOption configures a Store.
	StoreOption func(*Store)
)

// Key layout within the shared store.
const (
	activeKeyPrefix    = "session:active:"
	completedKeyPrefix = "session:completed:"
	activeIndexKey     = "sessions:active"
)

// DefaultCompletedTTL is the retention applied to completed session records
// when no override is configured.
const DefaultCompletedTTL = 7 * 24 * time.Hour

// WithCompletedTTL overrides the retention of completed session records.
// Zero disables expiry.
func WithCompletedTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.completedTTL = ttl
	}
}

// NewStore builds a session store on top of the coordination store.
func NewStore(store coord.Store, opts ...StoreOption) (*Store, error) {
	if store == nil {
		return nil, errors.New("coordination store is required")
	}
	s := &Store{store: store, completedTTL: DefaultCompletedTTL}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	return s, nil
}

// Create stores a new active session record and indexes it. Returns
// ErrAlreadyExists when an active record with the same ID is present.
func (s *Store) Create(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return errors.New("session id is required")
	}
	if sess.ContextID == "" {
		return errors.New("context id is required")
	}
	if _, err := s.store.Get(ctx, activeKeyPrefix+sess.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, sess.ID)
	} else if !errors.Is(err, coord.ErrNotFound) {
		return fmt.Errorf("check active session: %w", err)
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	sess.Status = StatusActive
	if err := s.putActive(ctx, sess); err != nil {
		return err
	}
	if err := s.store.SetAdd(ctx, activeIndexKey, sess.ID); err != nil {
		return fmt.Errorf("index active session: %w", err)
	}
	return nil
}

// LoadActive returns the active session record. Returns ErrNotFound when the
// session does not exist or has already been finalized.
func (s *Store) LoadActive(ctx context.Context, sessionID string) (Session, error) {
	return s.load(ctx, activeKeyPrefix+sessionID)
}

// LoadCompleted returns the completed session record.
func (s *Store) LoadCompleted(ctx context.Context, sessionID string) (Session, error) {
	return s.load(ctx, completedKeyPrefix+sessionID)
}

// UpdateActive overwrites the active session record. The record must exist;
// finalized sessions are immutable through this path.
func (s *Store) UpdateActive(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return errors.New("session id is required")
	}
	if _, err := s.LoadActive(ctx, sess.ID); err != nil {
		return err
	}
	sess.UpdatedAt = time.Now().UTC()
	return s.putActive(ctx, sess)
}

// AppendMessages splices the given turns onto the active session transcript
// and persists the record in one write.
func (s *Store) AppendMessages(ctx context.Context, sessionID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	sess, err := s.LoadActive(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Messages = append(sess.Messages, msgs...)
	sess.UpdatedAt = time.Now().UTC()
	return s.putActive(ctx, sess)
}

// ListActive returns the IDs of sessions currently indexed as active, in
// unspecified order.
func (s *Store) ListActive(ctx context.Context) ([]string, error) {
	ids, err := s.store.SetMembers(ctx, activeIndexKey)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return ids, nil
}

// Complete moves the session record from active to completed storage tagged
// with the terminal status. The completed record is written before the active
// record is deleted so an observer may briefly see both, but the active
// record never survives a successful call. Idempotent: completing an
// already-completed session returns the stored record with moved false.
func (s *Store) Complete(ctx context.Context, sessionID string, status Status, errMsg string) (sess Session, moved bool, err error) {
	if !status.Terminal() {
		return Session{}, false, fmt.Errorf("status %q is not terminal", status)
	}
	sess, err = s.LoadActive(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		// Already finalized (or never created): surface the completed record
		// when present so racing finalizers converge on the same state.
		if done, doneErr := s.LoadCompleted(ctx, sessionID); doneErr == nil {
			return done, false, nil
		}
		return Session{}, false, err
	}
	if err != nil {
		return Session{}, false, err
	}
	now := time.Now().UTC()
	sess.Status = status
	sess.CurrentTool = ""
	sess.Error = errMsg
	sess.UpdatedAt = now
	raw, merr := json.Marshal(sess)
	if merr != nil {
		return Session{}, false, fmt.Errorf("marshal session %s: %w", sessionID, merr)
	}
	if err := s.store.Set(ctx, completedKeyPrefix+sessionID, string(raw), s.completedTTL); err != nil {
		return Session{}, false, fmt.Errorf("store completed session %s: %w", sessionID, err)
	}
	if err := s.store.Delete(ctx, activeKeyPrefix+sessionID); err != nil {
		return Session{}, false, fmt.Errorf("remove active session %s: %w", sessionID, err)
	}
	if err := s.store.SetRemove(ctx, activeIndexKey, sessionID); err != nil {
		return Session{}, false, fmt.Errorf("unindex active session %s: %w", sessionID, err)
	}
	return sess, true, nil
}

func (s *Store) putActive(ctx context.Context, sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}
	if err := s.store.Set(ctx, activeKeyPrefix+sess.ID, string(raw), 0); err != nil {
		return fmt.Errorf("store active session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, key string) (Session, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, coord.ErrNotFound) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return sess, nil
}
