package supervise

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentwarden/warden/runtime/coord"
	"github.com/agentwarden/warden/runtime/coord/inmem"
	meminmem "github.com/agentwarden/warden/runtime/memory/inmem"
	"github.com/agentwarden/warden/runtime/session"
	"github.com/agentwarden/warden/runtime/tools"
)

type testHarness struct {
	run      *Run
	store    *inmem.Store
	sessions *session.Store
	memory   *meminmem.Recorder
	mailbox  *coord.Mailbox
	feed     *captureFeed
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	store := inmem.New()
	sessions, err := session.NewStore(store)
	require.NoError(t, err)

	feed := &captureFeed{}
	fin, err := session.NewFinalizer(sessions, store, session.WithActivityLogger(feed))
	require.NoError(t, err)

	registry := tools.NewRegistry()
	for _, d := range []tools.Descriptor{
		{Name: "searchCode", Category: tools.CategorySearch, Description: "Search the indexed repository"},
		{Name: "readFile", Category: tools.CategoryRead},
		{Name: "analyzeDeps", Category: tools.CategoryAnalysis},
		{Name: "createFile", Category: tools.CategoryAction},
	} {
		require.NoError(t, registry.Register(d))
	}

	recorder := meminmem.New()
	run, err := NewRun(Config{
		SessionID: "s1",
		ContextID: "issue-42",
		Coord:     store,
		Sessions:  sessions,
		Finalizer: fin,
		Memory:    recorder,
		Registry:  registry,
		Activity:  feed,
	})
	require.NoError(t, err)

	require.NoError(t, sessions.Create(context.Background(), session.Session{ID: "s1", ContextID: "issue-42"}))

	mailbox, err := coord.NewMailbox(store, "s1")
	require.NoError(t, err)

	return &testHarness{
		run:      run,
		store:    store,
		sessions: sessions,
		memory:   recorder,
		mailbox:  mailbox,
		feed:     feed,
	}
}

// countingExecutor returns a fixed result and counts invocations.
func countingExecutor(result any, err error) (Executor, *int) {
	calls := new(int)
	return func(ctx context.Context, payload any, update StatusFunc) (any, error) {
		*calls++
		return result, err
	}, calls
}

func TestNewRunValidation(t *testing.T) {
	_, err := NewRun(Config{})
	require.EqualError(t, err, "session id is required")

	h := newHarness(t)
	cfg := Config{
		SessionID: "s2",
		ContextID: "issue-43",
		Coord:     h.store,
		Sessions:  h.sessions,
		Memory:    h.memory,
	}
	_, err = NewRun(cfg)
	require.EqualError(t, err, "finalizer is required")
}

func TestSuccessPath(t *testing.T) {
	h := newHarness(t)
	exec, calls := countingExecutor(map[string]any{"results": []any{"a", "b"}}, nil)
	wrapped := h.run.Wrap("searchCode", exec)

	result, err := wrapped(context.Background(), map[string]any{"query": "retry"}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, *calls)
	require.NotNil(t, result)

	// Audit entry with input and output.
	entries := h.memory.Entries("issue-42", "action")
	require.Len(t, entries, 1)
	require.Equal(t, "searchCode", entries[0].Tool)
	require.True(t, entries[0].Success)
	require.NotNil(t, entries[0].Input)
	require.NotNil(t, entries[0].Output)
	require.False(t, entries[0].Timestamp.IsZero())

	// Session record reflects the call.
	sess, err := h.sessions.LoadActive(context.Background(), "s1")
	require.NoError(t, err)
	require.Contains(t, sess.ToolsUsed, "searchCode")

	// Narration: the registered description before, the summary after.
	require.Len(t, h.feed.thoughts, 2)
	require.Contains(t, h.feed.thoughts[0], "Search the indexed repository")
	require.Contains(t, h.feed.thoughts[1], "found 2 results")

	require.Equal(t, []string{"searchCode"}, h.run.Tracker().ToolsUsed())
}

func TestLocalCancellationRefusesBeforeExecution(t *testing.T) {
	h := newHarness(t)
	exec, calls := countingExecutor(nil, nil)
	wrapped := h.run.Wrap("searchCode", exec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := wrapped(ctx, nil, nil)
	require.True(t, IsCanceled(err))
	var cerr *CancelError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, CancelLocal, cerr.Reason)
	require.ErrorIs(t, cerr.Cause, context.Canceled)
	require.Zero(t, *calls)

	// Local cancellation does not finalize: the caller owns that decision.
	_, err = h.sessions.LoadActive(context.Background(), "s1")
	require.NoError(t, err)
}

func TestExternalCancellationFinalizes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.mailbox.RequestCancel(ctx, 0))

	exec, calls := countingExecutor(nil, nil)
	_, err := h.run.Wrap("searchCode", exec)(ctx, nil, nil)

	var cerr *CancelError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, CancelExternal, cerr.Reason)
	require.Zero(t, *calls)

	done, err := h.sessions.LoadCompleted(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, session.StatusCancelled, done.Status)
}

func TestLocalCancellationWinsOverExternal(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.mailbox.RequestCancel(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec, _ := countingExecutor(nil, nil)
	_, err := h.run.Wrap("searchCode", exec)(ctx, nil, nil)

	var cerr *CancelError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, CancelLocal, cerr.Reason)

	// The local path never touched the store, so the session stays active.
	_, err = h.sessions.LoadActive(context.Background(), "s1")
	require.NoError(t, err)
}

func TestLoopDetection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exec, calls := countingExecutor("ok", nil)
	wrapped := h.run.Wrap("searchCode", exec)
	payload := map[string]any{"query": "retry"}

	_, err := wrapped(ctx, payload, nil)
	require.NoError(t, err)
	_, err = wrapped(ctx, payload, nil)
	require.NoError(t, err)

	// The third identical call is refused without executing.
	_, err = wrapped(ctx, payload, nil)
	require.True(t, IsLoopDetected(err))
	var lerr *LoopError
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, tools.Ident("searchCode"), lerr.Tool)
	require.Equal(t, 3, lerr.Occurrences)
	require.Equal(t, 2, *calls)

	// And so is every identical call after it.
	_, err = wrapped(ctx, payload, nil)
	require.True(t, IsLoopDetected(err))
	require.Equal(t, 2, *calls)

	// A run-ending error, not a cancellation.
	require.False(t, IsCanceled(err))

	// Different arguments do not trip the breaker.
	_, err = wrapped(ctx, map[string]any{"query": "backoff"}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, *calls)

	// The session was not finalized; the loop error goes back to the
	// reasoning loop, which picks a different approach.
	_, err = h.sessions.LoadActive(ctx, "s1")
	require.NoError(t, err)
}

func TestLoopWindowEviction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exec, _ := countingExecutor("ok", nil)
	wrapped := h.run.Wrap("searchCode", exec)
	payload := map[string]any{"query": "retry"}

	_, err := wrapped(ctx, payload, nil)
	require.NoError(t, err)
	_, err = wrapped(ctx, payload, nil)
	require.NoError(t, err)

	// Push the two identical signatures out of the window.
	for i := 0; i < signatureWindow; i++ {
		_, err = wrapped(ctx, map[string]any{"query": fmt.Sprintf("q%d", i)}, nil)
		require.NoError(t, err)
	}

	// The signature has been forgotten, so the call runs again.
	_, err = wrapped(ctx, payload, nil)
	require.NoError(t, err)
}

func TestStopInterjectionWinsOverBatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Content queued before and after the stop must never be applied.
	require.NoError(t, h.mailbox.Push(ctx, coord.QueuedMessage{Content: "first"}))
	require.NoError(t, h.mailbox.Push(ctx, coord.QueuedMessage{Type: coord.MessageStop}))
	require.NoError(t, h.mailbox.Push(ctx, coord.QueuedMessage{Content: "second"}))

	exec, calls := countingExecutor(nil, nil)
	_, err := h.run.Wrap("searchCode", exec)(ctx, nil, nil)

	var cerr *CancelError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, CancelStop, cerr.Reason)
	require.Zero(t, *calls)

	done, err := h.sessions.LoadCompleted(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, session.StatusCancelled, done.Status)
	require.Empty(t, done.Messages)

	require.Contains(t, h.feed.responses, "Stopping now — a stop command was received.")
}

func TestContentInterjectionsSpliceIntoTranscript(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ts1 := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	ts2 := ts1.Add(time.Minute)
	require.NoError(t, h.mailbox.Push(ctx, coord.QueuedMessage{Content: "also check the retry helper", Timestamp: ts1}))
	require.NoError(t, h.mailbox.Push(ctx, coord.QueuedMessage{Content: "and the backoff config", Timestamp: ts2}))

	exec, calls := countingExecutor("ok", nil)
	_, err := h.run.Wrap("searchCode", exec)(ctx, map[string]any{"query": "retry"}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, *calls)

	sess, err := h.sessions.LoadActive(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
	require.Equal(t, "user", sess.Messages[0].Role)
	require.Equal(t, "also check the retry helper", sess.Messages[0].Content)
	require.Equal(t, ts1, sess.Messages[0].Timestamp)
	require.Equal(t, ts2, sess.Messages[1].Timestamp)
}

func TestExecutionErrorPropagatesUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sentinel := errors.New("upstream exploded: permission denied")
	exec, _ := countingExecutor(nil, sentinel)

	_, err := h.run.Wrap("readFile", exec)(ctx, map[string]any{"path": "README.md"}, nil)
	require.Same(t, sentinel, err)

	// Failure is audited with the original error text.
	entries := h.memory.Entries("issue-42", "action")
	require.Len(t, entries, 1)
	require.False(t, entries[0].Success)
	require.Equal(t, sentinel.Error(), entries[0].Error)
	require.Nil(t, entries[0].Output)

	// Narration names the classification and remediation hint.
	last := h.feed.thoughts[len(h.feed.thoughts)-1]
	require.Contains(t, last, "failed (permission)")
	require.Contains(t, last, "credentials")

	// A failed call is not a loop and does not finalize the session.
	_, err = h.sessions.LoadActive(ctx, "s1")
	require.NoError(t, err)
}

func TestFailedCallsStillCountTowardLoopDetection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exec, calls := countingExecutor(nil, errors.New("boom"))
	wrapped := h.run.Wrap("readFile", exec)
	payload := map[string]any{"path": "README.md"}

	_, err := wrapped(ctx, payload, nil)
	require.Error(t, err)
	_, err = wrapped(ctx, payload, nil)
	require.Error(t, err)

	_, err = wrapped(ctx, payload, nil)
	require.True(t, IsLoopDetected(err))
	require.Equal(t, 2, *calls)
}

func TestStrategyAdvancesThroughSupervisedCalls(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ok, _ := countingExecutor("ok", nil)

	require.Equal(t, PhasePlanning, h.run.Strategy().Phase())

	_, err := h.run.Wrap("searchCode", ok)(ctx, map[string]any{"query": "a"}, nil)
	require.NoError(t, err)
	_, err = h.run.Wrap("searchCode", ok)(ctx, map[string]any{"query": "b"}, nil)
	require.NoError(t, err)
	require.Equal(t, PhasePlanning, h.run.Strategy().Phase())

	_, err = h.run.Wrap("readFile", ok)(ctx, map[string]any{"path": "a.go"}, nil)
	require.NoError(t, err)
	require.Equal(t, PhaseGathering, h.run.Strategy().Phase())

	_, err = h.run.Wrap("createFile", ok)(ctx, map[string]any{"path": "b.go"}, nil)
	require.NoError(t, err)
	require.Equal(t, PhaseActing, h.run.Strategy().Phase())
	require.True(t, h.run.Strategy().HasStartedActions())
}

func TestActionPinsActingFromPlanning(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ok, _ := countingExecutor(map[string]any{"path": "b.go"}, nil)

	_, err := h.run.Wrap("createFile", ok)(ctx, map[string]any{"path": "b.go"}, nil)
	require.NoError(t, err)
	require.Equal(t, PhaseActing, h.run.Strategy().Phase())

	// Later investigation never demotes the phase.
	_, err = h.run.Wrap("searchCode", ok)(ctx, map[string]any{"query": "x"}, nil)
	require.NoError(t, err)
	require.Equal(t, PhaseActing, h.run.Strategy().Phase())

	// The completed action is tracked for the final report.
	require.Len(t, h.run.Tracker().ActionsPerformed(), 1)
}

func TestStatusFuncPassedThrough(t *testing.T) {
	h := newHarness(t)
	var got []string
	exec := func(ctx context.Context, payload any, update StatusFunc) (any, error) {
		update("halfway")
		return "ok", nil
	}

	_, err := h.run.Wrap("searchCode", exec)(context.Background(), nil, func(text string) {
		got = append(got, text)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"halfway"}, got)
}

func TestEndMarksExplicitCompletion(t *testing.T) {
	h := newHarness(t)
	require.False(t, h.run.Tracker().EndedExplicitly())
	h.run.End()
	require.True(t, h.run.Tracker().EndedExplicitly())
}

type captureFeed struct {
	thoughts  []string
	responses []string
}

func (f *captureFeed) Thought(ctx context.Context, contextID, text string) error {
	f.thoughts = append(f.thoughts, text)
	return nil
}

func (f *captureFeed) Response(ctx context.Context, contextID, text string) error {
	f.responses = append(f.responses, text)
	return nil
}
