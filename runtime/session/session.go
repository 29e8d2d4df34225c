// Package session defines the externally visible record of one agent run and
// its lifecycle primitives.
//
// A Session is created by the caller immediately before the reasoning loop
// starts, mutated by the supervisor on every tool call, and moved to completed
// storage exactly once by the Finalizer. Records live in the shared
// coordination store so any cooperating process can observe run state.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type (
	// Session captures the externally visible state of one agent run.
	Session struct {
		// ID is the opaque identifier of the run. Unique per run.
		ID string `json:"id"`
		// ContextID identifies the conversation or issue the run belongs to.
		// At most one active session should exist per context at a time; that
		// is a caller invariant, not enforced here.
		ContextID string `json:"contextId"`
		// Status is the current lifecycle state. Monotonic: terminal statuses
		// are never reopened.
		Status Status `json:"status"`
		// CurrentTool names the tool currently executing, or empty.
		CurrentTool string `json:"currentTool,omitempty"`
		// ToolsUsed lists the distinct tool names invoked so far. Ordering is
		// not significant.
		ToolsUsed []string `json:"toolsUsed,omitempty"`
		// Messages is the ordered conversation transcript. Append-only during
		// a run; interjections splice in with their original timestamps.
		Messages []Message `json:"messages,omitempty"`
		// Error holds the failure text when Status is StatusError.
		Error string `json:"error,omitempty"`
		// CreatedAt records when the session was created.
		CreatedAt time.Time `json:"createdAt"`
		// UpdatedAt records the last supervisor mutation.
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// Message is one conversation turn.
	Message struct {
		// Role identifies the speaker ("user", "assistant", "system").
		Role string `json:"role"`
		// Content is the turn text.
		Content string `json:"content"`
		// Timestamp is when the turn was produced. Interjected turns keep the
		// timestamp the sender queued them with.
		Timestamp time.Time `json:"timestamp"`
	}

	// Status represents the lifecycle state of a session.
	Status string
)

const (
	// StatusActive indicates the run is executing.
	StatusActive Status = "active"
	// StatusCompleted indicates the run finished successfully.
	StatusCompleted Status = "completed"
	// StatusCancelled indicates the run was terminated externally.
	StatusCancelled Status = "cancelled"
	// StatusError indicates the run failed permanently.
	StatusError Status = "error"
)

var (
	// ErrNotFound indicates the session does not exist in the store.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyExists indicates an active session with the same ID exists.
	ErrAlreadyExists = errors.New("session already exists")
)

// Terminal reports whether the status is one of the terminal states.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusError:
		return true
	}
	return false
}

// NewID returns a fresh opaque session identifier.
func NewID() string {
	return uuid.NewString()
}

// HasUsedTool reports whether name is already in the ToolsUsed set.
func (s *Session) HasUsedTool(name string) bool {
	for _, t := range s.ToolsUsed {
		if t == name {
			return true
		}
	}
	return false
}

// RecordToolUse marks name as the current tool and adds it to ToolsUsed.
func (s *Session) RecordToolUse(name string) {
	s.CurrentTool = name
	if !s.HasUsedTool(name) {
		s.ToolsUsed = append(s.ToolsUsed, name)
	}
}
