// Package inmem provides an in-memory implementation of memory.Recorder for
// tests and local development. Entries are lost when the process exits;
// production deployments should use a durable backend such as
// features/memory/mongo.
package inmem

import (
	"context"
	"sync"

	"github.com/agentwarden/warden/runtime/memory"
)

type (
	// Recorder implements memory.Recorder with a process-local map keyed by
	// context ID and kind. Safe for concurrent use.
	Recorder struct {
		mu      sync.RWMutex
		entries map[string]map[string][]memory.Entry
	}
)

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{entries: make(map[string]map[string][]memory.Entry)}
}

// Record implements memory.Recorder.
func (r *Recorder) Record(_ context.Context, contextID, kind string, entry memory.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := r.entries[contextID]
	if kinds == nil {
		kinds = make(map[string][]memory.Entry)
		r.entries[contextID] = kinds
	}
	kinds[kind] = append(kinds[kind], entry)
	return nil
}

// Entries returns a copy of the recorded entries for the context and kind,
// oldest first. Test helper.
func (r *Recorder) Entries(contextID, kind string) []memory.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.entries[contextID][kind]
	out := make([]memory.Entry, len(entries))
	copy(out, entries)
	return out
}

// Compile-time check that Recorder implements memory.Recorder.
var _ memory.Recorder = (*Recorder)(nil)
