package supervise

import (
	"encoding/json"
	"fmt"

	"github.com/agentwarden/warden/runtime/tools"
)

// signatureWindow bounds how many recent call signatures are retained for
// loop detection; the oldest is evicted first.
const signatureWindow = 10

// loopThreshold is the number of identical signatures among the retained
// window, counting the incoming call, at which the circuit breaker refuses
// the call. A tool therefore executes at most loopThreshold-1 times with the
// same arguments.
const loopThreshold = 3

type (
	// Tracker is the process-local record of what a run has done. It is
	// never persisted externally and, because a run is single-threaded
	// cooperative, it needs no locking.
	Tracker struct {
		toolsUsed        map[string]struct{}
		toolOrder        []string
		actionsPerformed []string
		recentCalls      []string
		endedExplicitly  bool
	}
)

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{toolsUsed: make(map[string]struct{})}
}

// CallSignature derives the loop-detection signature for a call: the tool
// name plus the deterministic serialization of its payload. Two calls loop
// only when both match byte for byte. A payload that cannot be serialized
// falls back to its formatted value so detection still keys on something
// stable.
func CallSignature(name tools.Ident, payload any) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%s:%v", name, payload)
	}
	return fmt.Sprintf("%s:%s", name, raw)
}

// CountRecent returns how many retained signatures equal sig.
func (t *Tracker) CountRecent(sig string) int {
	n := 0
	for _, s := range t.recentCalls {
		if s == sig {
			n++
		}
	}
	return n
}

// RecordCall retains sig, evicting the oldest signature beyond the window.
// Called for every supervised call regardless of outcome.
func (t *Tracker) RecordCall(sig string) {
	t.recentCalls = append(t.recentCalls, sig)
	if len(t.recentCalls) > signatureWindow {
		t.recentCalls = t.recentCalls[len(t.recentCalls)-signatureWindow:]
	}
}

// RecordToolUsed adds the tool to the distinct-tools set.
func (t *Tracker) RecordToolUsed(name tools.Ident) {
	key := string(name)
	if _, ok := t.toolsUsed[key]; ok {
		return
	}
	t.toolsUsed[key] = struct{}{}
	t.toolOrder = append(t.toolOrder, key)
}

// RecordAction appends a completed mutating operation description.
func (t *Tracker) RecordAction(description string) {
	t.actionsPerformed = append(t.actionsPerformed, description)
}

// ToolsUsed returns the distinct tools invoked so far, in first-use order.
func (t *Tracker) ToolsUsed() []string {
	out := make([]string, len(t.toolOrder))
	copy(out, t.toolOrder)
	return out
}

// ActionsPerformed returns the ordered list of completed mutating operations.
func (t *Tracker) ActionsPerformed() []string {
	out := make([]string, len(t.actionsPerformed))
	copy(out, t.actionsPerformed)
	return out
}

// End marks that the reasoning loop explicitly declared completion.
func (t *Tracker) End() {
	t.endedExplicitly = true
}

// EndedExplicitly reports whether the reasoning loop declared completion, as
// opposed to abandoning the run.
func (t *Tracker) EndedExplicitly() bool {
	return t.endedExplicitly
}
