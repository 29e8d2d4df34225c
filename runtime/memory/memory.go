// Package memory defines the durable per-context audit log contract. Every
// supervised tool invocation produces exactly one entry whose success flag
// matches the call outcome. The runtime only writes; retrieval belongs to the
// consumers of the audit trail.
package memory

import (
	"context"
	"time"
)

type (
	// Entry is one recorded tool invocation.
	Entry struct {
		// Tool is the invoked tool identifier.
		Tool string `json:"tool" bson:"tool"`
		// Input is the payload the tool was invoked with.
		Input any `json:"input,omitempty" bson:"input,omitempty"`
		// Output is the tool result. Set only on success.
		Output any `json:"output,omitempty" bson:"output,omitempty"`
		// Error is the failure text. Set only on failure.
		Error string `json:"error,omitempty" bson:"error,omitempty"`
		// Success reports whether the invocation succeeded.
		Success bool `json:"success" bson:"success"`
		// Timestamp is when the invocation completed.
		Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	}

	// Recorder appends entries to the per-context audit log.
	//
	// Recorder implementations must be durable: failures surface to callers
	// so the supervisor can log them, though recording failures never abort
	// the supervised call.
	Recorder interface {
		// Record appends the entry under the given context and kind. The
		// supervisor always records with KindAction.
		Record(ctx context.Context, contextID, kind string, entry Entry) error
	}
)

// KindAction tags entries produced by supervised tool invocations.
const KindAction = "action"
