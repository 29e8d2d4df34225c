package supervise

import (
	"errors"
	"fmt"

	"github.com/agentwarden/warden/runtime/tools"
)

type (
	// CancelError reports that a supervised call was refused because the run
	// is cancelled. It is synthesized before the real tool executes, so a
	// cancelled call never has partial side effects.
	CancelError struct {
		// Reason identifies which cancellation source fired.
		Reason CancelReason
		// Cause holds the underlying signal error, if any (for example the
		// context error for local cancellation).
		Cause error
	}

	// CancelReason identifies the source of a cancellation.
	CancelReason string

	// LoopError reports that the circuit breaker refused a call because too
	// many recent calls carried an identical signature. The underlying tool
	// is never invoked for a refused call.
	LoopError struct {
		// Tool is the refused tool.
		Tool tools.Ident
		// Occurrences is how many of the recent recorded signatures matched
		// before this call.
		Occurrences int
	}
)

const (
	// CancelLocal means the process-local signal (context) was triggered.
	CancelLocal CancelReason = "local"
	// CancelExternal means the coordination-store cancellation flag was set.
	CancelExternal CancelReason = "external"
	// CancelStop means a stop interjection was drained from the mailbox.
	CancelStop CancelReason = "stop"
)

// Error implements the error interface.
func (e *CancelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("run cancelled (%s): %s", e.Reason, e.Cause.Error())
	}
	return fmt.Sprintf("run cancelled (%s)", e.Reason)
}

// Unwrap returns the underlying signal error.
func (e *CancelError) Unwrap() error {
	return e.Cause
}

// Error implements the error interface.
func (e *LoopError) Error() string {
	return fmt.Sprintf("loop detected: %s invoked %d times recently with identical arguments", e.Tool, e.Occurrences)
}

// IsCanceled reports whether err is (or wraps) a cancellation refusal.
func IsCanceled(err error) bool {
	var ce *CancelError
	return errors.As(err, &ce)
}

// IsLoopDetected reports whether err is (or wraps) a circuit-breaker refusal.
func IsLoopDetected(err error) bool {
	var le *LoopError
	return errors.As(err, &le)
}
