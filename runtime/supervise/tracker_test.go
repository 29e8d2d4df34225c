package supervise

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/agentwarden/warden/runtime/tools"
)

func TestCallSignatureDeterministic(t *testing.T) {
	a := CallSignature("searchCode", map[string]any{"query": "retry", "limit": 5})
	b := CallSignature("searchCode", map[string]any{"limit": 5, "query": "retry"})
	require.Equal(t, a, b)
}

func TestCallSignatureDistinguishesToolAndPayload(t *testing.T) {
	base := CallSignature("searchCode", map[string]any{"query": "retry"})
	require.NotEqual(t, base, CallSignature("readFile", map[string]any{"query": "retry"}))
	require.NotEqual(t, base, CallSignature("searchCode", map[string]any{"query": "backoff"}))
	require.NotEqual(t, base, CallSignature("searchCode", nil))
}

func TestCallSignatureUnserializablePayload(t *testing.T) {
	payload := map[string]any{"f": func() {}}
	sig := CallSignature("searchCode", payload)
	require.NotEmpty(t, sig)
	require.Equal(t, sig, CallSignature("searchCode", payload))
}

func TestCountRecentAndWindow(t *testing.T) {
	tr := NewTracker()
	sig := CallSignature("searchCode", map[string]any{"query": "retry"})

	require.Zero(t, tr.CountRecent(sig))
	tr.RecordCall(sig)
	tr.RecordCall(sig)
	require.Equal(t, 2, tr.CountRecent(sig))

	// Distinct signatures push the old ones out of the window.
	for i := 0; i < signatureWindow; i++ {
		tr.RecordCall(CallSignature("searchCode", map[string]any{"query": fmt.Sprintf("q%d", i)}))
	}
	require.Zero(t, tr.CountRecent(sig))
}

func TestRecordToolUsedDeduplicates(t *testing.T) {
	tr := NewTracker()
	tr.RecordToolUsed("searchCode")
	tr.RecordToolUsed("readFile")
	tr.RecordToolUsed("searchCode")
	require.Equal(t, []string{"searchCode", "readFile"}, tr.ToolsUsed())
}

func TestRecordAction(t *testing.T) {
	tr := NewTracker()
	tr.RecordAction("created src/retry.go")
	tr.RecordAction("updated README.md")
	require.Equal(t, []string{"created src/retry.go", "updated README.md"}, tr.ActionsPerformed())
}

// TestRepeatedSignatureAlwaysTripsThreshold checks that for any payload and
// any number of identical consecutive calls at or beyond the threshold, the
// retained count reaches the threshold and stays there or above until the
// window caps it.
func TestRepeatedSignatureAlwaysTripsThreshold(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("identical calls reach the loop threshold", prop.ForAll(
		func(query string, repeats int) bool {
			tr := NewTracker()
			sig := CallSignature("searchCode", map[string]any{"query": query})
			tripped := false
			for i := 0; i < repeats; i++ {
				tr.RecordCall(sig)
				if tr.CountRecent(sig) >= loopThreshold {
					tripped = true
					// Once at the threshold, every later identical call
					// stays at or above it (bounded by the window).
					if tr.CountRecent(sig) > signatureWindow {
						return false
					}
				}
			}
			return tripped == (repeats >= loopThreshold)
		},
		gen.AlphaString(),
		gen.IntRange(0, 3*signatureWindow),
	))

	properties.TestingRun(t)
}

// TestDistinctSignaturesNeverTrip checks that a stream of calls whose
// payloads all differ never reaches the loop threshold.
func TestDistinctSignaturesNeverTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("distinct calls never reach the loop threshold", prop.ForAll(
		func(count int) bool {
			tr := NewTracker()
			for i := 0; i < count; i++ {
				sig := CallSignature("searchCode", map[string]any{"query": fmt.Sprintf("q%d", i)})
				tr.RecordCall(sig)
				if tr.CountRecent(sig) >= loopThreshold {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 5*signatureWindow),
	))

	properties.TestingRun(t)
}

// TestSignatureStability checks that signatures are stable across repeated
// derivation for arbitrary string payload fields.
func TestSignatureStability(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("signatures are stable across calls", prop.ForAll(
		func(tool, query, path string) bool {
			name := tools.Ident("t-" + tool)
			payload := map[string]any{"query": query, "path": path}
			first := CallSignature(name, payload)
			second := CallSignature(name, map[string]any{"path": path, "query": query})
			return first == second
		},
		gen.AlphaString(),
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
