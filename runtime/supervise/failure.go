package supervise

import "strings"

type (
	// failurePattern maps an error-text substring to a failure kind and a
	// remediation hint. Patterns are checked in order; the first match wins.
	failurePattern struct {
		substrings []string
		kind       string
		hint       string
	}
)

// failurePatterns is the bounded classification table for tool failures. It
// only shapes narration; classification never changes whether or how an
// error propagates.
var failurePatterns = []failurePattern{
	{
		substrings: []string{"not found", "404", "no such file", "does not exist", "unknown revision"},
		kind:       "not-found",
		hint:       "The target may not exist or may have been moved. Verify the identifier or path before retrying.",
	},
	{
		substrings: []string{"permission denied", "forbidden", "403", "unauthorized", "401", "access denied"},
		kind:       "permission",
		hint:       "The credentials in use lack access to this resource. A different approach or scope is needed.",
	},
	{
		substrings: []string{"rate limit", "too many requests", "429", "quota exceeded"},
		kind:       "rate-limit",
		hint:       "The upstream service is throttling. Back off and try a different tool in the meantime.",
	},
	{
		substrings: []string{"conflict", "412", "409", "precondition failed", "stale", "has changed since"},
		kind:       "stale-content",
		hint:       "The target changed since it was last read. Re-read it and reapply the change.",
	},
	{
		substrings: []string{"timeout", "timed out", "connection refused", "connection reset", "network", "no route to host", "dns", "temporary failure"},
		kind:       "network",
		hint:       "This looks transient. The same call may succeed on a later attempt.",
	},
}

// classifyFailure matches the error text against the pattern table, returning
// a short kind and a remediation hint. Unmatched errors classify as
// "unexpected" with no hint.
func classifyFailure(errText string) (kind, hint string) {
	lower := strings.ToLower(errText)
	for _, p := range failurePatterns {
		for _, sub := range p.substrings {
			if strings.Contains(lower, sub) {
				return p.kind, p.hint
			}
		}
	}
	return "unexpected", ""
}
