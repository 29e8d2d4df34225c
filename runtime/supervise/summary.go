package supervise

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/agentwarden/warden/runtime/tools"
)

// previewMax bounds narrated previews to a length suitable for comment and
// chat surfaces.
const previewMax = 140

// successSummary derives a short human-readable description of a successful
// call using per-category heuristics. Purely presentational: it never
// inspects the result beyond best-effort reflection and always returns
// something narratable.
func successSummary(category tools.Category, name tools.Ident, result any) string {
	switch category {
	case tools.CategorySearch:
		if n, ok := resultCount(result); ok {
			if n == 1 {
				return fmt.Sprintf("%s found 1 result", name)
			}
			return fmt.Sprintf("%s found %d results", name, n)
		}
	case tools.CategoryRead:
		if text, ok := resultText(result); ok {
			lines := strings.Count(text, "\n") + 1
			return fmt.Sprintf("%s read %d bytes (%d lines)", name, len(text), lines)
		}
	case tools.CategoryAction:
		if id, ok := createdIdent(result); ok {
			return fmt.Sprintf("%s created %s", name, id)
		}
	}
	return fmt.Sprintf("%s finished: %s", name, clampPreview(genericPreview(result)))
}

// resultCount extracts a result count from slice results or from maps that
// carry a conventional collection field.
func resultCount(result any) (int, bool) {
	if result == nil {
		return 0, false
	}
	v := reflect.ValueOf(result)
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		return v.Len(), true
	}
	m, ok := result.(map[string]any)
	if !ok {
		return 0, false
	}
	for _, key := range []string{"results", "items", "matches", "hits"} {
		if inner, ok := m[key]; ok {
			iv := reflect.ValueOf(inner)
			if iv.Kind() == reflect.Slice || iv.Kind() == reflect.Array {
				return iv.Len(), true
			}
		}
	}
	if n, ok := m["count"]; ok {
		switch c := n.(type) {
		case int:
			return c, true
		case float64:
			return int(c), true
		}
	}
	return 0, false
}

// resultText extracts textual content from string or byte results, or from
// maps carrying a conventional content field.
func resultText(result any) (string, bool) {
	switch r := result.(type) {
	case string:
		return r, true
	case []byte:
		return string(r), true
	case map[string]any:
		for _, key := range []string{"content", "text", "body"} {
			if s, ok := r[key].(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

// createdIdent extracts the identifier of a created entity from maps carrying
// a conventional identity field.
func createdIdent(result any) (string, bool) {
	m, ok := result.(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range []string{"id", "number", "url", "name", "path"} {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case int:
			return fmt.Sprintf("%d", v), true
		case float64:
			return fmt.Sprintf("%d", int(v)), true
		}
	}
	return "", false
}

// genericPreview renders an arbitrary result as compact JSON, falling back to
// fmt formatting for unmarshalable values.
func genericPreview(result any) string {
	if result == nil {
		return "ok"
	}
	if s, ok := result.(string); ok {
		return s
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(raw)
}

// clampPreview normalizes whitespace and bounds previews to a reasonable
// length for narration surfaces.
func clampPreview(in string) string {
	if in == "" {
		return ""
	}
	out := make([]rune, 0, len(in))
	prevSpace := false
	for _, r := range in {
		switch r {
		case '\n', '\r', '\t', ' ':
			if !prevSpace {
				out = append(out, ' ')
			}
			prevSpace = true
		default:
			out = append(out, r)
			prevSpace = false
		}
	}
	if len(out) <= previewMax {
		return strings.TrimSpace(string(out))
	}
	return strings.TrimSpace(string(out[:previewMax])) + "…"
}
