package supervise

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentwarden/warden/runtime/tools"
)

func TestSuccessSummarySearch(t *testing.T) {
	require.Equal(t, "searchCode found 2 results",
		successSummary(tools.CategorySearch, "searchCode", []any{"a", "b"}))
	require.Equal(t, "searchCode found 1 result",
		successSummary(tools.CategorySearch, "searchCode", map[string]any{"results": []any{"a"}}))
	require.Equal(t, "searchCode found 7 results",
		successSummary(tools.CategorySearch, "searchCode", map[string]any{"count": 7}))
}

func TestSuccessSummarySearchFallsBack(t *testing.T) {
	got := successSummary(tools.CategorySearch, "searchCode", map[string]any{"unrelated": true})
	require.True(t, strings.HasPrefix(got, "searchCode finished:"), got)
}

func TestSuccessSummaryRead(t *testing.T) {
	require.Equal(t, "readFile read 11 bytes (2 lines)",
		successSummary(tools.CategoryRead, "readFile", "hello\nworld"))
	require.Equal(t, "readFile read 5 bytes (1 lines)",
		successSummary(tools.CategoryRead, "readFile", map[string]any{"content": "hello"}))
}

func TestSuccessSummaryAction(t *testing.T) {
	require.Equal(t, "createFile created src/retry.go",
		successSummary(tools.CategoryAction, "createFile", map[string]any{"path": "src/retry.go"}))
	require.Equal(t, "createIssue created 42",
		successSummary(tools.CategoryAction, "createIssue", map[string]any{"number": 42}))
}

func TestSuccessSummaryGeneric(t *testing.T) {
	got := successSummary(tools.CategoryAnalysis, "analyzeDeps", map[string]any{"cycles": 0})
	require.Contains(t, got, "analyzeDeps finished:")

	require.Equal(t, "ping finished: ok",
		successSummary(tools.CategoryUncategorized, "ping", nil))
}

func TestClampPreviewNormalizesWhitespace(t *testing.T) {
	require.Equal(t, "a b c", clampPreview("a\n\tb   c"))
	require.Equal(t, "", clampPreview(""))
}

func TestClampPreviewTruncates(t *testing.T) {
	long := strings.Repeat("x", previewMax*2)
	got := clampPreview(long)
	require.True(t, strings.HasSuffix(got, "…"))
	require.LessOrEqual(t, len([]rune(got)), previewMax+1)
}

func TestResultCountShapes(t *testing.T) {
	n, ok := resultCount([]string{"a", "b", "c"})
	require.True(t, ok)
	require.Equal(t, 3, n)

	n, ok = resultCount(map[string]any{"items": []any{1, 2}})
	require.True(t, ok)
	require.Equal(t, 2, n)

	n, ok = resultCount(map[string]any{"count": float64(9)})
	require.True(t, ok)
	require.Equal(t, 9, n)

	_, ok = resultCount(nil)
	require.False(t, ok)
	_, ok = resultCount("text")
	require.False(t, ok)
}

func TestResultTextShapes(t *testing.T) {
	text, ok := resultText([]byte("raw"))
	require.True(t, ok)
	require.Equal(t, "raw", text)

	text, ok = resultText(map[string]any{"body": "payload"})
	require.True(t, ok)
	require.Equal(t, "payload", text)

	_, ok = resultText(42)
	require.False(t, ok)
}

func TestCreatedIdentShapes(t *testing.T) {
	id, ok := createdIdent(map[string]any{"id": "abc-123"})
	require.True(t, ok)
	require.Equal(t, "abc-123", id)

	id, ok = createdIdent(map[string]any{"number": float64(7)})
	require.True(t, ok)
	require.Equal(t, "7", id)

	_, ok = createdIdent(map[string]any{"unrelated": true})
	require.False(t, ok)
	_, ok = createdIdent("plain")
	require.False(t, ok)
}
