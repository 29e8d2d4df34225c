// Package tools defines tool identity and classification metadata shared by
// the supervision runtime.
//
// Tools are classified into coarse categories once, at registration time. The
// supervisor consults the resulting table on every call instead of re-deriving
// the category from the tool name, so classification stays stable for the
// lifetime of a registry.
package tools

// Ident is the strong type for tool identifiers (e.g., "searchCode",
// "createPullRequest"). Use this type when referencing tools in maps or APIs
// to avoid accidental mixing with free-form strings.
type Ident string

// Category is the coarse classification of a tool used to drive execution
// strategy. A tool belongs to exactly one category.
type Category string

const (
	// CategorySearch marks tools that locate candidate material (code search,
	// web search, issue search).
	CategorySearch Category = "search"
	// CategoryRead marks tools that retrieve known material (file reads,
	// issue fetches, page fetches).
	CategoryRead Category = "read"
	// CategoryAnalysis marks tools that derive structure from material
	// already in hand (summaries, diffs, symbol lookups).
	CategoryAnalysis Category = "analysis"
	// CategoryAction marks tools with external side effects (file edits,
	// comments, branch pushes, messages).
	CategoryAction Category = "action"
	// CategoryUncategorized is the zero classification: the tool contributes
	// to no strategy counter.
	CategoryUncategorized Category = "uncategorized"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySearch, CategoryRead, CategoryAnalysis, CategoryAction, CategoryUncategorized:
		return true
	}
	return false
}

// Descriptor declares a tool to the registry.
type Descriptor struct {
	// Name is the tool identifier. Required.
	Name Ident
	// Category classifies the tool. Empty defaults to CategoryUncategorized.
	Category Category
	// Description provides human-readable context used in narration.
	Description string
	// PayloadSchema optionally holds a JSON schema for the tool payload.
	// When present it is compiled at registration time; a schema that fails
	// to compile rejects the registration.
	PayloadSchema []byte
}
