package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

type (
	// Registry resolves tool categories and payload schemas. Classification is
	// fixed when a tool is registered; lookups never re-derive it from the
	// tool name. Safe for concurrent use.
	Registry struct {
		mu      sync.RWMutex
		entries map[Ident]*entry
	}

	entry struct {
		descriptor Descriptor
		schema     *jsonschema.Schema
	}
)

// ErrNotRegistered indicates a tool ident unknown to the registry.
var ErrNotRegistered = errors.New("tool not registered")

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Ident]*entry)}
}

// Register records the descriptor. When the descriptor carries a payload
// schema it is compiled here so invalid schemas fail registration rather than
// a live call. Re-registering an ident overwrites the previous descriptor.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return errors.New("tool name is required")
	}
	if d.Category == "" {
		d.Category = CategoryUncategorized
	}
	if !d.Category.Valid() {
		return fmt.Errorf("tool %q: unknown category %q", d.Name, d.Category)
	}
	e := &entry{descriptor: d}
	if len(d.PayloadSchema) > 0 {
		sch, err := compileSchema(d.Name, d.PayloadSchema)
		if err != nil {
			return err
		}
		e.schema = sch
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[d.Name] = e
	return nil
}

// Category returns the registered category for the tool. Unregistered tools
// are uncategorized: they execute normally but contribute to no strategy
// counter.
func (r *Registry) Category(name Ident) Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return CategoryUncategorized
	}
	return e.descriptor.Category
}

// Describe returns the registered descriptor.
func (r *Registry) Describe(name Ident) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return e.descriptor, nil
}

// ValidatePayload checks the payload against the tool's registered schema.
// Tools registered without a schema accept any payload.
func (r *Registry) ValidatePayload(name Ident, payload any) error {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	if e.schema == nil {
		return nil
	}
	// The schema validator operates on generic JSON values, so round-trip
	// typed payloads through JSON before validating.
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", name, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode payload for %s: %w", name, err)
	}
	return e.schema.Validate(doc)
}

// Names returns the registered tool idents in unspecified order.
func (r *Registry) Names() []Ident {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Ident, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	return out
}

func compileSchema(name Ident, schemaBytes []byte) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(schemaBytes, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema for %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("%s.schema.json", name)
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource for %s: %w", name, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", name, err)
	}
	return sch, nil
}
