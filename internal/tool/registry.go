// Package tool defines the capability interface workflow nodes invoke and a
// registry that resolves tools by name.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool transforms a run state into a new state. Implementations receive a
// private copy of the live state and may mutate and return it; the engine
// owns snapshotting.
type Tool interface {
	Execute(ctx context.Context, state map[string]any) (map[string]any, error)
}

// Func adapts a plain function to the Tool interface.
type Func func(ctx context.Context, state map[string]any) (map[string]any, error)

func (f Func) Execute(ctx context.Context, state map[string]any) (map[string]any, error) {
	return f(ctx, state)
}

// Registered is a tool plus its registry metadata. InputSchema is an optional
// JSON Schema over the state keys the tool consumes; when present it is
// compiled at registration and checked before every dispatch, so a tool never
// sees a state it declared itself incompatible with.
type Registered struct {
	Name        string
	Description string
	InputSchema map[string]any
	Tool        Tool

	compiled *jsonschema.Schema
}

// CheckInput validates state against the tool's input schema, if any.
func (t Registered) CheckInput(state map[string]any) error {
	if t.compiled == nil {
		return nil
	}
	if err := t.compiled.Validate(anyMap(state)); err != nil {
		return fmt.Errorf("input schema: %w", err)
	}
	return nil
}

// anyMap re-types the state for schema validation. jsonschema validates the
// generic JSON object shape, so values pass through as-is.
func anyMap(state map[string]any) map[string]any {
	if state == nil {
		return map[string]any{}
	}
	return state
}

// Registry maps tool names to capabilities. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Registered
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]Registered{}}
}

// Register adds a tool, compiling its input schema. Re-registering a name
// replaces the previous tool.
func (r *Registry) Register(t Registered) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Tool == nil {
		return fmt.Errorf("tool %s missing implementation", t.Name)
	}
	if t.InputSchema != nil {
		s, err := compileSchema(t.InputSchema)
		if err != nil {
			return fmt.Errorf("tool %s schema: %w", t.Name, err)
		}
		t.compiled = s
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
	return nil
}

// Get resolves a tool by name, failing with *NotFoundError.
func (r *Registry) Get(name string) (Registered, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Registered{}, &NotFoundError{Name: name}
	}
	return t, nil
}

// Names lists registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Registered {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registered, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func compileSchema(schema map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", strings.NewReader(string(b))); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}
