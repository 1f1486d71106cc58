// Package tool provides the tool registry and batch dispatcher for the
// conversation engine.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Tool is a callable capability exposed to the model. Implementations are
// identified by a unique name registered at startup.
type Tool interface {
	// Name returns the unique tool name.
	Name() string

	// Description returns a concise doc string for model tool selection.
	Description() string

	// Parameters returns the JSON-schema-shaped argument description.
	Parameters() map[string]any

	// Invoke executes the tool with the given arguments.
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// Registry maps tool names to tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a duplicate name is an error.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
