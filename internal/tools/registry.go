package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Registry maps tool names to tools, preserving registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry returns a registry holding the given tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t, replacing any tool with the same name.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is nil")
	}
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
	return nil
}

// Get looks up a tool by name. An exact match wins; otherwise the lookup
// is case-insensitive, since models often change capitalization.
func (r *Registry) Get(name string) (Tool, error) {
	name = strings.TrimSpace(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.tools[name]; ok {
		return t, nil
	}
	for _, n := range r.order {
		if strings.EqualFold(n, name) {
			return r.tools[n], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
}

// List returns name and description of every tool in registration order.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, Info{Name: n, Description: r.tools[n].Description()})
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Run looks up name and runs it. Lookup failures wrap ErrToolNotFound;
// run failures are returned as *ExecutionError.
func (r *Registry) Run(ctx context.Context, name, input string) (string, error) {
	t, err := r.Get(name)
	if err != nil {
		return "", err
	}
	out, err := t.Run(ctx, input)
	if err != nil {
		return "", &ExecutionError{Tool: t.Name(), Err: err}
	}
	return out, nil
}
