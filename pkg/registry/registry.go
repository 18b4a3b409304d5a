package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/arbiter/pkg/domain"
)

// Handler defines the signature of an action handler.
// It receives the workflow context (read-only by convention) and the step's
// resolved config, and returns the step result.
type Handler func(ctx context.Context, wctx map[string]any, config map[string]any) (any, error)

// Registry maps action names to handlers.
// Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler to the registry.
// If a handler with the same name exists, it is overwritten.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute looks up a handler by name and executes it.
// Returns domain.ErrUnknownAction if the handler is not found.
func (r *Registry) Execute(ctx context.Context, name string, wctx map[string]any, config map[string]any) (any, error) {
	h, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAction, name)
	}
	return h(ctx, wctx, config)
}
