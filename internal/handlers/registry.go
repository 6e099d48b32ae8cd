package handlers

import (
	"sort"
	"sync"

	"github.com/relayworks/relay/pkg/schema"
)

// Registry is the concrete thread-safe HandlerRegistry implementation.
type Registry struct {
	mu       sync.RWMutex
	handlers map[schema.StepType]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[schema.StepType]Handler),
	}
}

// Register adds a handler to the registry. Returns error on duplicate type.
func (r *Registry) Register(handler Handler) error {
	if handler == nil {
		return schema.NewError(schema.ErrCodeValidation, "handler is nil")
	}
	stepType := handler.Type()
	if stepType == "" {
		return schema.NewError(schema.ErrCodeValidation, "handler step type is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[stepType]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "handler for %q already registered", stepType)
	}

	r.handlers[stepType] = handler
	return nil
}

// Get retrieves a handler by step type.
func (r *Registry) Get(stepType schema.StepType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[stepType]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "no handler registered for step type %q", stepType)
	}
	return handler, nil
}

// List returns info for all registered handlers, sorted by type.
func (r *Registry) List() []HandlerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]HandlerInfo, 0, len(r.handlers))
	for _, h := range r.handlers {
		infos = append(infos, HandlerInfo{Type: string(h.Type())})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Type < infos[j].Type
	})
	return infos
}

// Has checks if a handler is registered for the step type.
func (r *Registry) Has(stepType schema.StepType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[stepType]
	return ok
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
