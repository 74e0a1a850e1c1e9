package messaging

import (
	"fmt"
	"sort"
	"strings"

	"benefitclaims/internal/types"
)

// Registry maps every message type to its handler. A Registry is only
// constructed when it is complete, so Resolve never misses for a declared
// type.
type Registry struct {
	handlers map[types.MessageType]Handler
}

// NewRegistry builds a registry from handlers. It fails when two handlers
// claim the same type, when a handler claims an undeclared type, or when a
// declared type has no handler.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	m := make(map[types.MessageType]Handler, len(handlers))
	for _, h := range handlers {
		t := h.SupportsType()
		if !t.Valid() {
			return nil, types.NewAppError(types.ErrCodeValidationMessageType,
				fmt.Sprintf("handler %T supports unknown message type %q", h, t), nil)
		}
		if existing, ok := m[t]; ok {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeConflictDuplicateHandler,
				fmt.Sprintf("message type %s already registered", t), nil,
				map[string]any{
					"existing":  fmt.Sprintf("%T", existing),
					"duplicate": fmt.Sprintf("%T", h),
				})
		}
		m[t] = h
	}

	var missing []string
	for _, t := range types.AllMessageTypes() {
		if _, ok := m[t]; !ok {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundHandler,
			"no handler registered for message types: "+strings.Join(missing, ", "), nil,
			map[string]any{"missing": missing})
	}

	return &Registry{handlers: m}, nil
}

// Resolve returns the handler for t.
func (r *Registry) Resolve(t types.MessageType) (Handler, error) {
	h, ok := r.handlers[t]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundHandler,
			fmt.Sprintf("no handler registered for message type %s", t), nil)
	}
	return h, nil
}

// Types lists the registered types in declaration order.
func (r *Registry) Types() []types.MessageType {
	out := make([]types.MessageType, 0, len(r.handlers))
	for _, t := range types.AllMessageTypes() {
		if _, ok := r.handlers[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
