package consumer

import (
	"context"
	"log/slog"
	"sync"
)

// Router dispatches messages by event type.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback Handler
	logger   *slog.Logger
}

// NewRouter creates a type router with an optional fallback handler.
func NewRouter(logger *slog.Logger, fallback Handler) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		fallback: fallback,
		logger:   logger,
	}
}

func (r *Router) Register(eventType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = handler
}

func (r *Router) Handle(ctx context.Context, msg *Message) error {
	r.mu.RLock()
	handler, ok := r.handlers[msg.Type]
	r.mu.RUnlock()
	if !ok {
		if r.fallback != nil {
			return r.fallback.Handle(ctx, msg)
		}
		r.logger.DebugContext(ctx, "no handler for event type, skipping",
			"event_type", msg.Type,
			"key", string(msg.Key),
		)
		// Skipped messages are still committed.
		return nil
	}
	return handler.Handle(ctx, msg)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}
