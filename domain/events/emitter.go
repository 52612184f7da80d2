package events

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Listener receives a domain event. Errors are logged and never propagate to
// the emitting component.
type Listener func(ctx context.Context, event DomainEvent) error

// Emitter is an in-process observer registry. One listener failing, whether by
// error or by panic, does not stop delivery to the remaining listeners.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
	logger    *zap.Logger
}

// NewEmitter creates an emitter
func NewEmitter(logger *zap.Logger) *Emitter {
	return &Emitter{
		listeners: make(map[int]Listener),
		logger:    logger,
	}
}

// Subscribe registers a listener and returns its unsubscribe function
func (e *Emitter) Subscribe(listener Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.listeners[id] = listener

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// Emit delivers the event to every listener in registration order
func (e *Emitter) Emit(ctx context.Context, event DomainEvent) {
	e.mu.RLock()
	ids := make([]int, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, len(ids))
	for i, id := range ids {
		listeners[i] = e.listeners[id]
	}
	e.mu.RUnlock()

	for _, listener := range listeners {
		e.deliver(ctx, listener, event)
	}
}

// ListenerCount returns the number of registered listeners
func (e *Emitter) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}

func (e *Emitter) deliver(ctx context.Context, listener Listener, event DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event listener panicked",
				zap.String("eventType", event.GetEventType()),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	if err := listener(ctx, event); err != nil {
		e.logger.Warn("event listener failed",
			zap.String("eventType", event.GetEventType()),
			zap.Error(err),
		)
	}
}
