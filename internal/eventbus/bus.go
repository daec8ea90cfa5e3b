// Package eventbus dispatches record lifecycle events to registered
// listeners. There is no global bus: callers construct one and pass it
// to every component that publishes or subscribes.
package eventbus

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

// Bus dispatches events to registered handlers. Dispatch is synchronous:
// all matching handlers have finished (or failed) by the time it returns,
// so emitters that need completion guarantees get them for free.
type Bus struct {
	handlers []Handler
	mu       sync.RWMutex
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{}
}

// Register adds a handler to the bus. Handlers are sorted by priority on
// each Dispatch call, so registration order does not matter.
func (b *Bus) Register(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Dispatch sends an event to all registered handlers that handle its
// type, sequentially in priority order (lowest first). Handler errors
// are logged and collected as warnings; they never stop the chain and
// never propagate to the emitter.
func (b *Bus) Dispatch(ctx context.Context, event *Event) (*Result, error) {
	if event == nil {
		return nil, fmt.Errorf("eventbus: nil event")
	}
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now()
	}

	b.mu.RLock()
	matching := b.matchingHandlers(event.Type)
	b.mu.RUnlock()

	result := &Result{}

	for _, h := range matching {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("eventbus: context cancelled: %w", err)
		}

		if err := h.Handle(ctx, event); err != nil {
			log.Printf("eventbus: handler %q error for %s: %v", h.ID(), event.Type, err)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("handler %q: %v", h.ID(), err))
			continue
		}
		result.Handled++
	}

	return result, nil
}

// Handlers returns all registered handlers (for status reporting).
func (b *Bus) Handlers() []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Handler, len(b.handlers))
	copy(out, b.handlers)
	return out
}

// matchingHandlers returns handlers for the given event type, sorted by
// priority (lowest first). Caller must hold at least a read lock.
func (b *Bus) matchingHandlers(eventType EventType) []Handler {
	var matched []Handler
	for _, h := range b.handlers {
		for _, t := range h.Handles() {
			if t == eventType {
				matched = append(matched, h)
				break
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Priority() < matched[j].Priority()
	})
	return matched
}
