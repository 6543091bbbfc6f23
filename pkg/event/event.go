// Package event provides a small in-process event dispatcher.
//
//	bus := event.New()
//	bus.Listen("order.placed", func(p any) { ... })
//	bus.FireAsync("order.placed", order)
package event

import (
	"fmt"
	"sync"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// Handler is a function that receives an event payload.
type Handler func(payload any)

// Bus holds listeners keyed by event name.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	inflight sync.WaitGroup
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{handlers: map[string][]Handler{}}
}

// Listen registers a handler for the given event name.
func (b *Bus) Listen(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

func (b *Bus) listeners(event string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Handler(nil), b.handlers[event]...)
}

// Fire dispatches an event synchronously to all registered listeners.
func (b *Bus) Fire(event string, payload any) {
	for _, h := range b.listeners(event) {
		call(event, h, payload)
	}
}

// FireAsync dispatches the event to all listeners concurrently and returns
// immediately. Wait blocks until they finish.
func (b *Bus) FireAsync(event string, payload any) {
	for _, h := range b.listeners(event) {
		b.inflight.Add(1)
		go func(h Handler) {
			defer b.inflight.Done()
			call(event, h, payload)
		}(h)
	}
}

// Wait blocks until every listener started by FireAsync has returned.
func (b *Bus) Wait() { b.inflight.Wait() }

// Flush removes all listeners.
func (b *Bus) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = map[string][]Handler{}
}

// a panicking listener must not take the request down with it
func call(event string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event listener panicked", "event", event, "error", fmt.Sprint(r))
		}
	}()
	h(payload)
}
