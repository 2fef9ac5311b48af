// Package registry implements the process-wide config surface (§4.1): a set of
// typed, individually-lockable fields that broadcast every update to subscribers.
// Modeled on the existing implementation's mutex-wrapped Field<T>, generalized with
// Go generics and a broadcast-channel watch primitive in place of hand-rolled
// observer lists, per the design notes' stated preference.
package registry

import (
	"context"
	"sync"
)

// Field is a single observable configuration value. Get/Set never block beyond
// lock-acquisition; subscribers run synchronously from Set and a panicking
// subscriber is recovered so it cannot corrupt the field.
type Field[T any] struct {
	mu       sync.RWMutex
	value    T
	handlers []func(T)
	notify   chan struct{}
}

// NewField creates a Field seeded with the given value.
func NewField[T any](initial T) *Field[T] {
	return &Field[T]{
		value:  initial,
		notify: make(chan struct{}),
	}
}

// Get returns a snapshot of the current value.
func (f *Field[T]) Get() T {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value
}

// Set replaces the value and broadcasts it to every subscriber and watcher.
func (f *Field[T]) Set(value T) {
	f.mu.Lock()
	f.value = value
	handlers := append([]func(T){}, f.handlers...)
	oldNotify := f.notify
	f.notify = make(chan struct{})
	f.mu.Unlock()

	close(oldNotify)

	for _, h := range handlers {
		invokeHandler(h, value)
	}
}

// invokeHandler recovers a panicking subscriber so it cannot corrupt the field or
// take down the caller of Set.
func invokeHandler[T any](h func(T), value T) {
	defer func() { _ = recover() }()
	h(value)
}

// Subscribe registers an observer that is invoked synchronously, in registration
// order, from every subsequent Set call. It does not receive the current value.
func (f *Field[T]) Subscribe(handler func(T)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler)
}

// Receiver is a watch handle returned by Watch. Recv blocks until the value changes
// (or ctx is cancelled) and returns the new value.
type Receiver[T any] struct {
	field *Field[T]
	last  chan struct{}
}

// Watch registers a new watcher and returns a Receiver. Unlike Subscribe, a watcher
// pulls values explicitly via Recv rather than being called back.
func (f *Field[T]) Watch() *Receiver[T] {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &Receiver[T]{field: f, last: f.notify}
}

// Recv blocks until the field's value changes since the last Recv call (or since
// Watch was created), then returns the new value.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	select {
	case <-r.last:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}

	r.field.mu.RLock()
	defer r.field.mu.RUnlock()
	r.last = r.field.notify
	return r.field.value, nil
}
