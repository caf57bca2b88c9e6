package util

import (
	"sync"
)

// Latest is a single-slot handoff between a producer and one consumer.
// Publishing never blocks and only the most recent value is retained, so a
// slow consumer sees the newest state instead of a growing backlog.
type Latest[T any] struct {
	mu     sync.Mutex
	value  T
	notify chan struct{} // capacity 1, acts as a pending flag
}

// NewLatest creates an empty Latest handoff.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{
		notify: make(chan struct{}, 1),
	}
}

// Publish replaces the stored value and signals the consumer. It never
// blocks; if a notification is already pending, the value is simply
// overwritten.
func (l *Latest[T]) Publish(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.value = v

	select {
	case l.notify <- struct{}{}:
	default:
		// Notification already pending.
	}
}

// C returns the notification channel for use in select statements. After a
// receive, Value returns the most recently published value.
func (l *Latest[T]) C() <-chan struct{} {
	return l.notify
}

// Value returns the most recently published value.
func (l *Latest[T]) Value() T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// Pending reports whether a notification is waiting to be consumed without
// consuming it.
func (l *Latest[T]) Pending() bool {
	return len(l.notify) > 0
}
