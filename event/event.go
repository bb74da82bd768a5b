// Package event provides ordered, typed publish/subscribe topics.
package event

import (
	"context"
	"slices"
	"sync"
)

// Topic is a list of subscribers to events of type E.
// The zero value is an empty topic ready for use.
type Topic[E any] struct {
	mu   sync.Mutex
	subs []*sub[E]
}

type sub[E any] struct {
	fn func(context.Context, E)
}

// Subscribe adds a subscriber to the topic. Subscribers are called in the
// order in which they subscribed.
// The returned function removes the subscriber. Calling it more than once has
// no further effect.
func (t *Topic[E]) Subscribe(fn func(ctx context.Context, e E)) (dispose func()) {
	s := &sub[E]{fn: fn}
	t.mu.Lock()
	t.subs = append(t.subs, s)
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.subs = slices.DeleteFunc(t.subs, func(v *sub[E]) bool { return v == s })
	}
}

// Publish calls each subscriber with e, synchronously and in subscription
// order. Subscribers added or removed during a call to Publish do not affect
// that call.
func (t *Topic[E]) Publish(ctx context.Context, e E) {
	t.mu.Lock()
	subs := slices.Clone(t.subs)
	t.mu.Unlock()
	for _, s := range subs {
		s.fn(ctx, e)
	}
}

// Len returns the number of subscribers.
func (t *Topic[E]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
