// Package fanout broadcasts values to in-process subscribers.
package fanout

import (
	"context"
	"sync"
)

const defaultBuffer = 64

type subscriber[T any] struct {
	ch     chan T
	lagged bool
}

type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[chan T]*subscriber[T]
	buffer int
	resync T
}

// NewHub returns a hub that sends resync to a subscriber in place of the
// values it is too slow to receive.
func NewHub[T any](resync T) *Hub[T] {
	return &Hub[T]{
		subs:   make(map[chan T]*subscriber[T]),
		buffer: defaultBuffer,
		resync: resync,
	}
}

// Subscribe returns a channel receiving every value published until ctx is
// done. The channel is closed afterwards.
func (h *Hub[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, h.buffer)

	h.mu.Lock()
	h.subs[ch] = &subscriber[T]{ch: ch}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()

		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish never blocks. The last buffer slot of every subscriber is kept
// for the resync value: once a subscriber falls behind, it gets resync once
// and further values are dropped until it catches up. Everything dropped
// was published before the subscriber reads resync.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		// only Publish sends, under h.mu, so len can only shrink meanwhile
		switch {
		case len(sub.ch) < cap(sub.ch)-1:
			sub.ch <- v
			sub.lagged = false
		case !sub.lagged:
			sub.ch <- h.resync
			sub.lagged = true
		}
	}
}

func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}
