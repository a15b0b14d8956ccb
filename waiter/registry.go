// Package waiter coordinates blocking clients (BLPOP, XREAD BLOCK) against
// the keyspace mutations that can satisfy them. It is deliberately kept
// separate from store.Store: the Store never imports this package, and any
// code path that must touch both always locks the Store first and the
// registry second, never the reverse.
package waiter

import (
	"sync"

	"github.com/google/uuid"
)

// ListWaiter is the handle returned by RegisterList: one pending
// BLPOP/BRPOP caller queued on a key. Callers select on Ready() and, once
// it fires or they give up waiting, call Registry.Cancel on the handle.
type ListWaiter struct {
	id    uuid.UUID
	key   string
	ready chan struct{}
}

// Ready returns the channel that closes once this waiter has been
// delivered a value.
func (w *ListWaiter) Ready() <-chan struct{} { return w.ready }

// Key returns the key this waiter is queued on.
func (w *ListWaiter) Key() string { return w.key }

// Registry holds the FIFO per-key queues of blocked BLPOP callers, plus the
// broadcast channel used to wake XREAD BLOCK callers on any stream append.
type Registry struct {
	mu       sync.Mutex
	waiting  map[string][]*ListWaiter
	streamCh chan struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		waiting:  make(map[string][]*ListWaiter),
		streamCh: make(chan struct{}),
	}
}

// RegisterList enqueues a new BLPOP/BRPOP waiter on key and returns its
// handle. Cancel must be called once the caller stops waiting, whether it
// was delivered to, timed out, or the connection closed.
func (r *Registry) RegisterList(key string) *ListWaiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := &ListWaiter{id: uuid.New(), key: key, ready: make(chan struct{})}
	r.waiting[key] = append(r.waiting[key], w)
	return w
}

// Cancel removes w from its queue if it is still pending (a no-op if it
// was already delivered). Safe to call unconditionally after waiting.
func (r *Registry) Cancel(w *ListWaiter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	queue := r.waiting[w.key]
	for i, cand := range queue {
		if cand.id == w.id {
			queue = append(queue[:i], queue[i+1:]...)
			if len(queue) == 0 {
				delete(r.waiting, w.key)
			} else {
				r.waiting[w.key] = queue
			}
			return
		}
	}
}

// DeliverOne matches store.NotifyFunc's signature. Called under the
// Store's lock right after a push, it pops the oldest waiter queued on key
// (if any) and returns a closure that signals it by closing its Ready
// channel — the closure itself must run only after the Store lock is
// released, so the value is already visible in the list by the time the
// waiter wakes and re-reads it (BLPOP always re-pops from the Store rather
// than trusting a value ferried through here, so the signal carries no
// payload).
func (r *Registry) DeliverOne(key string) func() {
	r.mu.Lock()
	queue := r.waiting[key]
	if len(queue) == 0 {
		r.mu.Unlock()
		return nil
	}

	w := queue[0]
	if rest := queue[1:]; len(rest) == 0 {
		delete(r.waiting, key)
	} else {
		r.waiting[key] = rest
	}
	r.mu.Unlock()

	return func() {
		close(w.ready)
	}
}

// BroadcastStreamArrival wakes every XREAD BLOCK caller currently waiting
// on any stream, by swapping in a fresh channel and closing the old one —
// each waiter re-checks its own key's stream for new entries on wake,
// filtering out arrivals on keys it doesn't care about.
func (r *Registry) BroadcastStreamArrival() {
	r.mu.Lock()
	old := r.streamCh
	r.streamCh = make(chan struct{})
	r.mu.Unlock()
	close(old)
}

// StreamArrivalChan returns the channel an XREAD BLOCK caller should select
// on to learn that some stream somewhere received a new entry. Callers
// must fetch a fresh channel via this method after each wake, since the
// one they had has just been closed and replaced.
func (r *Registry) StreamArrivalChan() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streamCh
}
