// Package store holds the in-process TTL map shared by the session caches.
package store

import (
	"container/heap"
	"sync"
	"time"
)

// Clock returns the current time. Tests substitute a manual clock.
type Clock func() time.Time

type item[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiry
	gen       uint64
}

type expiry struct {
	key       string
	expiresAt time.Time
	gen       uint64
}

type expiryHeap []expiry

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].expiresAt.Before(h[j].expiresAt) }
func (h expiryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x any)        { *h = append(*h, x.(expiry)) }
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TTL is a map whose entries disappear once their deadline passes. Expired
// entries are invisible to Get immediately; the janitor started by Start
// reclaims their memory in deadline order using a min-heap.
type TTL[V any] struct {
	mu      sync.Mutex
	items   map[string]item[V]
	expiry  expiryHeap
	gen     uint64
	now     Clock
	onEvict func(key string)

	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	started bool
}

type Option[V any] func(*TTL[V])

func WithClock[V any](c Clock) Option[V] {
	return func(t *TTL[V]) { t.now = c }
}

// WithEvictHook is called, outside the lock, for every key removed by expiry.
func WithEvictHook[V any](fn func(key string)) Option[V] {
	return func(t *TTL[V]) { t.onEvict = fn }
}

func NewTTL[V any](opts ...Option[V]) *TTL[V] {
	t := &TTL[V]{
		items: make(map[string]item[V]),
		now:   time.Now,
		wake:  make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start launches the janitor goroutine. Calling it while the janitor runs
// is a no-op; after Close it starts a fresh janitor.
func (t *TTL[V]) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(t.stop, t.done)
}

// Close stops the janitor and waits for it to exit. Stored entries remain
// readable until they expire.
func (t *TTL[V]) Close() {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return
	}
	t.started = false
	stop, done := t.stop, t.done
	t.mu.Unlock()

	close(stop)
	<-done
}

// Set stores value under key, replacing any previous value and deadline.
func (t *TTL[V]) Set(key string, value V, ttl time.Duration) {
	t.mu.Lock()
	t.setLocked(key, value, ttl)
	t.mu.Unlock()
	t.poke()
}

// SetNX stores value only when key is absent or expired. It reports whether
// the value was stored.
func (t *TTL[V]) SetNX(key string, value V, ttl time.Duration) bool {
	t.mu.Lock()
	if it, ok := t.items[key]; ok && !t.expired(it) {
		t.mu.Unlock()
		return false
	}
	t.setLocked(key, value, ttl)
	t.mu.Unlock()
	t.poke()
	return true
}

func (t *TTL[V]) setLocked(key string, value V, ttl time.Duration) {
	t.gen++
	it := item[V]{value: value, gen: t.gen}
	if ttl > 0 {
		it.expiresAt = t.now().Add(ttl)
		heap.Push(&t.expiry, expiry{key: key, expiresAt: it.expiresAt, gen: it.gen})
	}
	t.items[key] = it
}

// Get returns the value for key if present and not expired. It never
// extends the deadline.
func (t *TTL[V]) Get(key string) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	it, ok := t.items[key]
	if !ok || t.expired(it) {
		var zero V
		return zero, false
	}
	return it.value, true
}

// Delete removes key. Deleting a missing key is a no-op.
func (t *TTL[V]) Delete(key string) {
	t.mu.Lock()
	delete(t.items, key)
	t.mu.Unlock()
}

// Len counts live entries.
func (t *TTL[V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, it := range t.items {
		if !t.expired(it) {
			n++
		}
	}
	return n
}

// Sweep evicts every entry whose deadline is at or before now and returns
// the number removed.
func (t *TTL[V]) Sweep() int {
	t.mu.Lock()
	now := t.now()
	var evicted []string
	for t.expiry.Len() > 0 && !t.expiry[0].expiresAt.After(now) {
		e := heap.Pop(&t.expiry).(expiry)
		it, ok := t.items[e.key]
		// stale heap entry: the key was overwritten or deleted since
		if !ok || it.gen != e.gen {
			continue
		}
		delete(t.items, e.key)
		evicted = append(evicted, e.key)
	}
	t.mu.Unlock()

	if t.onEvict != nil {
		for _, k := range evicted {
			t.onEvict(k)
		}
	}
	return len(evicted)
}

func (t *TTL[V]) expired(it item[V]) bool {
	return !it.expiresAt.IsZero() && !it.expiresAt.After(t.now())
}

func (t *TTL[V]) poke() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *TTL[V]) nextDeadline() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.expiry.Len() == 0 {
		return time.Time{}, false
	}
	return t.expiry[0].expiresAt, true
}

func (t *TTL[V]) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		t.Sweep()

		wait := time.Hour
		if next, ok := t.nextDeadline(); ok {
			wait = next.Sub(t.now())
			if wait < time.Millisecond {
				wait = time.Millisecond
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-stop:
			return
		case <-t.wake:
		case <-timer.C:
		}
	}
}
