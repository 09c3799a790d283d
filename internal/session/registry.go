// Package session keeps one cart store per browser session.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xenking/tripcart/internal/domain/cart"
)

// SlotOpener resolves the durable slot holding a session's cart.
type SlotOpener interface {
	Slot(name string) cart.Persister
}

// entry is a store being opened or already open. ready is closed once store
// or err is set; neither changes afterwards.
type entry struct {
	ready    chan struct{}
	store    *cart.Store
	err      error
	lastUsed atomic.Int64
}

func (e *entry) touch(now time.Time) { e.lastUsed.Store(now.UnixNano()) }

func (e *entry) idleSince() time.Time { return time.Unix(0, e.lastUsed.Load()) }

// Option configures a Registry.
type Option func(r *Registry)

// WithIdleTimeout evicts stores not requested for d. Evicted sessions are
// reloaded from their slot on next use. Zero or less keeps stores forever.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.idle = d
	}
}

// Registry lazily opens and caches a cart.Store per session id. A session's
// store is created once and shared by every request of that session.
//
// Slots are loaded outside the registry lock, so a slow load only blocks
// requests of the same session. Failed loads are not cached.
type Registry struct {
	slots SlotOpener
	lg    *zap.Logger
	idle  time.Duration
	now   func() time.Time

	mu     sync.Mutex
	stores map[string]*entry
}

// NewRegistry returns an empty Registry backed by slots.
func NewRegistry(slots SlotOpener, lg *zap.Logger, opts ...Option) *Registry {
	if lg == nil {
		lg = zap.NewNop()
	}
	r := &Registry{
		slots:  slots,
		lg:     lg,
		now:    time.Now,
		stores: make(map[string]*entry),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Get returns the store for id, loading it from its slot on first use.
// Concurrent first requests share a single load. A load error is returned
// to every waiter and the next Get retries.
func (r *Registry) Get(ctx context.Context, id string) (*cart.Store, error) {
	r.mu.Lock()
	e, ok := r.stores[id]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		e.touch(r.now())
		r.stores[id] = e
	}
	r.mu.Unlock()

	if !ok {
		r.open(ctx, id, e)
	}

	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	e.touch(r.now())
	return e.store, nil
}

func (r *Registry) open(ctx context.Context, id string, e *entry) {
	lg := r.lg.With(zap.String("session", id))
	e.store, e.err = cart.Open(ctx, r.slots.Slot(id), lg)
	if e.err != nil {
		lg.Error("Open cart", zap.Error(e.err))
		r.mu.Lock()
		if r.stores[id] == e {
			delete(r.stores, id)
		}
		r.mu.Unlock()
	}
	close(e.ready)
}

// Forget drops the cached store for id. The persisted slot is kept, so the
// next Get reloads it.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, id)
}

// Len returns the number of cached stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Sweep evicts open stores idle since before now minus the idle timeout and
// returns how many were dropped. Stores still loading are kept.
func (r *Registry) Sweep(now time.Time) int {
	if r.idle <= 0 {
		return 0
	}
	deadline := now.Add(-r.idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	for id, e := range r.stores {
		select {
		case <-e.ready:
		default:
			continue
		}
		if e.idleSince().Before(deadline) {
			delete(r.stores, id)
			n++
		}
	}
	return n
}

// Run sweeps idle stores until ctx is done. It returns at once when no idle
// timeout is configured.
func (r *Registry) Run(ctx context.Context) {
	if r.idle <= 0 {
		return
	}
	t := time.NewTicker(max(r.idle/4, time.Second))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(r.now()); n > 0 {
				r.lg.Debug("Evicted idle carts", zap.Int("count", n), zap.Int("open", r.Len()))
			}
		}
	}
}
