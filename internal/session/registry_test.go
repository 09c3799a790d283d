package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/tripcart/internal/domain/cart"
	"github.com/xenking/tripcart/internal/storage/memory"
)

// faultySlots wraps memory slots with per-session load hooks.
type faultySlots struct {
	*memory.Slots

	mu    sync.Mutex
	fails map[string]int
	gates map[string]chan struct{}
	loads map[string]int
}

func newFaultySlots() *faultySlots {
	return &faultySlots{
		Slots: memory.New(),
		fails: make(map[string]int),
		gates: make(map[string]chan struct{}),
		loads: make(map[string]int),
	}
}

func (f *faultySlots) Slot(name string) cart.Persister {
	return &faultySlot{Persister: f.Slots.Slot(name), owner: f, name: name}
}

func (f *faultySlots) loadCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads[name]
}

type faultySlot struct {
	cart.Persister
	owner *faultySlots
	name  string
}

func (s *faultySlot) Load(ctx context.Context) (cart.Snapshot, error) {
	f := s.owner
	f.mu.Lock()
	f.loads[s.name]++
	gate := f.gates[s.name]
	fail := f.fails[s.name] > 0
	if fail {
		f.fails[s.name]--
	}
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail {
		return nil, errors.New("connection reset by peer")
	}
	return s.Persister.Load(ctx)
}

func mustGet(t *testing.T, r *Registry, id string) *cart.Store {
	t.Helper()
	s, err := r.Get(context.Background(), id)
	require.NoError(t, err)
	return s
}

func TestRegistry_OneStorePerSession(t *testing.T) {
	r := NewRegistry(memory.New(), zaptest.NewLogger(t))

	a := mustGet(t, r, "a")
	assert.Same(t, a, mustGet(t, r, "a"))
	assert.NotSame(t, a, mustGet(t, r, "b"))
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(memory.New(), zaptest.NewLogger(t))

	mustGet(t, r, "a").Add(ctx, cart.Input{TripID: "bali", TravelerCount: 1})
	assert.Equal(t, 1, mustGet(t, r, "a").Count())
	assert.Equal(t, 0, mustGet(t, r, "b").Count())
}

func TestRegistry_ForgetReloadsFromSlot(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(memory.New(), zaptest.NewLogger(t))

	first := mustGet(t, r, "a")
	first.Add(ctx, cart.Input{TripID: "bali", TravelerCount: 2})
	r.Forget("a")
	assert.Equal(t, 0, r.Len())

	second := mustGet(t, r, "a")
	require.NotSame(t, first, second)
	assert.Equal(t, first.Snapshot(), second.Snapshot())
}

func TestRegistry_ConcurrentGet(t *testing.T) {
	slots := newFaultySlots()
	r := NewRegistry(slots, nil)

	var wg sync.WaitGroup
	stores := make([]*cart.Store, 16)
	for i := range stores {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stores[i] = mustGet(t, r, "shared")
		}()
	}
	wg.Wait()

	for _, s := range stores {
		assert.Same(t, stores[0], s)
	}
	assert.Equal(t, 1, slots.loadCount("shared"))
}

func TestRegistry_LoadErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	slots := newFaultySlots()

	// A previous process left a cart in the slot.
	seed, err := cart.Open(ctx, slots.Slots.Slot("a"), nil)
	require.NoError(t, err)
	seed.Add(ctx, cart.Input{TripID: "bali", UnitPrice: 100, TravelerCount: 2})
	want := seed.Snapshot()

	slots.fails["a"] = 1
	r := NewRegistry(slots, zaptest.NewLogger(t))

	_, err = r.Get(ctx, "a")
	require.Error(t, err)
	assert.Equal(t, 0, r.Len())

	s, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, want, s.Snapshot())
	assert.Equal(t, 2, slots.loadCount("a"))
}

func TestRegistry_SlowLoadDoesNotBlockOtherSessions(t *testing.T) {
	slots := newFaultySlots()
	gate := make(chan struct{})
	slots.gates["slow"] = gate
	r := NewRegistry(slots, zaptest.NewLogger(t))

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_, _ = r.Get(context.Background(), "slow")
	}()
	require.Eventually(t, func() bool { return slots.loadCount("slow") == 1 }, time.Second, time.Millisecond)

	fast := make(chan struct{})
	go func() {
		defer close(fast)
		mustGet(t, r, "fast")
	}()
	select {
	case <-fast:
	case <-time.After(time.Second):
		t.Fatal("fast session blocked behind a slow load")
	}

	// Waiters on the slow session give up with their own context.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := r.Get(ctx, "slow")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(gate)
	<-slowDone
	mustGet(t, r, "slow")
	assert.Equal(t, 1, slots.loadCount("slow"))
}

func TestRegistry_SweepEvictsIdleStores(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	slots := memory.New()
	r := NewRegistry(slots, zaptest.NewLogger(t), WithIdleTimeout(30*time.Minute))
	r.now = func() time.Time { return now }

	idle := mustGet(t, r, "idle")
	idle.Add(ctx, cart.Input{TripID: "bali", TravelerCount: 1})
	mustGet(t, r, "busy")

	now = now.Add(20 * time.Minute)
	mustGet(t, r, "busy")
	assert.Equal(t, 0, r.Sweep(now))

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, r.Sweep(now))
	assert.Equal(t, 1, r.Len())

	// The evicted cart comes back from its slot.
	reloaded := mustGet(t, r, "idle")
	assert.NotSame(t, idle, reloaded)
	assert.Equal(t, idle.Snapshot(), reloaded.Snapshot())
}

func TestRegistry_SweepWithoutTimeoutKeepsStores(t *testing.T) {
	r := NewRegistry(memory.New(), nil)
	mustGet(t, r, "a")

	assert.Equal(t, 0, r.Sweep(time.Now().Add(24*time.Hour)))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RunStopsWithContext(t *testing.T) {
	r := NewRegistry(memory.New(), zaptest.NewLogger(t), WithIdleTimeout(time.Minute))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
