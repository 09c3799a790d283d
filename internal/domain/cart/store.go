package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// loadTimeout bounds the initial snapshot read so a stalled backend cannot
// pin the caller.
const loadTimeout = 5 * time.Second

// Store is the single source of truth for one session's cart. The in-memory
// snapshot is authoritative; every mutation is mirrored to the Persister
// before the call returns.
type Store struct {
	mu      sync.Mutex
	items   Snapshot
	persist Persister
	lg      *zap.Logger

	now    func() time.Time
	suffix func() string
}

// Open creates a Store seeded from the persisted snapshot. A missing slot
// yields an empty cart, and so does a slot holding undecodable data
// (ErrCorruptSnapshot). Any other load failure is returned: the slot may
// still hold a valid cart that an empty store would overwrite on the next
// mutation.
//
// The read is detached from ctx cancellation and bounded by loadTimeout,
// so one aborted request does not fail the load for everyone waiting on it.
func Open(ctx context.Context, p Persister, lg *zap.Logger) (*Store, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	s := &Store{
		persist: p,
		lg:      lg,
		now:     time.Now,
		suffix:  randomSuffix,
	}

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	defer cancel()

	items, err := p.Load(loadCtx)
	switch {
	case errors.Is(err, ErrCorruptSnapshot):
		lg.Warn("Discarding unreadable cart snapshot", zap.Error(err))
		items = nil
	case err != nil:
		return nil, errors.Wrap(err, "load snapshot")
	}
	s.items = normalize(items)
	return s, nil
}

// normalize drops entries that violate the line item invariants.
func normalize(items Snapshot) Snapshot {
	out := make(Snapshot, 0, len(items))
	for _, item := range items {
		if item.ID == "" || item.TravelerCount < 1 {
			continue
		}
		if CheckLineTotal(item.UnitPrice, item.TravelerCount) != nil {
			continue
		}
		out = append(out, item)
	}
	return out
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

func (s *Store) newID(tripID string) string {
	return fmt.Sprintf("%s-%d-%s", tripID, s.now().UnixMilli(), s.suffix())
}

// Add appends a new line item and returns it. Adding the same trip twice
// yields two distinct lines. A traveler count below one is stored as one.
func (s *Store) Add(ctx context.Context, in Input) LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.TravelerCount < 1 {
		in.TravelerCount = 1
	}
	item := LineItem{
		ID:               s.newID(in.TripID),
		TripID:           in.TripID,
		Title:            in.Title,
		UnitPrice:        in.UnitPrice,
		TravelerCount:    in.TravelerCount,
		StartDate:        in.StartDate,
		ContactInfo:      in.ContactInfo,
		ImageURL:         in.ImageURL,
		DestinationLabel: in.DestinationLabel,
	}
	if in.DurationSummary != nil {
		d := *in.DurationSummary
		item.DurationSummary = &d
	}
	s.items = append(s.items, item)
	s.save(ctx)
	return Snapshot{item}.Clone()[0]
}

// Update merges the set fields of p into the line item with the given id.
// A traveler count below one removes the line instead. Unknown ids return
// ErrItemNotFound and leave the cart unchanged.
func (s *Store) Update(ctx context.Context, id string, p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return ErrItemNotFound
	}
	if p.TravelerCount != nil && *p.TravelerCount < 1 {
		s.removeAt(ctx, i)
		return nil
	}

	item := &s.items[i]
	if p.TravelerCount != nil {
		item.TravelerCount = *p.TravelerCount
	}
	if p.StartDate != nil {
		item.StartDate = *p.StartDate
	}
	if p.ContactInfo != nil {
		item.ContactInfo = *p.ContactInfo
	}
	s.save(ctx)
	return nil
}

// Remove deletes the line item with the given id. Unknown ids are ignored.
func (s *Store) Remove(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.index(id); i >= 0 {
		s.removeAt(ctx, i)
	}
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = Snapshot{}
	s.save(ctx)
}

// Count returns the number of line items, not the number of travelers.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Get returns a copy of the line item with the given id.
func (s *Store) Get(id string) (LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return LineItem{}, false
	}
	return Snapshot{s.items[i]}.Clone()[0], true
}

// Snapshot returns a copy of the current line items. Later mutations of the
// store do not affect the returned value.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Clone()
}

// Totals returns the derived prices of the current snapshot.
func (s *Store) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Totals()
}

func (s *Store) index(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeAt(ctx context.Context, i int) {
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.save(ctx)
}

// save mirrors the snapshot to the persister. Must be called with mu held.
// Failures are logged: the in-memory cart stays authoritative.
func (s *Store) save(ctx context.Context) {
	if err := s.persist.Save(ctx, s.items.Clone()); err != nil {
		s.lg.Error("Persist cart snapshot",
			zap.Int("items", len(s.items)),
			zap.Error(err),
		)
	}
}
