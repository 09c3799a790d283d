package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/xenking/tripcart/internal/domain/cart"
)

const (
	selectSlot = `SELECT items FROM cart_slots WHERE slot = $1`

	upsertSlot = `
INSERT INTO cart_slots (slot, items, item_count, total, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (slot) DO UPDATE
SET items = EXCLUDED.items,
    item_count = EXCLUDED.item_count,
    total = EXCLUDED.total,
    updated_at = EXCLUDED.updated_at`

	deleteStale = `DELETE FROM cart_slots WHERE updated_at < now() - make_interval(secs => $1)`
)

// DB is the subset of pgxpool.Pool used by CartSlots.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CartSlots stores one cart snapshot per slot in the cart_slots table. The
// item count and grand total are denormalized for back-office queries.
type CartSlots struct {
	db DB
}

// NewCartSlots returns CartSlots backed by db.
func NewCartSlots(db DB) *CartSlots {
	return &CartSlots{db: db}
}

// Slot returns the persister for the named slot.
func (c *CartSlots) Slot(name string) cart.Persister {
	return &slot{db: c.db, name: name}
}

// DeleteStale removes slots not written for longer than maxAgeSeconds and
// returns how many were removed.
func (c *CartSlots) DeleteStale(ctx context.Context, maxAgeSeconds float64) (int64, error) {
	tag, err := c.db.Exec(ctx, deleteStale, maxAgeSeconds)
	if err != nil {
		return 0, errors.Wrap(err, "delete stale slots")
	}
	return tag.RowsAffected(), nil
}

type slot struct {
	db   DB
	name string
}

func (s *slot) Load(ctx context.Context) (cart.Snapshot, error) {
	var items []byte
	err := s.db.QueryRow(ctx, selectSlot, s.name).Scan(&items)
	if errors.Is(err, pgx.ErrNoRows) {
		return cart.Snapshot{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load slot %q", s.name)
	}
	return cart.DecodeSnapshot(items)
}

func (s *slot) Save(ctx context.Context, snap cart.Snapshot) error {
	items, err := cart.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	total := decimal.NewFromInt(snap.Total())

	if _, err := s.db.Exec(ctx, upsertSlot, s.name, items, len(snap), total); err != nil {
		return errors.Wrapf(err, "save slot %q", s.name)
	}
	return nil
}
