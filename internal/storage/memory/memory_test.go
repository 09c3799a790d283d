package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/tripcart/internal/domain/cart"
)

func TestSlots(t *testing.T) {
	ctx := context.Background()
	slots := New()

	empty, err := slots.Slot("a").Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	snap := cart.Snapshot{{ID: "x", TripID: "t", TravelerCount: 2, UnitPrice: 10}}
	require.NoError(t, slots.Slot("a").Save(ctx, snap))

	got, err := slots.Slot("a").Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	other, err := slots.Slot("b").Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, other)
	assert.Equal(t, 1, slots.Len())
}
