package cart

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricing(t *testing.T) {
	tests := []struct {
		name      string
		unitPrice int64
		travelers int
		wantTotal int64
		wantTax   int64
	}{
		{name: "two travelers", unitPrice: 100000, travelers: 2, wantTotal: 200000, wantTax: 20000},
		{name: "half rounds up", unitPrice: 5, travelers: 1, wantTotal: 5, wantTax: 1},
		{name: "below half rounds down", unitPrice: 14, travelers: 1, wantTotal: 14, wantTax: 1},
		{name: "exact half", unitPrice: 25, travelers: 1, wantTotal: 25, wantTax: 3},
		{name: "free trip", unitPrice: 0, travelers: 4, wantTotal: 0, wantTax: 0},
		{name: "negative half away from zero", unitPrice: -15, travelers: 1, wantTotal: -15, wantTax: -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := LineItem{UnitPrice: tt.unitPrice, TravelerCount: tt.travelers}
			assert.Equal(t, tt.wantTotal, LineTotal(item))
			assert.Equal(t, tt.wantTax, LineTax(item))
		})
	}
}

func TestSnapshotTotals(t *testing.T) {
	s := Snapshot{
		{UnitPrice: 100000, TravelerCount: 2},
		{UnitPrice: 5, TravelerCount: 1},
		{UnitPrice: 5, TravelerCount: 1},
	}

	got := s.Totals()
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, int64(200010), got.Subtotal)
	// Rounded per line: 20000 + 1 + 1. Rounding the sum would give 20001.
	assert.Equal(t, int64(20002), got.Tax)
	assert.Equal(t, int64(220012), got.Total)
	assert.Equal(t, got.Total, s.Total())
}

func TestSnapshotTotals_SingleLine(t *testing.T) {
	s := Snapshot{{UnitPrice: 100000, TravelerCount: 2}}
	assert.Equal(t, int64(220000), s.Total())
}

func TestSnapshotTotals_Empty(t *testing.T) {
	assert.Equal(t, Totals{}, Snapshot{}.Totals())
}

func TestCheckLineTotal(t *testing.T) {
	tests := []struct {
		name      string
		unitPrice int64
		travelers int
		wantErr   bool
	}{
		{name: "ordinary", unitPrice: 100000, travelers: 2},
		{name: "at ceiling", unitPrice: MaxLineTotal, travelers: 1},
		{name: "split ceiling", unitPrice: MaxLineTotal / 4, travelers: 4},
		{name: "free trip", unitPrice: 0, travelers: math.MaxInt32},
		{name: "above ceiling", unitPrice: MaxLineTotal + 1, travelers: 1, wantErr: true},
		{name: "travelers push over", unitPrice: MaxLineTotal/4 + 1, travelers: 4, wantErr: true},
		{name: "would wrap int64", unitPrice: math.MaxInt64 / 2, travelers: 3, wantErr: true},
		{name: "huge traveler count", unitPrice: 10, travelers: math.MaxInt, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckLineTotal(tt.unitPrice, tt.travelers)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrLineTotalTooLarge)
				return
			}
			require.NoError(t, err)
			assert.LessOrEqual(t, LineTotal(LineItem{UnitPrice: tt.unitPrice, TravelerCount: tt.travelers}), MaxLineTotal)
		})
	}
}
