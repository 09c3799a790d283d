package cart

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// taxRate is the VAT applied to every line.
var taxRate = decimal.RequireFromString("0.10")

// MaxLineTotal caps unit price times traveler count. It leaves headroom for
// summing many lines plus tax without overflowing int64.
const MaxLineTotal int64 = 1_000_000_000_000

// ErrLineTotalTooLarge is returned by CheckLineTotal for lines above MaxLineTotal.
var ErrLineTotalTooLarge = errors.New("line total too large")

// CheckLineTotal reports whether unitPrice * travelers stays within
// MaxLineTotal, without computing the product. Non-positive operands pass.
func CheckLineTotal(unitPrice int64, travelers int) error {
	if unitPrice <= 0 || travelers <= 0 {
		return nil
	}
	if unitPrice > MaxLineTotal/int64(travelers) {
		return errors.Wrapf(ErrLineTotalTooLarge, "%d x %d exceeds %d", unitPrice, travelers, MaxLineTotal)
	}
	return nil
}

// Totals holds the derived prices of a snapshot in integer currency units.
type Totals struct {
	Count    int
	Subtotal int64
	Tax      int64
	Total    int64
}

// LineTotal returns unit price times traveler count.
func LineTotal(item LineItem) int64 {
	return item.UnitPrice * int64(item.TravelerCount)
}

// LineTax returns the VAT for a single line, rounded half away from zero to a
// whole currency unit. Tax is always rounded per line, never on the sum.
func LineTax(item LineItem) int64 {
	return decimal.NewFromInt(LineTotal(item)).Mul(taxRate).Round(0).IntPart()
}

// Total returns the grand total including per-line tax.
func (s Snapshot) Total() int64 {
	return s.Totals().Total
}

// Totals computes count, subtotal, tax and total for s.
func (s Snapshot) Totals() Totals {
	t := Totals{Count: len(s)}
	for _, item := range s {
		t.Subtotal += LineTotal(item)
		t.Tax += LineTax(item)
	}
	t.Total = t.Subtotal + t.Tax
	return t
}
