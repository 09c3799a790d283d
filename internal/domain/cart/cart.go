package cart

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
)

var (
	// ErrItemNotFound is returned by Update when no line item has the given id.
	// It is informational: the cart is left unchanged.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrCorruptSnapshot marks persisted data that cannot be decoded as a snapshot.
	ErrCorruptSnapshot = errors.New("corrupt cart snapshot")
)

// ContactInfo identifies the person booking a line item.
type ContactInfo struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// Duration summarises the length of a trip.
type Duration struct {
	Days   int `json:"days"`
	Nights int `json:"nights"`
}

// LineItem is one bookable trip selection held in the cart.
type LineItem struct {
	ID               string      `json:"id"`
	TripID           string      `json:"tripId"`
	Title            string      `json:"title"`
	UnitPrice        int64       `json:"unitPrice"`
	TravelerCount    int         `json:"travelerCount"`
	StartDate        string      `json:"startDate"`
	ContactInfo      ContactInfo `json:"contactInfo"`
	ImageURL         string      `json:"imageUrl,omitempty"`
	DestinationLabel string      `json:"destinationLabel,omitempty"`
	DurationSummary  *Duration   `json:"durationSummary,omitempty"`
}

// Input holds everything needed to add a line item except its id.
type Input struct {
	TripID           string      `json:"tripId"`
	Title            string      `json:"title"`
	UnitPrice        int64       `json:"unitPrice"`
	TravelerCount    int         `json:"travelerCount"`
	StartDate        string      `json:"startDate"`
	ContactInfo      ContactInfo `json:"contactInfo"`
	ImageURL         string      `json:"imageUrl,omitempty"`
	DestinationLabel string      `json:"destinationLabel,omitempty"`
	DurationSummary  *Duration   `json:"durationSummary,omitempty"`
}

// Patch lists the fields of a line item that may change after it was added.
// Nil fields are left untouched.
type Patch struct {
	TravelerCount *int         `json:"travelerCount,omitempty"`
	StartDate     *string      `json:"startDate,omitempty"`
	ContactInfo   *ContactInfo `json:"contactInfo,omitempty"`
}

// Snapshot is the ordered set of line items at a point in time.
type Snapshot []LineItem

// Clone returns a copy that shares no memory with s.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	out := make(Snapshot, len(s))
	for i, item := range s {
		if item.DurationSummary != nil {
			d := *item.DurationSummary
			item.DurationSummary = &d
		}
		out[i] = item
	}
	return out
}

// Persister is the durable slot a Store mirrors its snapshot to.
type Persister interface {
	// Load returns the stored snapshot. A slot that was never written yields
	// an empty snapshot and no error.
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
}

// EncodeSnapshot serializes s as a JSON array of line items.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	if s == nil {
		s = Snapshot{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "marshal snapshot")
	}
	return data, nil
}

// DecodeSnapshot parses data produced by EncodeSnapshot. Empty input decodes
// to an empty snapshot. Malformed input yields an error wrapping
// ErrCorruptSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if len(data) == 0 {
		return Snapshot{}, nil
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "decode: %v", err)
	}
	if s == nil {
		s = Snapshot{}
	}
	return s, nil
}
