package order

import (
	"context"

	"github.com/xenking/tripcart/internal/domain/cart"
)

// StatusOK is the application-level status code of an accepted order.
const StatusOK = 0

// Request asks the Order API to book a single trip.
type Request struct {
	TripID        string
	TravelerCount int
	Contact       cart.ContactInfo
}

// NewRequest builds the order request for a cart line.
func NewRequest(item cart.LineItem) Request {
	return Request{
		TripID:        item.TripID,
		TravelerCount: item.TravelerCount,
		Contact:       item.ContactInfo,
	}
}

// Response is the envelope returned by the Order API. Success is signalled by
// StatusCode, independent of the transport status.
type Response struct {
	StatusCode   int
	Payload      []byte
	ErrorMessage string
}

// OK reports whether the order was accepted.
func (r *Response) OK() bool {
	return r.StatusCode == StatusOK
}

// Creator creates orders in the external Order API, one per call.
type Creator interface {
	// CreateOrder returns an error only when the API could not be reached or
	// the exchange failed at the transport level. Application-level
	// rejections are reported through Response.StatusCode.
	CreateOrder(ctx context.Context, token string, req Request) (*Response, error)
}
