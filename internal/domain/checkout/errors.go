package checkout

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Preconditions checked before any order is sent.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrEmptyCart       = errors.New("cart is empty")

	errNoResponse = errors.New("no response")
)

// NetworkError indicates the Order API could not be reached for a line.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("order api unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ApplicationError indicates the Order API answered with a non-zero status
// code for a line.
type ApplicationError struct {
	StatusCode int
	Message    string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("order rejected with status %d", e.StatusCode)
	}
	return fmt.Sprintf("order rejected with status %d: %s", e.StatusCode, e.Message)
}

// PartialFailureError reports that fewer orders succeeded than were
// submitted. The cart is left untouched so the user can retry.
type PartialFailureError struct {
	Succeeded int
	Total     int
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%d of %d bookings failed", e.Failed(), e.Total)
}

// Failed returns the number of lines that did not produce an order.
func (e *PartialFailureError) Failed() int {
	return e.Total - e.Succeeded
}
