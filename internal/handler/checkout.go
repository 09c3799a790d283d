package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tripcart/internal/domain/auth"
	"github.com/xenking/tripcart/internal/domain/cart"
	"github.com/xenking/tripcart/internal/domain/checkout"
)

// Checkout submits every line of the session's cart as an order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r, false)
	if !ok {
		return
	}
	var c checkout.Cart = emptyCart{}
	if s != nil {
		c = s
	}
	res, err := h.checkout.Checkout(r.Context(), c, auth.FromRequest(r))
	if err != nil {
		status, body := mapCheckoutError(res, err)
		if status == http.StatusInternalServerError {
			zctx.From(r.Context()).Error("Checkout", zap.Error(err))
		}
		writeJSON(w, r, status, body)
		return
	}

	out := checkoutResponse{
		Orders:    make([]orderResponse, 0, len(res.Lines)),
		Succeeded: res.Succeeded,
		Total:     res.Total,
	}
	for _, l := range res.Lines {
		out.Orders = append(out.Orders, orderResponse{
			LineID:  l.Item.ID,
			TripID:  l.Item.TripID,
			Payload: l.Payload,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

// emptyCart stands in for the cart of a session issued by this request.
type emptyCart struct{}

func (emptyCart) Snapshot() cart.Snapshot { return cart.Snapshot{} }

func (emptyCart) Clear(context.Context) {}

// mapCheckoutError converts checkout errors to a status and response body.
func mapCheckoutError(res *checkout.Result, err error) (int, errorResponse) {
	if errors.Is(err, checkout.ErrUnauthenticated) {
		return http.StatusUnauthorized, errorResponse{
			Code:    http.StatusUnauthorized,
			Message: "please sign in",
		}
	}
	if errors.Is(err, checkout.ErrEmptyCart) {
		return http.StatusUnprocessableEntity, errorResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: "your cart is empty",
		}
	}

	var pf *checkout.PartialFailureError
	if errors.As(err, &pf) {
		body := errorResponse{
			Code:    http.StatusBadGateway,
			Message: fmt.Sprintf("%d of %d bookings failed, please retry", pf.Failed(), pf.Total),
		}
		if res != nil {
			for _, l := range res.Failures() {
				body.Failures = append(body.Failures, lineFailure{
					LineID: l.Item.ID,
					TripID: l.Item.TripID,
					Title:  l.Item.Title,
					Reason: failureReason(l.Err),
				})
			}
		}
		return http.StatusBadGateway, body
	}

	return http.StatusInternalServerError, errorResponse{
		Code:    http.StatusInternalServerError,
		Message: "internal error",
	}
}

func failureReason(err error) string {
	var appErr *checkout.ApplicationError
	if errors.As(err, &appErr) {
		if appErr.Message != "" {
			return appErr.Message
		}
		return fmt.Sprintf("rejected with status %d", appErr.StatusCode)
	}
	var netErr *checkout.NetworkError
	if errors.As(err, &netErr) {
		return "booking service unreachable"
	}
	return "unknown error"
}
