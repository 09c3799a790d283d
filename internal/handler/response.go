package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tripcart/internal/domain/cart"
)

type errorResponse struct {
	Code     int           `json:"code"`
	Message  string        `json:"message"`
	Failures []lineFailure `json:"failures,omitempty"`
}

type lineFailure struct {
	LineID string `json:"lineId"`
	TripID string `json:"tripId"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

type itemResponse struct {
	cart.LineItem
	LineTotal int64 `json:"lineTotal"`
	LineTax   int64 `json:"lineTax"`
}

type cartResponse struct {
	Items    []itemResponse `json:"items"`
	Count    int            `json:"count"`
	Subtotal int64          `json:"subtotal"`
	Tax      int64          `json:"tax"`
	Total    int64          `json:"total"`
}

type orderResponse struct {
	LineID  string          `json:"lineId"`
	TripID  string          `json:"tripId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type checkoutResponse struct {
	Orders    []orderResponse `json:"orders"`
	Succeeded int             `json:"succeeded"`
	Total     int             `json:"total"`
}

func newItemResponse(item cart.LineItem) itemResponse {
	return itemResponse{
		LineItem:  item,
		LineTotal: cart.LineTotal(item),
		LineTax:   cart.LineTax(item),
	}
}

func newCartResponse(snap cart.Snapshot) cartResponse {
	t := snap.Totals()
	items := make([]itemResponse, len(snap))
	for i, item := range snap {
		items[i] = newItemResponse(item)
	}
	return cartResponse{
		Items:    items,
		Count:    t.Count,
		Subtotal: t.Subtotal,
		Tax:      t.Tax,
		Total:    t.Total,
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Debug("Write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Code: status, Message: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}
