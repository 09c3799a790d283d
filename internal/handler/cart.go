package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/tripcart/internal/domain/cart"
)

// GetCart returns the session's items with per-line and cart totals.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r, false)
	if !ok {
		return
	}
	var snap cart.Snapshot
	if s != nil {
		snap = s.Snapshot()
	}
	writeJSON(w, r, http.StatusOK, newCartResponse(snap))
}

// AddItem appends a line item built from the request body.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var in cart.Input
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed item")
		return
	}
	if in.TripID == "" {
		writeError(w, r, http.StatusBadRequest, "tripId is required")
		return
	}
	if in.UnitPrice < 0 {
		writeError(w, r, http.StatusBadRequest, "unitPrice must not be negative")
		return
	}
	if err := cart.CheckLineTotal(in.UnitPrice, max(in.TravelerCount, 1)); err != nil {
		writeError(w, r, http.StatusBadRequest, "line total too large")
		return
	}

	s, ok := h.store(w, r, true)
	if !ok {
		return
	}
	item := s.Add(r.Context(), in)
	writeJSON(w, r, http.StatusCreated, newItemResponse(item))
}

// UpdateItem merges the set fields of the body into a line item. A traveler
// count below one removes the line and answers 204.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var p cart.Patch
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed patch")
		return
	}

	id := r.PathValue("id")
	s, ok := h.store(w, r, false)
	if !ok {
		return
	}
	if s == nil {
		writeError(w, r, http.StatusNotFound, "item not found")
		return
	}
	if p.TravelerCount != nil {
		if cur, found := s.Get(id); found {
			if err := cart.CheckLineTotal(cur.UnitPrice, *p.TravelerCount); err != nil {
				writeError(w, r, http.StatusBadRequest, "line total too large")
				return
			}
		}
	}
	if err := s.Update(r.Context(), id, p); err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			writeError(w, r, http.StatusNotFound, "item not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	item, found := s.Get(id)
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, r, http.StatusOK, newItemResponse(item))
}

// RemoveItem deletes a line item. Unknown ids are not an error.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r, false)
	if !ok {
		return
	}
	if s != nil {
		s.Remove(r.Context(), r.PathValue("id"))
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearCart empties the session's cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r, false)
	if !ok {
		return
	}
	if s != nil {
		s.Clear(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}
