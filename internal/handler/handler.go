// Package handler serves the cart and checkout JSON API.
package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/tripcart/internal/domain/auth"
	"github.com/xenking/tripcart/internal/domain/cart"
	"github.com/xenking/tripcart/internal/domain/checkout"
)

const (
	// SessionCookie carries the cart session id.
	SessionCookie = "cart_session"
	// SessionHeader is accepted instead of the cookie by non-browser clients.
	SessionHeader = "X-Cart-Session"

	sessionMaxAge = 30 * 24 * 60 * 60
	maxBodyBytes  = 64 << 10
)

// Sessions resolves the cart store of a session.
type Sessions interface {
	Get(ctx context.Context, id string) (*cart.Store, error)
}

// Checkouter submits a cart as orders.
type Checkouter interface {
	Checkout(ctx context.Context, c checkout.Cart, creds auth.Source) (*checkout.Result, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// SecureCookie marks the session cookie Secure. Enable behind TLS.
	SecureCookie bool
}

// Handler exposes cart mutations and checkout over HTTP.
type Handler struct {
	sessions     Sessions
	checkout     Checkouter
	secureCookie bool
}

// New constructs a Handler.
func New(cfg Config, sessions Sessions, co Checkouter) *Handler {
	return &Handler{
		sessions:     sessions,
		checkout:     co,
		secureCookie: cfg.SecureCookie,
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("DELETE /api/cart", h.ClearCart)
	mux.HandleFunc("POST /api/cart/items", h.AddItem)
	mux.HandleFunc("PATCH /api/cart/items/{id}", h.UpdateItem)
	mux.HandleFunc("DELETE /api/cart/items/{id}", h.RemoveItem)
	mux.HandleFunc("POST /api/checkout", h.Checkout)
}

// SessionID returns the session id sent with r, or "" when there is none or
// it is malformed.
func SessionID(r *http.Request) string {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}
	}
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}

// session returns the request's session id, issuing a new one when the
// request carries none. fresh reports whether the id was just issued.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (id string, fresh bool) {
	id = SessionID(r)
	if id == "" {
		id, fresh = uuid.NewString(), true
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   sessionMaxAge,
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	w.Header().Set(SessionHeader, id)
	return id, fresh
}

// store resolves the session's cart. When the session was just issued and
// create is false, it returns a nil store: the cart is known to be empty and
// nothing needs opening. On failure the error response is already written
// and ok is false.
func (h *Handler) store(w http.ResponseWriter, r *http.Request, create bool) (s *cart.Store, ok bool) {
	id, fresh := h.session(w, r)
	if fresh && !create {
		return nil, true
	}
	s, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		zctx.From(r.Context()).Error("Resolve cart", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "cart temporarily unavailable")
		return nil, false
	}
	return s, true
}
