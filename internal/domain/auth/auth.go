// Package auth exposes the bearer credential of the current user.
package auth

import (
	"net/http"
	"strings"
)

// SessionCookie is the cookie carrying the bearer token when no
// Authorization header is sent.
const SessionCookie = "session_token"

// Source provides an opaque bearer credential. ok is false when the user is
// not signed in.
type Source interface {
	Token() (token string, ok bool)
}

// Static is a Source backed by a fixed token. The empty string means absent.
type Static string

// Token implements Source.
func (s Static) Token() (string, bool) {
	t := strings.TrimSpace(string(s))
	return t, t != ""
}

// FromRequest extracts the credential from the Authorization bearer header,
// falling back to the session cookie.
func FromRequest(r *http.Request) Source {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return Static(token)
		}
		return Static("")
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return Static(c.Value)
	}
	return Static("")
}
