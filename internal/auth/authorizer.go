package auth

import (
	"net/http"
	"strings"
)

// WSAuthorizer validates session tokens on the WebSocket upgrade request.
// Browsers cannot set headers on WebSocket dials, so the token is accepted
// from the `token` query parameter as well as a Bearer header.
type WSAuthorizer struct {
	issuer *TokenIssuer
}

func NewWSAuthorizer(issuer *TokenIssuer) *WSAuthorizer {
	return &WSAuthorizer{issuer: issuer}
}

func (a *WSAuthorizer) Authorize(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if token == "" {
		return "", ErrInvalidToken
	}
	return a.issuer.Verify(token)
}
