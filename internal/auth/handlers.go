package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/peervc/peervc/internal/httpserver"
	"github.com/peervc/peervc/internal/metrics"
)

// Handlers exposes signup and login over HTTP. Both return a session token
// the client presents on the WebSocket upgrade.
type Handlers struct {
	log     *slog.Logger
	metrics *metrics.Metrics
	store   *Store
	issuer  *TokenIssuer
}

func NewHandlers(log *slog.Logger, m *metrics.Metrics, store *Store, issuer *TokenIssuer) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Handlers{log: log, metrics: m, store: store, issuer: issuer}
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/signup", h.handleSignup)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (h *Handlers) handleSignup(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	if err := h.store.CreateUser(r.Context(), req.Username, req.Password); err != nil {
		switch {
		case errors.Is(err, ErrUserExists):
			httpserver.WriteJSON(w, http.StatusConflict, map[string]any{"error": "username already taken"})
		case errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrWeakPassword):
			httpserver.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		default:
			h.log.Error("signup failed", "err", err)
			httpserver.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		}
		return
	}

	h.issueToken(w, req.Username, http.StatusCreated)
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	if err := h.store.Authenticate(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.metrics.Inc(metrics.AuthFailure)
			httpserver.WriteJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid username or password"})
			return
		}
		h.log.Error("login failed", "err", err)
		httpserver.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	h.issueToken(w, req.Username, http.StatusOK)
}

// Tokens are stateless, so logout is a client-side discard; the endpoint
// exists so clients have a uniform auth API.
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handlers) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()

	var req credentialsRequest
	if err := dec.Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		httpserver.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "expected username and password"})
		return credentialsRequest{}, false
	}
	return req, true
}

func (h *Handlers) issueToken(w http.ResponseWriter, username string, status int) {
	token, err := h.issuer.Issue(username)
	if err != nil {
		h.log.Error("token issue failed", "err", err)
		httpserver.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}
	httpserver.WriteJSON(w, status, tokenResponse{Username: username, Token: token})
}
