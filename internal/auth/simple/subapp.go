package simple

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"skein.org/internal/audit"
	"skein.org/internal/auth"
	"skein.org/internal/obs"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SubApp mounts the backend's own endpoints under /auth: a credential login
// that mints identity tokens, and a no-op logout (tokens are stateless).
func (m *Manager) SubApp() (string, http.Handler) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", m.handleToken)
	mux.HandleFunc("/logout", m.handleLogout)
	return "/auth", mux
}

func (m *Manager) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if m.codec == nil {
		writeError(w, http.StatusNotImplemented, "token issuance is not configured")
		return
	}

	user, err := m.authenticate(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	payload, err := m.SerializeUser(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issuance failed")
		return
	}
	token, expiresAt, err := m.codec.Issue(payload)
	if err != nil {
		obs.Error("token issuance failed", map[string]any{"user": user.GetID()})
		writeError(w, http.StatusInternalServerError, "token issuance failed")
		return
	}
	obs.ObserveTokenIssued()
	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"user":       user.GetID(),
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

func (m *Manager) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Nothing to revoke; clients drop the token.
	w.WriteHeader(http.StatusNoContent)
}

var errBadCredentials = errors.New("invalid credentials")

func (m *Manager) authenticate(username, password string) (StaticUser, error) {
	user, ok := m.users[username]
	if !ok || user.PasswordHash == "" {
		// Burn a comparison anyway so unknown and known users cost the same.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5B0GAXr54K0/pVFJ6BQ3sVHpE1De6"), []byte(password))
		return StaticUser{}, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return StaticUser{}, errBadCredentials
	}
	return user, nil
}

// RegisterViews exposes the login page to the UI shell.
func (m *Manager) RegisterViews(reg auth.ViewRegistry) {
	reg.AddView("login", "/auth/token")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}
