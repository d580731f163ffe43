// ABOUTME: Server-rendered web UI for the agent hub
// ABOUTME: Page routes, login/register/logout form handlers, and redirects

package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BAEM1N/a2a-agent-hub/internal/auth"
	"github.com/BAEM1N/a2a-agent-hub/internal/registry"
	"github.com/BAEM1N/a2a-agent-hub/internal/store"
)

// Handler serves the HTML pages and the form-based auth endpoints.
type Handler struct {
	auth     *auth.Service
	registry *registry.Service
	logger   *slog.Logger
}

// New creates a web Handler.
func New(authSvc *auth.Service, reg *registry.Service) *Handler {
	return &Handler{
		auth:     authSvc,
		registry: reg,
		logger:   slog.Default().With("component", "web"),
	}
}

// RegisterRoutes registers the page routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /login", h.handleLoginPage)
	mux.HandleFunc("GET /register", h.handleRegisterPage)
	mux.HandleFunc("GET /playground", h.handlePlayground)
	mux.HandleFunc("GET /profile", h.handleProfile)

	h.logger.Info("web routes registered")
}

// handleIndex renders the agent directory. Visible without login unless
// authentication is required.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.UserFromRequest(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	agents, err := h.registry.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list agents for index page", "error", err)
		agents = nil
	}

	h.renderIndex(w, user, agents)
}

// handleLoginPage renders the login form, or redirects home when already
// logged in.
func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.UserFromRequest(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, http.StatusOK, "")
}

// handleRegisterPage renders the signup form.
func (h *Handler) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.UserFromRequest(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderRegister(w, http.StatusOK, "")
}

// handlePlayground renders the agent test playground.
func (h *Handler) handlePlayground(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.UserFromRequest(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	agents, err := h.registry.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list agents for playground", "error", err)
		agents = nil
	}

	h.renderPlayground(w, user, agents)
}

// handleProfile renders the profile and API settings page.
func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.UserFromRequest(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	h.renderProfile(w, user)
}

// credentialsRequest is the JSON body accepted by the auth endpoints as an
// alternative to a form post.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// HandleLogin processes a login submission. Form posts get a redirect or a
// re-rendered page; JSON bodies get a JSON response carrying a bearer token
// for programmatic API access.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		h.handleLoginJSON(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	if username == "" || password == "" {
		h.renderLogin(w, http.StatusBadRequest, "Username and password required")
		return
	}

	session, _, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.renderLogin(w, http.StatusBadRequest, "Invalid username or password")
			return
		}
		h.logger.Error("login failed", "username", username, "error", err)
		h.renderLogin(w, http.StatusInternalServerError, "An error occurred")
		return
	}

	auth.SetSessionCookie(w, r, session)
	h.logger.Info("login successful", "username", username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleLoginJSON(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Username == "" || req.Password == "" {
		sendJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password required"})
		return
	}

	session, token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			sendJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid username or password"})
			return
		}
		h.logger.Error("login failed", "username", req.Username, "error", err)
		sendJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	auth.SetSessionCookie(w, r, session)
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok", "token": token})
}

// HandleRegister processes a signup submission, accepting the same form and
// JSON shapes as HandleLogin.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		h.handleRegisterJSON(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderRegister(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	if username == "" || password == "" {
		h.renderRegister(w, http.StatusBadRequest, "Username and password required")
		return
	}

	_, session, _, err := h.auth.Register(r.Context(), username, password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidUsername):
			h.renderRegister(w, http.StatusBadRequest, "Username must start with a letter and contain only letters, numbers, and underscores (3-32 characters)")
		case errors.Is(err, auth.ErrPasswordTooShort):
			h.renderRegister(w, http.StatusBadRequest, "Password is too short")
		case errors.Is(err, store.ErrUsernameExists):
			h.renderRegister(w, http.StatusBadRequest, "Username already taken")
		default:
			h.logger.Error("registration failed", "username", username, "error", err)
			h.renderRegister(w, http.StatusInternalServerError, "An error occurred")
		}
		return
	}

	auth.SetSessionCookie(w, r, session)
	h.logger.Info("user registered", "username", username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleRegisterJSON(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Username == "" || req.Password == "" {
		sendJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password required"})
		return
	}

	_, session, token, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidUsername),
			errors.Is(err, auth.ErrPasswordTooShort),
			errors.Is(err, store.ErrUsernameExists):
			sendJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			h.logger.Error("registration failed", "username", req.Username, "error", err)
			sendJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	auth.SetSessionCookie(w, r, session)
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok", "token": token})
}

// HandleLogout destroys the session and clears the cookie.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(r.Context(), r)
	auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
