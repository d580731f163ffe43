// ABOUTME: Session-cookie authentication for the hub web UI and JSON API
// ABOUTME: bcrypt password hashing, DB-backed expiring sessions, and auth middleware

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/BAEM1N/a2a-agent-hub/internal/store"
)

// Username validation regex: alphanumeric + underscores, 3-32 characters
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{2,31}$`)

const (
	// SessionCookieName is the name of the session cookie
	SessionCookieName = "agent_hub_session"

	// SessionDuration is the default session lifetime when config leaves it unset
	SessionDuration = 7 * 24 * time.Hour // 7 days

	// MinPasswordLength is the shortest accepted password
	MinPasswordLength = 4
)

// ErrNotAuthenticated is returned when no valid session or token is present.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrInvalidCredentials is returned on a bad username/password pair.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrInvalidUsername is returned when a signup username fails validation.
var ErrInvalidUsername = errors.New("username must be 3-32 characters, letters, digits, underscores")

// ErrPasswordTooShort is returned when a signup password is too short.
var ErrPasswordTooShort = errors.New("password must be at least 4 characters")

// AnonymousUser is the identity used when authentication is disabled.
var AnonymousUser = &store.User{ID: "anonymous", Username: "anonymous"}

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const userContextKey contextKey = "hub_user"

// Service handles account creation, login, and session resolution.
type Service struct {
	store      store.Store
	tokens     *TokenIssuer
	required   bool
	sessionTTL time.Duration
	logger     *slog.Logger
}

// New creates an auth Service. When required is false every request resolves
// to AnonymousUser and login is bypassed entirely. A zero sessionTTL falls
// back to SessionDuration.
func New(st store.Store, tokens *TokenIssuer, required bool, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = SessionDuration
	}
	s := &Service{
		store:      st,
		tokens:     tokens,
		required:   required,
		sessionTTL: sessionTTL,
		logger:     slog.Default().With("component", "auth"),
	}
	if !required {
		// Registrations made by the anonymous identity need a user row so
		// owner names resolve to "anonymous" instead of "Unknown".
		err := st.CreateUser(context.Background(), &store.User{
			ID:        AnonymousUser.ID,
			Username:  AnonymousUser.Username,
			APIConfig: map[string]any{},
			CreatedAt: time.Now().UTC(),
		})
		if err != nil && !errors.Is(err, store.ErrUsernameExists) {
			s.logger.Warn("failed to seed anonymous user", "error", err)
		}
	}
	return s
}

// Required reports whether authentication is enforced.
func (s *Service) Required() bool {
	return s.required
}

// HashPassword hashes a password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// dummyHash keeps login timing constant when the username doesn't exist,
// preventing username enumeration.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Login verifies credentials and creates a session, returning the session and
// a bearer token for programmatic API access.
func (s *Service) Login(ctx context.Context, username, password string) (*store.Session, string, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Generate(user.ID, s.sessionTTL)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("login successful", "username", username)
	return session, token, nil
}

// Register creates a new account and logs it in, returning the new user, its
// session, and a bearer token.
func (s *Service) Register(ctx context.Context, username, password string) (*store.User, *store.Session, string, error) {
	if !usernameRegex.MatchString(username) {
		return nil, nil, "", ErrInvalidUsername
	}
	if len(password) < MinPasswordLength {
		return nil, nil, "", ErrPasswordTooShort
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, nil, "", err
	}

	user := &store.User{
		ID:           newID(),
		Username:     username,
		PasswordHash: hash,
		APIConfig:    map[string]any{},
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, nil, "", err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, "", err
	}

	token, err := s.tokens.Generate(user.ID, s.sessionTTL)
	if err != nil {
		return nil, nil, "", err
	}

	s.logger.Info("user registered", "username", username)
	return user, session, token, nil
}

// Logout deletes the session named by the cookie, if any.
func (s *Service) Logout(ctx context.Context, r *http.Request) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return
	}
	_ = s.store.DeleteSession(ctx, cookie.Value)
}

func (s *Service) createSession(ctx context.Context, userID string) (*store.Session, error) {
	id, err := generateSecureToken(32)
	if err != nil {
		return nil, err
	}

	session := &store.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SetSessionCookie writes the session cookie on the response.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, session *store.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// UserFromRequest resolves the authenticated user from the session cookie or,
// failing that, from a bearer token. Returns AnonymousUser when auth is
// disabled and ErrNotAuthenticated when no identity can be established.
func (s *Service) UserFromRequest(r *http.Request) (*store.User, error) {
	if !s.required {
		return AnonymousUser, nil
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		session, err := s.store.GetSession(r.Context(), cookie.Value)
		if err == nil {
			return s.store.GetUser(r.Context(), session.UserID)
		}
	}

	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		userID, err := s.tokens.Verify(strings.TrimPrefix(authz, "Bearer "))
		if err == nil {
			return s.store.GetUser(r.Context(), userID)
		}
	}

	return nil, ErrNotAuthenticated
}

// RequireUser wraps an API handler, rejecting unauthenticated requests with a
// 401 JSON error. The resolved user is placed on the request context.
func (s *Service) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.UserFromRequest(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"not authenticated"}`))
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// UserFromContext retrieves the authenticated user placed by RequireUser.
func UserFromContext(ctx context.Context) *store.User {
	user, _ := ctx.Value(userContextKey).(*store.User)
	return user
}

func newID() string {
	return uuid.New().String()
}

// generateSecureToken returns a URL-safe random string of n bytes of entropy.
func generateSecureToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
