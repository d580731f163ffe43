// ABOUTME: Store interface and data types for agent-hub persistence
// ABOUTME: Defines Agent, User, Session structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrAgentNotFound is returned when a requested agent does not exist
var ErrAgentNotFound = errors.New("agent not found")

// ErrDuplicateAgent is returned when trying to register a URL that already exists
var ErrDuplicateAgent = errors.New("agent already registered")

// ErrUserNotFound is returned when a requested user does not exist
var ErrUserNotFound = errors.New("user not found")

// ErrUsernameExists is returned when trying to create a user with an existing username
var ErrUsernameExists = errors.New("username already exists")

// ErrSessionNotFound is returned when a session doesn't exist or is expired
var ErrSessionNotFound = errors.New("session not found")

// Skill describes a single capability advertised in an agent's card
type Skill struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Agent represents a registered remote agent.
// URL is the canonical form (trailing slash stripped) and is unique across all
// records. IsHealthy and LastHealthCheck are always written together.
type Agent struct {
	ID               string
	URL              string
	Name             string
	Description      string
	Version          string
	Skills           []Skill
	Provider         string
	DocumentationURL string
	UserID           string
	RegisteredAt     time.Time
	LastHealthCheck  *time.Time
	IsHealthy        bool
}

// User represents an account that can register agents.
// APIConfig holds the user's saved playground settings (API keys, custom
// headers) as an opaque string map.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	APIConfig    map[string]any
	CreatedAt    time.Time
}

// Session represents an authenticated browser session
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store defines the interface for agent, user, and session persistence
type Store interface {
	// Agents
	CreateAgent(ctx context.Context, agent *Agent) error
	GetAgent(ctx context.Context, id string) (*Agent, error)
	GetAgentByURL(ctx context.Context, url string) (*Agent, error)
	ListAgents(ctx context.Context) ([]*Agent, error)
	UpdateAgentHealth(ctx context.Context, id string, healthy bool, checkedAt time.Time) error
	DeleteAgent(ctx context.Context, id string) error

	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUserAPIConfig(ctx context.Context, id string, config map[string]any) error

	// Sessions
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
