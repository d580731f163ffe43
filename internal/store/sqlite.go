// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides agent/user/session persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			api_config TEXT,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);

		CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			url TEXT UNIQUE NOT NULL,
			name TEXT,
			description TEXT,
			version TEXT,
			skills TEXT,
			provider TEXT,
			documentation_url TEXT,
			user_id TEXT NOT NULL REFERENCES users(id),
			registered_at TEXT NOT NULL,
			last_health_check TEXT,
			is_healthy INTEGER NOT NULL DEFAULT 1
		);

		CREATE INDEX IF NOT EXISTS idx_agents_url ON agents(url);
		CREATE INDEX IF NOT EXISTS idx_agents_user ON agents(user_id);
		CREATE INDEX IF NOT EXISTS idx_agents_registered ON agents(registered_at DESC);

		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateAgent inserts a new agent record.
// If an agent with the same URL already exists, it returns ErrDuplicateAgent.
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *Agent) error {
	skillsJSON, err := json.Marshal(agent.Skills)
	if err != nil {
		return fmt.Errorf("encoding skills: %w", err)
	}

	query := `
		INSERT INTO agents (id, url, name, description, version, skills, provider,
			documentation_url, user_id, registered_at, last_health_check, is_healthy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		agent.ID,
		agent.URL,
		agent.Name,
		agent.Description,
		agent.Version,
		string(skillsJSON),
		agent.Provider,
		agent.DocumentationURL,
		agent.UserID,
		agent.RegisteredAt.UTC().Format(time.RFC3339),
		formatNullableTime(agent.LastHealthCheck),
		boolToInt(agent.IsHealthy),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateAgent
		}
		return fmt.Errorf("inserting agent: %w", err)
	}

	s.logger.Debug("created agent", "id", agent.ID, "url", agent.URL)
	return nil
}

// GetAgent retrieves an agent by ID. Returns ErrAgentNotFound if it doesn't exist.
func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	query := `
		SELECT id, url, name, description, version, skills, provider,
			documentation_url, user_id, registered_at, last_health_check, is_healthy
		FROM agents WHERE id = ?
	`
	return s.scanAgent(s.db.QueryRowContext(ctx, query, id))
}

// GetAgentByURL retrieves an agent by its canonical URL.
// Returns ErrAgentNotFound if it doesn't exist.
func (s *SQLiteStore) GetAgentByURL(ctx context.Context, url string) (*Agent, error) {
	query := `
		SELECT id, url, name, description, version, skills, provider,
			documentation_url, user_id, registered_at, last_health_check, is_healthy
		FROM agents WHERE url = ?
	`
	return s.scanAgent(s.db.QueryRowContext(ctx, query, url))
}

// ListAgents returns all agents ordered by registration time, newest first.
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	query := `
		SELECT id, url, name, description, version, skills, provider,
			documentation_url, user_id, registered_at, last_health_check, is_healthy
		FROM agents ORDER BY registered_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		agent, err := s.scanAgentRow(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// UpdateAgentHealth writes the health flag and check timestamp in a single
// statement so they can never drift apart.
func (s *SQLiteStore) UpdateAgentHealth(ctx context.Context, id string, healthy bool, checkedAt time.Time) error {
	query := `UPDATE agents SET is_healthy = ?, last_health_check = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		boolToInt(healthy),
		checkedAt.UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating agent health: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrAgentNotFound
	}

	s.logger.Debug("updated agent health", "id", id, "healthy", healthy)
	return nil
}

// DeleteAgent removes an agent record. Returns ErrAgentNotFound if it doesn't exist.
func (s *SQLiteStore) DeleteAgent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting agent: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrAgentNotFound
	}

	s.logger.Debug("deleted agent", "id", id)
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan logic
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanAgent(row *sql.Row) (*Agent, error) {
	agent, err := s.scanAgentRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrAgentNotFound
	}
	return agent, err
}

func (s *SQLiteStore) scanAgentRow(row rowScanner) (*Agent, error) {
	var agent Agent
	var skillsJSON, registeredAt sql.NullString
	var lastHealthCheck sql.NullString
	var name, description, version, provider, docURL sql.NullString
	var isHealthy int

	err := row.Scan(
		&agent.ID,
		&agent.URL,
		&name,
		&description,
		&version,
		&skillsJSON,
		&provider,
		&docURL,
		&agent.UserID,
		&registeredAt,
		&lastHealthCheck,
		&isHealthy,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning agent: %w", err)
	}

	agent.Name = name.String
	agent.Description = description.String
	agent.Version = version.String
	agent.Provider = provider.String
	agent.DocumentationURL = docURL.String
	agent.IsHealthy = isHealthy != 0

	if skillsJSON.Valid && skillsJSON.String != "" {
		if err := json.Unmarshal([]byte(skillsJSON.String), &agent.Skills); err != nil {
			return nil, fmt.Errorf("decoding skills: %w", err)
		}
	}
	if agent.Skills == nil {
		agent.Skills = []Skill{}
	}

	if registeredAt.Valid {
		agent.RegisteredAt, err = time.Parse(time.RFC3339, registeredAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing registered_at: %w", err)
		}
	}

	if lastHealthCheck.Valid && lastHealthCheck.String != "" {
		t, err := time.Parse(time.RFC3339, lastHealthCheck.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_health_check: %w", err)
		}
		agent.LastHealthCheck = &t
	}

	return &agent, nil
}

// CreateUser inserts a new user. Returns ErrUsernameExists on a duplicate username.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	configJSON, err := json.Marshal(user.APIConfig)
	if err != nil {
		return fmt.Errorf("encoding api config: %w", err)
	}

	query := `
		INSERT INTO users (id, username, password_hash, api_config, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		string(configJSON),
		user.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "username", user.Username)
	return nil
}

// GetUser retrieves a user by ID. Returns ErrUserNotFound if it doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `SELECT id, username, password_hash, api_config, created_at FROM users WHERE id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username. Returns ErrUserNotFound if missing.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT id, username, password_hash, api_config, created_at FROM users WHERE username = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

// UpdateUserAPIConfig replaces the user's saved API settings.
func (s *SQLiteStore) UpdateUserAPIConfig(ctx context.Context, id string, config map[string]any) error {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("encoding api config: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET api_config = ? WHERE id = ?`,
		string(configJSON), id,
	)
	if err != nil {
		return fmt.Errorf("updating api config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var configJSON sql.NullString
	var createdAt string

	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &configJSON, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	if configJSON.Valid && configJSON.String != "" {
		if err := json.Unmarshal([]byte(configJSON.String), &user.APIConfig); err != nil {
			return nil, fmt.Errorf("decoding api config: %w", err)
		}
	}
	if user.APIConfig == nil {
		user.APIConfig = map[string]any{}
	}

	user.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &user, nil
}

// CreateSession inserts a new session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	query := `INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.CreatedAt.UTC().Format(time.RFC3339),
		session.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. Expired sessions are treated as missing.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?`

	var session Session
	var createdAt, expiresAt string

	err := s.db.QueryRowContext(ctx, query, id).Scan(&session.ID, &session.UserID, &createdAt, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	session.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	session.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		// Expired sessions are lazily deleted on access
		_ = s.DeleteSession(ctx, id)
		return nil, ErrSessionNotFound
	}

	return &session, nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all sessions past their expiry.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("deleting expired sessions: %w", err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		s.logger.Debug("deleted expired sessions", "count", affected)
	}
	return nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
