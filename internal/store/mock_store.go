// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	agents   map[string]*Agent  // keyed by agent ID
	byURL    map[string]string  // canonical URL -> agent ID
	users    map[string]*User   // keyed by user ID
	byName   map[string]string  // username -> user ID
	sessions map[string]*Session
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		agents:   make(map[string]*Agent),
		byURL:    make(map[string]string),
		users:    make(map[string]*User),
		byName:   make(map[string]string),
		sessions: make(map[string]*Session),
	}
}

// CreateAgent stores a new agent, enforcing URL uniqueness.
func (m *MockStore) CreateAgent(ctx context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byURL[agent.URL]; exists {
		return ErrDuplicateAgent
	}

	// Make a copy to avoid external modification
	a := *agent
	if a.Skills == nil {
		a.Skills = []Skill{}
	}
	m.agents[a.ID] = &a
	m.byURL[a.URL] = a.ID
	return nil
}

// GetAgent retrieves an agent by ID.
func (m *MockStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agent, ok := m.agents[id]
	if !ok {
		return nil, ErrAgentNotFound
	}
	a := *agent
	return &a, nil
}

// GetAgentByURL retrieves an agent by its canonical URL.
func (m *MockStore) GetAgentByURL(ctx context.Context, url string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byURL[url]
	if !ok {
		return nil, ErrAgentNotFound
	}
	a := *m.agents[id]
	return &a, nil
}

// ListAgents returns all agents ordered by registration time, newest first.
func (m *MockStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agents := make([]*Agent, 0, len(m.agents))
	for _, agent := range m.agents {
		a := *agent
		agents = append(agents, &a)
	}

	sort.Slice(agents, func(i, j int) bool {
		if agents[i].RegisteredAt.Equal(agents[j].RegisteredAt) {
			return agents[i].ID > agents[j].ID
		}
		return agents[i].RegisteredAt.After(agents[j].RegisteredAt)
	})
	return agents, nil
}

// UpdateAgentHealth updates the health flag and check timestamp together.
func (m *MockStore) UpdateAgentHealth(ctx context.Context, id string, healthy bool, checkedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[id]
	if !ok {
		return ErrAgentNotFound
	}
	agent.IsHealthy = healthy
	t := checkedAt
	agent.LastHealthCheck = &t
	return nil
}

// DeleteAgent removes an agent.
func (m *MockStore) DeleteAgent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[id]
	if !ok {
		return ErrAgentNotFound
	}
	delete(m.byURL, agent.URL)
	delete(m.agents, id)
	return nil
}

// CreateUser stores a new user, enforcing username uniqueness.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byName[user.Username]; exists {
		return ErrUsernameExists
	}
	u := *user
	if u.APIConfig == nil {
		u.APIConfig = map[string]any{}
	}
	m.users[u.ID] = &u
	m.byName[u.Username] = u.ID
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

// GetUserByUsername retrieves a user by username.
func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *m.users[id]
	return &u, nil
}

// UpdateUserAPIConfig replaces the user's saved API settings.
func (m *MockStore) UpdateUserAPIConfig(ctx context.Context, id string, config map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.APIConfig = config
	return nil
}

// CreateSession stores a new session.
func (m *MockStore) CreateSession(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := *session
	m.sessions[s.ID] = &s
	return nil
}

// GetSession retrieves a session by ID, treating expired sessions as missing.
func (m *MockStore) GetSession(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if time.Now().After(session.ExpiresAt) {
		delete(m.sessions, id)
		return nil, ErrSessionNotFound
	}
	s := *session
	return &s, nil
}

// DeleteSession removes a session. Missing sessions are not an error.
func (m *MockStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// DeleteExpiredSessions removes all sessions past their expiry.
func (m *MockStore) DeleteExpiredSessions(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, session := range m.sessions {
		if now.After(session.ExpiresAt) {
			delete(m.sessions, id)
		}
	}
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
