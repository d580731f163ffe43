// ABOUTME: Registry service for agent registration, listing, deletion, and health probes
// ABOUTME: Orchestrates the card fetcher and record store; no HTTP concerns

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BAEM1N/a2a-agent-hub/internal/card"
	"github.com/BAEM1N/a2a-agent-hub/internal/store"
)

// ErrForbidden is returned when a user tries to delete an agent they don't own.
var ErrForbidden = errors.New("not authorized to delete this agent")

// UnknownOwner is reported when an agent's owning user can no longer be resolved.
const UnknownOwner = "Unknown"

// RegistrationError indicates the agent card could not be fetched or parsed
// during registration. No record is created when this is returned.
type RegistrationError struct {
	Cause error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("agent registration failed: %v", e.Cause)
}

func (e *RegistrationError) Unwrap() error {
	return e.Cause
}

// CardFetcher is the card retrieval contract the registry depends on.
type CardFetcher interface {
	Fetch(ctx context.Context, baseURL string) (*card.AgentCard, error)
}

// RegisteredAgent pairs an agent record with its owner's display name.
type RegisteredAgent struct {
	Agent        *store.Agent
	RegisteredBy string
}

// Service implements agent registration and health probing on top of a Store
// and a CardFetcher.
type Service struct {
	store   store.Store
	fetcher CardFetcher
	logger  *slog.Logger

	// now is swappable for tests
	now func() time.Time
}

// New creates a registry Service.
func New(st store.Store, fetcher CardFetcher) *Service {
	return &Service{
		store:   st,
		fetcher: fetcher,
		logger:  slog.Default().With("component", "registry"),
		now:     time.Now,
	}
}

// CanonicalURL strips trailing slashes so u and u+"/" register the same agent.
func CanonicalURL(u string) string {
	return strings.TrimRight(u, "/")
}

// Register fetches the card for url and persists a new agent owned by ownerID.
// Returns store.ErrDuplicateAgent when the canonical URL is already registered
// and *RegistrationError when the card fetch fails; no record is created in
// either case.
func (s *Service) Register(ctx context.Context, url, ownerID string) (*RegisteredAgent, error) {
	canonical := CanonicalURL(url)

	// Cheap duplicate check before the network round trip; the store's unique
	// index still backstops concurrent registrations.
	if _, err := s.store.GetAgentByURL(ctx, canonical); err == nil {
		return nil, store.ErrDuplicateAgent
	} else if !errors.Is(err, store.ErrAgentNotFound) {
		return nil, err
	}

	agentCard, err := s.fetcher.Fetch(ctx, canonical)
	if err != nil {
		s.logger.Warn("card fetch failed during registration", "url", canonical, "error", err)
		return nil, &RegistrationError{Cause: err}
	}

	now := s.now().UTC()
	agent := &store.Agent{
		ID:               uuid.New().String(),
		URL:              canonical,
		Name:             agentCard.Name,
		Description:      agentCard.Description,
		Version:          agentCard.Version,
		Skills:           projectSkills(agentCard.Skills),
		Provider:         agentCard.Provider.Name,
		DocumentationURL: agentCard.DocumentationURL,
		UserID:           ownerID,
		RegisteredAt:     now,
		LastHealthCheck:  &now,
		IsHealthy:        true,
	}

	if err := s.store.CreateAgent(ctx, agent); err != nil {
		return nil, err
	}

	ownerName := s.ownerName(ctx, ownerID)
	s.logger.Info("registered agent", "id", agent.ID, "url", agent.URL, "name", agent.Name, "owner", ownerName)

	return &RegisteredAgent{Agent: agent, RegisteredBy: ownerName}, nil
}

// projectSkills maps card skills into stored skill descriptors. Missing card
// fields become empty strings.
func projectSkills(skills []card.Skill) []store.Skill {
	out := make([]store.Skill, 0, len(skills))
	for _, sk := range skills {
		out = append(out, store.Skill{
			ID:          sk.ID,
			Name:        sk.Name,
			Description: sk.Description,
		})
	}
	return out
}

// List returns all agents newest-first, each joined with its owner's username.
// An owner that no longer resolves is reported as "Unknown" rather than
// failing the listing.
func (s *Service) List(ctx context.Context) ([]*RegisteredAgent, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}

	// Resolve each distinct owner once
	names := make(map[string]string)
	result := make([]*RegisteredAgent, 0, len(agents))
	for _, agent := range agents {
		name, ok := names[agent.UserID]
		if !ok {
			name = s.ownerName(ctx, agent.UserID)
			names[agent.UserID] = name
		}
		result = append(result, &RegisteredAgent{Agent: agent, RegisteredBy: name})
	}
	return result, nil
}

// Delete removes an agent. Only the owning user may delete it.
func (s *Service) Delete(ctx context.Context, agentID, requesterID string) error {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}
	if agent.UserID != requesterID {
		return ErrForbidden
	}
	if err := s.store.DeleteAgent(ctx, agentID); err != nil {
		return err
	}
	s.logger.Info("deleted agent", "id", agentID, "url", agent.URL)
	return nil
}

// Health status strings reported by Probe.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Probe re-fetches the agent's card and records the outcome. Fetch failures
// are not errors here: this is a best-effort diagnostic, so they come back as
// an "unhealthy" status. Only a missing agent or a store failure returns an
// error. The health flag and check timestamp are written together on every
// outcome.
func (s *Service) Probe(ctx context.Context, agentID string) (status string, agentURL string, err error) {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return "", "", err
	}

	healthy := true
	if _, err := s.fetcher.Fetch(ctx, agent.URL); err != nil {
		s.logger.Debug("health probe failed", "id", agentID, "url", agent.URL, "error", err)
		healthy = false
	}

	if err := s.store.UpdateAgentHealth(ctx, agentID, healthy, s.now().UTC()); err != nil {
		return "", "", err
	}

	if healthy {
		return StatusHealthy, agent.URL, nil
	}
	return StatusUnhealthy, agent.URL, nil
}

func (s *Service) ownerName(ctx context.Context, userID string) string {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return UnknownOwner
	}
	return user.Username
}
