// ABOUTME: Tests for the registry service
// ABOUTME: Covers registration, URL canonicalization, ownership checks, and health probes

package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BAEM1N/a2a-agent-hub/internal/card"
	"github.com/BAEM1N/a2a-agent-hub/internal/store"
)

// stubFetcher returns a fixed card or error without any network traffic.
type stubFetcher struct {
	card    *card.AgentCard
	err     error
	fetched []string
}

func (f *stubFetcher) Fetch(ctx context.Context, baseURL string) (*card.AgentCard, error) {
	f.fetched = append(f.fetched, baseURL)
	if f.err != nil {
		return nil, f.err
	}
	return f.card, nil
}

func echoCard() *card.AgentCard {
	return &card.AgentCard{
		Name:        "Echo",
		Description: "Echoes messages",
		Version:     "1.0.0",
		Provider:    card.Provider{Name: "Test Lab"},
		Skills: []card.Skill{
			{ID: "echo", Name: "Echo", Description: "Repeats input"},
		},
	}
}

func newTestService(fetcher CardFetcher) (*Service, *store.MockStore) {
	st := store.NewMockStore()
	svc := New(st, fetcher)
	return svc, st
}

func createOwner(t *testing.T, st *store.MockStore, id, username string) {
	t.Helper()
	err := st.CreateUser(context.Background(), &store.User{
		ID:        id,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
}

func TestRegister(t *testing.T) {
	svc, st := newTestService(&stubFetcher{card: echoCard()})
	createOwner(t, st, "u1", "alice")

	ra, err := svc.Register(context.Background(), "http://agent.example/", "u1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if ra.Agent.URL != "http://agent.example" {
		t.Errorf("URL not canonicalized: got %q", ra.Agent.URL)
	}
	if ra.Agent.ID == "" {
		t.Error("expected generated agent ID")
	}
	if ra.Agent.Name != "Echo" || ra.Agent.Provider != "Test Lab" {
		t.Errorf("card fields not projected: %+v", ra.Agent)
	}
	if len(ra.Agent.Skills) != 1 || ra.Agent.Skills[0].ID != "echo" {
		t.Errorf("skills not projected: %+v", ra.Agent.Skills)
	}
	if !ra.Agent.IsHealthy {
		t.Error("freshly registered agent should be healthy")
	}
	if ra.Agent.LastHealthCheck == nil {
		t.Error("expected LastHealthCheck to be set at registration")
	}
	if ra.RegisteredBy != "alice" {
		t.Errorf("RegisteredBy mismatch: got %q", ra.RegisteredBy)
	}
}

func TestRegister_DuplicateURL(t *testing.T) {
	svc, st := newTestService(&stubFetcher{card: echoCard()})
	createOwner(t, st, "u1", "alice")

	if _, err := svc.Register(context.Background(), "http://agent.example", "u1"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	// Same URL with a trailing slash is the same agent
	_, err := svc.Register(context.Background(), "http://agent.example/", "u1")
	if !errors.Is(err, store.ErrDuplicateAgent) {
		t.Errorf("expected ErrDuplicateAgent, got %v", err)
	}

	agents, err := st.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("ListAgents failed: %v", err)
	}
	if len(agents) != 1 {
		t.Errorf("duplicate registration created a record: %d agents", len(agents))
	}
}

func TestRegister_CardFetchFails(t *testing.T) {
	svc, st := newTestService(&stubFetcher{err: errors.New("connection refused")})
	createOwner(t, st, "u1", "alice")

	_, err := svc.Register(context.Background(), "http://agent.example", "u1")
	if err == nil {
		t.Fatal("expected registration to fail")
	}

	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected *RegistrationError, got %T", err)
	}

	agents, _ := st.ListAgents(context.Background())
	if len(agents) != 0 {
		t.Errorf("failed registration left a record: %d agents", len(agents))
	}
}

func TestList_ResolvesOwners(t *testing.T) {
	svc, st := newTestService(&stubFetcher{card: echoCard()})
	createOwner(t, st, "u1", "alice")

	if _, err := svc.Register(context.Background(), "http://a.example", "u1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := svc.Register(context.Background(), "http://b.example", "ghost"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	agents, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}

	byURL := map[string]string{}
	for _, ra := range agents {
		byURL[ra.Agent.URL] = ra.RegisteredBy
	}
	if byURL["http://a.example"] != "alice" {
		t.Errorf("expected owner alice, got %q", byURL["http://a.example"])
	}
	if byURL["http://b.example"] != UnknownOwner {
		t.Errorf("expected %q for missing owner, got %q", UnknownOwner, byURL["http://b.example"])
	}
}

func TestDelete_OwnerOnly(t *testing.T) {
	svc, st := newTestService(&stubFetcher{card: echoCard()})
	createOwner(t, st, "u1", "alice")
	createOwner(t, st, "u2", "bob")

	ra, err := svc.Register(context.Background(), "http://agent.example", "u1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err = svc.Delete(context.Background(), ra.Agent.ID, "u2")
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	// Forbidden deletion leaves the record intact
	if _, err := st.GetAgent(context.Background(), ra.Agent.ID); err != nil {
		t.Errorf("agent record vanished after forbidden delete: %v", err)
	}

	if err := svc.Delete(context.Background(), ra.Agent.ID, "u1"); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}
	if _, err := st.GetAgent(context.Background(), ra.Agent.ID); !errors.Is(err, store.ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound after delete, got %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc, _ := newTestService(&stubFetcher{card: echoCard()})

	err := svc.Delete(context.Background(), "missing", "u1")
	if !errors.Is(err, store.ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestProbe_Healthy(t *testing.T) {
	fetcher := &stubFetcher{card: echoCard()}
	svc, st := newTestService(fetcher)
	createOwner(t, st, "u1", "alice")

	ra, err := svc.Register(context.Background(), "http://agent.example", "u1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	status, url, err := svc.Probe(context.Background(), ra.Agent.ID)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if status != StatusHealthy {
		t.Errorf("expected %q, got %q", StatusHealthy, status)
	}
	if url != "http://agent.example" {
		t.Errorf("URL mismatch: got %q", url)
	}
}

func TestProbe_FetchFailureIsUnhealthyNotError(t *testing.T) {
	fetcher := &stubFetcher{card: echoCard()}
	svc, st := newTestService(fetcher)
	createOwner(t, st, "u1", "alice")

	ra, err := svc.Register(context.Background(), "http://agent.example", "u1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	fetcher.err = errors.New("connection refused")
	status, url, err := svc.Probe(context.Background(), ra.Agent.ID)
	if err != nil {
		t.Fatalf("Probe returned error for fetch failure: %v", err)
	}
	if status != StatusUnhealthy {
		t.Errorf("expected %q, got %q", StatusUnhealthy, status)
	}
	if url != ra.Agent.URL {
		t.Errorf("URL mismatch: got %q", url)
	}

	// Only the health pair changed on the stored record
	got, err := st.GetAgent(context.Background(), ra.Agent.ID)
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if got.IsHealthy {
		t.Error("expected agent marked unhealthy")
	}
	if got.LastHealthCheck == nil || got.LastHealthCheck.Before(*ra.Agent.LastHealthCheck) {
		t.Error("expected LastHealthCheck to advance")
	}
	if got.Name != ra.Agent.Name || got.URL != ra.Agent.URL {
		t.Error("probe modified non-health fields")
	}
}

func TestProbe_UnknownAgent(t *testing.T) {
	svc, _ := newTestService(&stubFetcher{card: echoCard()})

	_, _, err := svc.Probe(context.Background(), "missing")
	if !errors.Is(err, store.ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestCanonicalURL(t *testing.T) {
	cases := map[string]string{
		"http://a.example":    "http://a.example",
		"http://a.example/":   "http://a.example",
		"http://a.example///": "http://a.example",
	}
	for in, want := range cases {
		if got := CanonicalURL(in); got != want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", in, got, want)
		}
	}
}
