// ABOUTME: Tests for the JSON API handlers
// ABOUTME: Drives requests through the routed mux against a mock store

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BAEM1N/a2a-agent-hub/internal/auth"
	"github.com/BAEM1N/a2a-agent-hub/internal/card"
	"github.com/BAEM1N/a2a-agent-hub/internal/config"
	"github.com/BAEM1N/a2a-agent-hub/internal/registry"
	"github.com/BAEM1N/a2a-agent-hub/internal/relay"
	"github.com/BAEM1N/a2a-agent-hub/internal/store"
	"github.com/BAEM1N/a2a-agent-hub/internal/web"
)

// stubFetcher returns a fixed card or error without network traffic.
type stubFetcher struct {
	card *card.AgentCard
	err  error
}

func (f *stubFetcher) Fetch(ctx context.Context, baseURL string) (*card.AgentCard, error) {
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

func newTestServer(required bool, fetcher registry.CardFetcher) (*Server, *store.MockStore) {
	st := store.NewMockStore()
	tokens := auth.NewTokenIssuer([]byte("test-secret"))
	authSvc := auth.New(st, tokens, required, 0)
	reg := registry.New(st, fetcher)
	rel := relay.New(st, relay.Config{
		InvokeTimeout: 5 * time.Second,
		StreamTimeout: 5 * time.Second,
	})

	s := &Server{
		cfg:      &config.Config{},
		store:    st,
		registry: reg,
		relay:    rel,
		auth:     authSvc,
		web:      web.New(authSvc, reg),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return s, st
}

func doRequest(s *Server, method, path string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func seedStoreAgent(t *testing.T, st *store.MockStore, id, url, ownerID string) {
	t.Helper()
	now := time.Now().UTC()
	err := st.CreateAgent(context.Background(), &store.Agent{
		ID:              id,
		URL:             url,
		Name:            "Seeded",
		UserID:          ownerID,
		RegisteredAt:    now,
		LastHealthCheck: &now,
		IsHealthy:       true,
	})
	require.NoError(t, err)
}

func TestAPI_RegisterAndList(t *testing.T) {
	s, _ := newTestServer(false, &stubFetcher{card: echoCard()})

	rec := doRequest(s, http.MethodPost, "/api/agents", `{"url":"http://agent.example/"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	registered := decodeBody[AgentResponse](t, rec)
	assert.NotEmpty(t, registered.ID)
	assert.Equal(t, "http://agent.example", registered.URL)
	assert.Equal(t, "Echo", registered.Name)
	assert.Equal(t, "Test Lab", registered.Provider)
	assert.True(t, registered.IsHealthy)
	require.Len(t, registered.Skills, 1)
	assert.Equal(t, "echo", registered.Skills[0].ID)

	rec = doRequest(s, http.MethodGet, "/api/agents", "")
	require.Equal(t, http.StatusOK, rec.Code)

	agents := decodeBody[[]AgentResponse](t, rec)
	require.Len(t, agents, 1)
	assert.Equal(t, registered.ID, agents[0].ID)
	// The anonymous identity is seeded when auth is disabled, so ownership
	// resolves to its username
	assert.Equal(t, "anonymous", agents[0].RegisteredBy)
}

func TestAPI_RegisterValidation(t *testing.T) {
	s, _ := newTestServer(false, &stubFetcher{card: echoCard()})

	rec := doRequest(s, http.MethodPost, "/api/agents", `{"url":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "url is required", decodeBody[map[string]string](t, rec)["error"])

	rec = doRequest(s, http.MethodPost, "/api/agents", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON body", decodeBody[map[string]string](t, rec)["error"])
}

func TestAPI_RegisterDuplicate(t *testing.T) {
	s, _ := newTestServer(false, &stubFetcher{card: echoCard()})

	rec := doRequest(s, http.MethodPost, "/api/agents", `{"url":"http://agent.example"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Trailing slashes canonicalize to the same URL
	rec = doRequest(s, http.MethodPost, "/api/agents", `{"url":"http://agent.example/"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "agent already registered", decodeBody[map[string]string](t, rec)["error"])
}

func TestAPI_RegisterCardFetchFails(t *testing.T) {
	s, st := newTestServer(false, &stubFetcher{err: errors.New("connection refused")})

	rec := doRequest(s, http.MethodPost, "/api/agents", `{"url":"http://down.example"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rec)["error"], "connection refused")

	agents, err := st.ListAgents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestAPI_DeleteAgent(t *testing.T) {
	s, _ := newTestServer(false, &stubFetcher{card: echoCard()})

	rec := doRequest(s, http.MethodPost, "/api/agents", `{"url":"http://agent.example"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeBody[AgentResponse](t, rec).ID

	rec = doRequest(s, http.MethodDelete, "/api/agents/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deleted", decodeBody[map[string]string](t, rec)["status"])

	rec = doRequest(s, http.MethodDelete, "/api/agents/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_DeleteAgent_Forbidden(t *testing.T) {
	s, st := newTestServer(false, &stubFetcher{card: echoCard()})
	seedStoreAgent(t, st, "agent-1", "http://other.example", "someone-else")

	rec := doRequest(s, http.MethodDelete, "/api/agents/agent-1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Record must survive the rejected delete
	_, err := st.GetAgent(context.Background(), "agent-1")
	assert.NoError(t, err)
}

func TestAPI_TestAgent(t *testing.T) {
	var gotMethod string
	agentServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var envelope map[string]any
		_ = json.NewDecoder(r.Body).Decode(&envelope)
		gotMethod, _ = envelope["method"].(string)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":"test-1","result":{"kind":"message"}}`)
	}))
	defer agentServer.Close()

	s, st := newTestServer(false, &stubFetcher{card: echoCard()})
	seedStoreAgent(t, st, "agent-1", agentServer.URL, "anonymous")

	rec := doRequest(s, http.MethodPost, "/api/agents/agent-1/test", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[InvokeResponse](t, rec)
	assert.Equal(t, "success", resp.Status)
	assert.Contains(t, string(resp.Response), "message")
	assert.Equal(t, "message/send", gotMethod)
}

func TestAPI_TestAgent_Validation(t *testing.T) {
	s, _ := newTestServer(false, &stubFetcher{card: echoCard()})

	rec := doRequest(s, http.MethodPost, "/api/agents/agent-1/test", `{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "message is required", decodeBody[map[string]string](t, rec)["error"])
}

func TestAPI_TestAgent_NotFound(t *testing.T) {
	s, _ := newTestServer(false, &stubFetcher{card: echoCard()})

	rec := doRequest(s, http.MethodPost, "/api/agents/nope/test", `{"message":"hello"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "agent not found", decodeBody[map[string]string](t, rec)["error"])
}

func TestAPI_TestAgent_TransportFailure(t *testing.T) {
	agentServer := httptest.NewServer(http.NotFoundHandler())
	agentServer.Close()

	s, st := newTestServer(false, &stubFetcher{card: echoCard()})
	seedStoreAgent(t, st, "agent-1", agentServer.URL, "anonymous")

	rec := doRequest(s, http.MethodPost, "/api/agents/agent-1/test", `{"message":"hello"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAPI_StreamAgent(t *testing.T) {
	agentServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"chunk\":\"hel\"}\n\ndata: {\"chunk\":\"lo\"}\n\n")
	}))
	defer agentServer.Close()

	s, st := newTestServer(false, &stubFetcher{card: echoCard()})
	seedStoreAgent(t, st, "agent-1", agentServer.URL, "anonymous")

	rec := doRequest(s, http.MethodPost, "/api/agents/agent-1/stream", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "data: {\"chunk\":\"hel\"}\n\ndata: {\"chunk\":\"lo\"}\n\n", rec.Body.String())
}

func TestAPI_StreamAgent_NotFound(t *testing.T) {
	s, _ := newTestServer(false, &stubFetcher{card: echoCard()})

	rec := doRequest(s, http.MethodPost, "/api/agents/nope/stream", `{"message":"hello"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "agent not found", decodeBody[map[string]string](t, rec)["error"])
}

func TestAPI_AgentHealth(t *testing.T) {
	fetcher := &stubFetcher{card: echoCard()}
	s, st := newTestServer(false, fetcher)
	seedStoreAgent(t, st, "agent-1", "http://agent.example", "anonymous")

	rec := doRequest(s, http.MethodGet, "/api/agents/agent-1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "http://agent.example", health.URL)

	fetcher.err = errors.New("connection refused")
	rec = doRequest(s, http.MethodGet, "/api/agents/agent-1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unhealthy", decodeBody[HealthResponse](t, rec).Status)

	rec = doRequest(s, http.MethodGet, "/api/agents/nope/health", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_RequiresAuth(t *testing.T) {
	s, _ := newTestServer(true, &stubFetcher{card: echoCard()})

	rec := doRequest(s, http.MethodGet, "/api/agents", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not authenticated", decodeBody[map[string]string](t, rec)["error"])
}

func TestAPI_SettingsRoundTrip(t *testing.T) {
	s, _ := newTestServer(true, &stubFetcher{card: echoCard()})

	_, session, _, err := s.auth.Register(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
	cookie := &http.Cookie{Name: auth.SessionCookieName, Value: session.ID}

	doAuthed := func(method, path, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, reader)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		s.Routes().ServeHTTP(rec, req)
		return rec
	}

	// Fresh accounts have no settings
	rec := doAuthed(http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[map[string]any](t, rec))

	// Empty values are filtered out of the saved config
	rec = doAuthed(http.MethodPut, "/api/settings", `{
		"openai_api_key": "sk-test",
		"openai_model": "gpt-4o",
		"tavily_api_key": "",
		"custom_headers": {"X-Org": "acme"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	saveResp := decodeBody[struct {
		Status string   `json:"status"`
		Saved  []string `json:"saved"`
	}](t, rec)
	assert.Equal(t, "ok", saveResp.Status)
	assert.Equal(t, []string{"custom_headers", "openai_api_key", "openai_model"}, saveResp.Saved)

	rec = doAuthed(http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	settings := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "sk-test", settings["openai_api_key"])
	assert.Equal(t, "gpt-4o", settings["openai_model"])
	assert.NotContains(t, settings, "tavily_api_key")
	headers, ok := settings["custom_headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "acme", headers["X-Org"])
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(true, &stubFetcher{card: echoCard()})

	rec := doRequest(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
