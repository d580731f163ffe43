// ABOUTME: JSON API handlers for agent registration, invocation, streaming, and settings
// ABOUTME: Maps registry/relay domain errors onto HTTP status codes

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/BAEM1N/a2a-agent-hub/internal/auth"
	"github.com/BAEM1N/a2a-agent-hub/internal/registry"
	"github.com/BAEM1N/a2a-agent-hub/internal/relay"
	"github.com/BAEM1N/a2a-agent-hub/internal/store"
)

// RegisterAgentRequest is the JSON request body for POST /api/agents.
type RegisterAgentRequest struct {
	URL string `json:"url"`
}

// AgentResponse is the JSON projection of a registered agent.
type AgentResponse struct {
	ID               string        `json:"id"`
	URL              string        `json:"url"`
	Name             string        `json:"name,omitempty"`
	Description      string        `json:"description,omitempty"`
	Version          string        `json:"version,omitempty"`
	Skills           []store.Skill `json:"skills"`
	Provider         string        `json:"provider,omitempty"`
	DocumentationURL string        `json:"documentation_url,omitempty"`
	RegisteredBy     string        `json:"registered_by"`
	RegisteredAt     string        `json:"registered_at"`
	IsHealthy        bool          `json:"is_healthy"`
}

// InvokeResponse is the JSON response for a successful POST /api/agents/{id}/test.
type InvokeResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// HealthResponse is the JSON response for GET /api/agents/{id}/health.
type HealthResponse struct {
	Status string `json:"status"`
	URL    string `json:"url"`
}

// SettingsRequest is the JSON request body for PUT /api/settings.
type SettingsRequest struct {
	OpenAIAPIKey      string            `json:"openai_api_key,omitempty"`
	OpenAIBaseURL     string            `json:"openai_base_url,omitempty"`
	OpenAIModel       string            `json:"openai_model,omitempty"`
	TavilyAPIKey      string            `json:"tavily_api_key,omitempty"`
	LangfuseSecretKey string            `json:"langfuse_secret_key,omitempty"`
	LangfusePublicKey string            `json:"langfuse_public_key,omitempty"`
	LangfuseBaseURL   string            `json:"langfuse_base_url,omitempty"`
	CustomHeaders     map[string]string `json:"custom_headers,omitempty"`
}

func agentToResponse(ra *registry.RegisteredAgent) AgentResponse {
	return AgentResponse{
		ID:               ra.Agent.ID,
		URL:              ra.Agent.URL,
		Name:             ra.Agent.Name,
		Description:      ra.Agent.Description,
		Version:          ra.Agent.Version,
		Skills:           ra.Agent.Skills,
		Provider:         ra.Agent.Provider,
		DocumentationURL: ra.Agent.DocumentationURL,
		RegisteredBy:     ra.RegisteredBy,
		RegisteredAt:     ra.Agent.RegisteredAt.UTC().Format(time.RFC3339),
		IsHealthy:        ra.Agent.IsHealthy,
	}
}

// handleListAgents handles GET /api/agents.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.registry.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list agents", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]AgentResponse, 0, len(agents))
	for _, ra := range agents {
		response = append(response, agentToResponse(ra))
	}

	s.sendJSON(w, http.StatusOK, response)
}

// handleRegisterAgent handles POST /api/agents.
func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req RegisterAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" {
		s.sendJSONError(w, http.StatusBadRequest, "url is required")
		return
	}

	user := auth.UserFromContext(r.Context())
	registered, err := s.registry.Register(r.Context(), req.URL, user.ID)
	if err != nil {
		var regErr *registry.RegistrationError
		switch {
		case errors.Is(err, store.ErrDuplicateAgent):
			s.sendJSONError(w, http.StatusBadRequest, "agent already registered")
		case errors.As(err, &regErr):
			s.sendJSONError(w, http.StatusBadRequest, regErr.Error())
		default:
			s.logger.Error("failed to register agent", "url", req.URL, "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	s.sendJSON(w, http.StatusOK, agentToResponse(registered))
}

// handleDeleteAgent handles DELETE /api/agents/{id}.
func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	user := auth.UserFromContext(r.Context())

	err := s.registry.Delete(r.Context(), agentID, user.ID)
	switch {
	case errors.Is(err, store.ErrAgentNotFound):
		s.sendJSONError(w, http.StatusNotFound, "agent not found")
	case errors.Is(err, registry.ErrForbidden):
		s.sendJSONError(w, http.StatusForbidden, "not authorized to delete this agent")
	case err != nil:
		s.logger.Error("failed to delete agent", "id", agentID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	default:
		s.sendJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// handleTestAgent handles POST /api/agents/{id}/test: a synchronous
// message/send invocation relayed to the agent.
func (s *Server) handleTestAgent(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	req, err := parseTestRequest(r.Body)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	response, err := s.relay.Invoke(r.Context(), agentID, req)
	if err != nil {
		var relayErr *relay.RelayError
		switch {
		case errors.Is(err, store.ErrAgentNotFound):
			s.sendJSONError(w, http.StatusNotFound, "agent not found")
		case errors.As(err, &relayErr) && relayErr.Kind == relay.KindTransport:
			s.sendJSONError(w, http.StatusBadGateway, relayErr.Error())
		case errors.As(err, &relayErr):
			s.sendJSONError(w, http.StatusInternalServerError, relayErr.Error())
		default:
			s.logger.Error("invoke failed", "id", agentID, "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	s.sendJSON(w, http.StatusOK, InvokeResponse{Status: "success", Response: response})
}

// handleStreamAgent handles POST /api/agents/{id}/stream: relays the agent's
// event stream to the caller as text/event-stream.
func (s *Server) handleStreamAgent(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	req, err := parseTestRequest(r.Body)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Check streaming support before opening anything (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// SSE headers must be staged before the relay's first write commits the
	// response. The relay writes nothing when the agent doesn't exist, so the
	// 404 path below can still replace them.
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	if err := s.relay.Stream(r.Context(), agentID, req, w, flusher); err != nil {
		if errors.Is(err, store.ErrAgentNotFound) {
			h.Del("Cache-Control")
			h.Del("Connection")
			h.Del("X-Accel-Buffering")
			s.sendJSONError(w, http.StatusNotFound, "agent not found")
			return
		}
		s.logger.Error("stream failed", "id", agentID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// handleAgentHealth handles GET /api/agents/{id}/health: an on-demand card
// re-fetch that refreshes the stored health state. Probe failures are a
// result, not an error.
func (s *Server) handleAgentHealth(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	status, url, err := s.registry.Probe(r.Context(), agentID)
	if err != nil {
		if errors.Is(err, store.ErrAgentNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "agent not found")
			return
		}
		s.logger.Error("health probe failed", "id", agentID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.sendJSON(w, http.StatusOK, HealthResponse{Status: status, URL: url})
}

// handleGetSettings handles GET /api/settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	config := user.APIConfig
	if config == nil {
		config = map[string]any{}
	}
	s.sendJSON(w, http.StatusOK, config)
}

// handleSaveSettings handles PUT /api/settings. Empty values are filtered out
// so the stored config only carries what the user actually set.
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	config := map[string]any{}
	for key, value := range map[string]string{
		"openai_api_key":      req.OpenAIAPIKey,
		"openai_base_url":     req.OpenAIBaseURL,
		"openai_model":        req.OpenAIModel,
		"tavily_api_key":      req.TavilyAPIKey,
		"langfuse_secret_key": req.LangfuseSecretKey,
		"langfuse_public_key": req.LangfusePublicKey,
		"langfuse_base_url":   req.LangfuseBaseURL,
	} {
		if value != "" {
			config[key] = value
		}
	}
	if len(req.CustomHeaders) > 0 {
		config["custom_headers"] = req.CustomHeaders
	}

	user := auth.UserFromContext(r.Context())
	if err := s.store.UpdateUserAPIConfig(r.Context(), user.ID, config); err != nil {
		s.logger.Error("failed to save settings", "user", user.ID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	saved := make([]string, 0, len(config))
	for key := range config {
		saved = append(saved, key)
	}
	sort.Strings(saved)
	s.sendJSON(w, http.StatusOK, map[string]any{"status": "ok", "saved": saved})
}

// parseTestRequest parses and validates a relay.TestRequest from the given reader.
func parseTestRequest(r io.Reader) (*relay.TestRequest, error) {
	var req relay.TestRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	if req.Message == "" {
		return nil, errors.New("message is required")
	}
	return &req, nil
}

// sendJSON writes a JSON response with the given status.
func (s *Server) sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
