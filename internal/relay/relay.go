// ABOUTME: Invocation relay for synchronous message/send calls to remote agents
// ABOUTME: Builds the JSON-RPC envelope, injects headers, and records health outcomes

package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BAEM1N/a2a-agent-hub/internal/store"
)

// Default outbound call timeouts.
const (
	DefaultInvokeTimeout = 30 * time.Second
	DefaultStreamTimeout = 120 * time.Second
)

// ErrorKind classifies a relay failure for HTTP status mapping.
type ErrorKind int

const (
	// KindTransport covers connection failures, timeouts, and non-2xx agent
	// responses. Maps to 502.
	KindTransport ErrorKind = iota
	// KindUnexpected covers everything else (e.g. an unparsable success body).
	// Maps to 500.
	KindUnexpected
)

// RelayError indicates an outbound agent call failed after the agent record
// was resolved. The health state has already been persisted by the time this
// is returned.
type RelayError struct {
	Kind  ErrorKind
	Cause error
}

func (e *RelayError) Error() string {
	if e.Kind == KindTransport {
		return fmt.Sprintf("agent communication failed: %v", e.Cause)
	}
	return fmt.Sprintf("unexpected error: %v", e.Cause)
}

func (e *RelayError) Unwrap() error {
	return e.Cause
}

// TestRequest is a caller-supplied invocation: the message text plus optional
// credentials and custom headers forwarded to the agent.
type TestRequest struct {
	Message       string            `json:"message"`
	OpenAIAPIKey  string            `json:"openai_api_key,omitempty"`
	OpenAIBaseURL string            `json:"openai_base_url,omitempty"`
	OpenAIModel   string            `json:"openai_model,omitempty"`
	TavilyAPIKey  string            `json:"tavily_api_key,omitempty"`
	CustomHeaders map[string]string `json:"custom_headers,omitempty"`
}

// Config holds relay timing configuration.
type Config struct {
	InvokeTimeout time.Duration
	StreamTimeout time.Duration
}

// Service performs outbound calls to registered agents and feeds the outcome
// of synchronous calls back into the store as health updates.
type Service struct {
	store  store.Store
	client *http.Client
	cfg    Config
	logger *slog.Logger

	// now is swappable for tests
	now func() time.Time
}

// New creates a relay Service. Zero config fields get defaults.
func New(st store.Store, cfg Config) *Service {
	if cfg.InvokeTimeout <= 0 {
		cfg.InvokeTimeout = DefaultInvokeTimeout
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = DefaultStreamTimeout
	}
	return &Service{
		store: st,
		// Per-call deadlines come from context timeouts so invoke and stream
		// can share one client.
		client: &http.Client{},
		cfg:    cfg,
		logger: slog.Default().With("component", "relay"),
		now:    time.Now,
	}
}

// NormalizeHeaderName maps a custom header key to its wire name: keys are
// prefixed with "X-" unless they already start with "x-" (case-insensitive),
// in which case they pass through verbatim.
func NormalizeHeaderName(key string) string {
	if strings.HasPrefix(strings.ToLower(key), "x-") {
		return key
	}
	return "X-" + key
}

// buildHeaders assembles the outbound header set for a request. Streaming
// calls additionally accept text/event-stream.
func buildHeaders(req *TestRequest, streaming bool) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	if streaming {
		h.Set("Accept", "text/event-stream")
	}
	// Header.Set would rewrite names to canonical MIME form; assigning into
	// the map keeps the exact case on the wire, which agents key off for the
	// X-OpenAI-* and pass-through custom headers.
	if req.OpenAIAPIKey != "" {
		h["X-OpenAI-API-Key"] = []string{req.OpenAIAPIKey}
	}
	if req.OpenAIBaseURL != "" {
		h["X-OpenAI-Base-URL"] = []string{req.OpenAIBaseURL}
	}
	if req.OpenAIModel != "" {
		h["X-OpenAI-Model"] = []string{req.OpenAIModel}
	}
	if req.TavilyAPIKey != "" {
		h["X-Tavily-API-Key"] = []string{req.TavilyAPIKey}
	}
	for key, value := range req.CustomHeaders {
		h[NormalizeHeaderName(key)] = []string{value}
	}
	return h
}

// buildEnvelope constructs the JSON-RPC 2.0 message envelope with a fresh
// random messageId.
func buildEnvelope(rpcID, method, message string) ([]byte, error) {
	envelope := map[string]any{
		"jsonrpc": "2.0",
		"id":      rpcID,
		"method":  method,
		"params": map[string]any{
			"message": map[string]any{
				"messageId": uuid.New().String(),
				"role":      "user",
				"parts": []map[string]any{
					{"type": "text", "text": message},
				},
			},
		},
	}
	return json.Marshal(envelope)
}

// Invoke sends a synchronous message/send call to the agent and returns the
// agent's parsed response body. Every attempt is a health signal: the stored
// health flag and check timestamp are updated together on success and on both
// failure paths.
func (s *Service) Invoke(ctx context.Context, agentID string, req *TestRequest) (json.RawMessage, error) {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	body, err := buildEnvelope("test-1", "message/send", req.Message)
	if err != nil {
		return nil, s.recordFailure(ctx, agent.ID, KindUnexpected, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.InvokeTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, agent.URL, bytes.NewReader(body))
	if err != nil {
		return nil, s.recordFailure(ctx, agent.ID, KindUnexpected, err)
	}
	httpReq.Header = buildHeaders(req, false)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, s.recordFailure(ctx, agent.ID, KindTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		cause := fmt.Errorf("agent returned status %d", resp.StatusCode)
		return nil, s.recordFailure(ctx, agent.ID, KindTransport, cause)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, s.recordFailure(ctx, agent.ID, KindTransport, err)
	}
	if !json.Valid(respBody) {
		cause := fmt.Errorf("agent returned invalid JSON")
		return nil, s.recordFailure(ctx, agent.ID, KindUnexpected, cause)
	}

	if err := s.store.UpdateAgentHealth(ctx, agent.ID, true, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("recording health after invoke: %w", err)
	}

	s.logger.Debug("agent invocation succeeded", "id", agent.ID, "url", agent.URL)
	return json.RawMessage(respBody), nil
}

// recordFailure persists the unhealthy state and wraps the cause. The health
// write is unconditional on the failure branch taken; a store error during the
// write is logged but does not mask the original cause.
func (s *Service) recordFailure(ctx context.Context, agentID string, kind ErrorKind, cause error) error {
	if err := s.store.UpdateAgentHealth(ctx, agentID, false, s.now().UTC()); err != nil {
		s.logger.Error("failed to record unhealthy state", "id", agentID, "error", err)
	}
	s.logger.Warn("agent invocation failed", "id", agentID, "error", cause)
	return &RelayError{Kind: kind, Cause: cause}
}
