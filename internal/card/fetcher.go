// ABOUTME: Fetcher retrieves and parses an agent's well-known card document
// ABOUTME: All failure modes surface as *FetchError wrapping the cause

package card

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// WellKnownPath is the path agents serve their card document at.
const WellKnownPath = "/.well-known/agent.json"

// DefaultFetchTimeout bounds a card fetch when no client is supplied.
const DefaultFetchTimeout = 10 * time.Second

// FetchError indicates the card endpoint was unreachable, returned a non-2xx
// status, or served a body that is not valid JSON.
type FetchError struct {
	URL   string // full card URL that was requested
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching agent card from %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Fetcher retrieves agent cards over HTTP.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewFetcher creates a Fetcher using the given client. A nil client gets a
// default with DefaultFetchTimeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &Fetcher{
		client: client,
		logger: slog.Default().With("component", "card"),
	}
}

// Fetch GETs <baseURL>/.well-known/agent.json and parses the response.
// baseURL is expected to already be in canonical form (no trailing slash);
// a trailing slash is tolerated and stripped.
func (f *Fetcher) Fetch(ctx context.Context, baseURL string) (*AgentCard, error) {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	cardURL := baseURL + WellKnownPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cardURL, nil)
	if err != nil {
		return nil, &FetchError{URL: cardURL, Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: cardURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{
			URL:   cardURL,
			Cause: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var parsed AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &FetchError{URL: cardURL, Cause: fmt.Errorf("invalid card JSON: %w", err)}
	}

	f.logger.Debug("fetched agent card", "url", cardURL, "name", parsed.Name)
	return &parsed, nil
}
