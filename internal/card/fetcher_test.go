// ABOUTME: Tests for the agent card fetcher
// ABOUTME: Covers well-known path resolution, trailing slashes, and failure modes

package card

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetch(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name": "Echo", "version": "1.0.0", "skills": [{"id": "s1", "name": "echo"}]}`))
	}))
	defer server.Close()

	f := NewFetcher(nil)
	card, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if requestedPath != WellKnownPath {
		t.Errorf("expected request to %s, got %s", WellKnownPath, requestedPath)
	}
	if card.Name != "Echo" {
		t.Errorf("Name mismatch: got %q", card.Name)
	}
	if len(card.Skills) != 1 || card.Skills[0].ID != "s1" {
		t.Errorf("Skills mismatch: %+v", card.Skills)
	}
}

func TestFetch_TrailingSlashes(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Write([]byte(`{"name": "Echo"}`))
	}))
	defer server.Close()

	f := NewFetcher(nil)
	if _, err := f.Fetch(context.Background(), server.URL+"///"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if requestedPath != WellKnownPath {
		t.Errorf("trailing slashes not stripped: requested %s", requestedPath)
	}
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher(nil)
	_, err := f.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fetchErr.URL != server.URL+WellKnownPath {
		t.Errorf("FetchError.URL mismatch: got %q", fetchErr.URL)
	}
}

func TestFetch_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not a card</html>`))
	}))
	defer server.Close()

	f := NewFetcher(nil)
	_, err := f.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for non-JSON body")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
}

func TestFetch_ConnectionRefused(t *testing.T) {
	// Grab an address that is no longer listening
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	f := NewFetcher(nil)
	_, err := f.Fetch(context.Background(), url)
	if err == nil {
		t.Fatal("expected error for unreachable agent")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
}

func TestFetch_SendsAcceptHeader(t *testing.T) {
	var accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	f := NewFetcher(nil)
	if _, err := f.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if accept != "application/json" {
		t.Errorf("expected Accept: application/json, got %q", accept)
	}
}
