// ABOUTME: Minimal fake A2A agent for manual and E2E testing; serves a card and echoes messages.
// ABOUTME: Usage: fake-agent [-addr localhost:9999] [-name "Echo Agent"]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"
)

func main() {
	addr := flag.String("addr", "localhost:9999", "listen address")
	name := flag.String("name", "Echo Agent", "agent display name")
	flag.Parse()

	if err := run(*addr, *name); err != nil {
		log.Fatal(err)
	}
}

func run(addr, name string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /.well-known/agent.json", func(w http.ResponseWriter, r *http.Request) {
		card := map[string]any{
			"name":        name,
			"description": "A fake agent that echoes messages back with *markdown* formatting.",
			"version":     "0.1.0",
			"provider":    map[string]any{"organization": "Test Lab"},
			"skills": []map[string]any{
				{"id": "echo", "name": "Echo", "description": "Repeats your message back"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(card)
	})

	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		var rpc struct {
			JSONRPC string `json:"jsonrpc"`
			ID      string `json:"id"`
			Method  string `json:"method"`
			Params  struct {
				Message struct {
					MessageID string `json:"messageId"`
					Role      string `json:"role"`
					Parts     []struct {
						Type string `json:"type"`
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"message"`
			} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&rpc); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		var text string
		for _, p := range rpc.Params.Message.Parts {
			if p.Type == "text" {
				text = p.Text
				break
			}
		}
		log.Printf("received %s [%s]: %s", rpc.Method, rpc.ID, text)

		switch rpc.Method {
		case "message/stream":
			streamReply(w, rpc.ID, text)
		default:
			reply := map[string]any{
				"jsonrpc": "2.0",
				"id":      rpc.ID,
				"result": map[string]any{
					"role":  "agent",
					"parts": []map[string]any{{"type": "text", "text": echoReply(text)}},
				},
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(reply)
		}
	})

	server := &http.Server{Addr: addr, Handler: mux}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(os.Stderr, "fake agent %q listening on %s\n", name, addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// streamReply sends the echo back word by word as SSE events.
func streamReply(w http.ResponseWriter, rpcID, text string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	words := strings.Fields(echoReply(text))
	for i, word := range words {
		event := map[string]any{
			"jsonrpc": "2.0",
			"id":      rpcID,
			"result": map[string]any{
				"role":  "agent",
				"parts": []map[string]any{{"type": "text", "text": word}},
				"final": i == len(words)-1,
			},
		}
		data, _ := json.Marshal(event)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
		time.Sleep(50 * time.Millisecond)
	}
}

func echoReply(input string) string {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "markdown") || strings.Contains(lower, "bullet") || strings.Contains(lower, "list") {
		return "Here is a **markdown** response:\n\n- First item\n- Second item with `code`\n- Third item\n"
	}
	return fmt.Sprintf("Echo: **%s**", input)
}
