// ABOUTME: Stream relay for message/stream calls to remote agents
// ABOUTME: Re-emits the agent's event stream line-by-line, downgrading failures to in-band events

package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Flusher is the subset of http.Flusher the stream relay needs.
type Flusher interface {
	Flush()
}

// maxErrorBodySize caps how much of a failed initial response is echoed back
// to the caller.
const maxErrorBodySize = 64 * 1024

// maxLineSize bounds a single relayed SSE line. Agent responses are
// third-party controlled, so the cap is generous; a longer line still ends
// the relay with an in-band connection_error event.
const maxLineSize = 10 * 1024 * 1024

// Stream opens a message/stream call to the agent and relays the response to w
// line-by-line as it arrives. Non-empty lines are forwarded verbatim with a
// newline; empty lines become bare newlines, preserving SSE event boundaries.
//
// A missing agent returns store.ErrAgentNotFound before anything is written.
// Every failure after that point is emitted as a single in-band error event and
// the stream ends; the HTTP status is already committed by then. Unlike
// synchronous invocation, streaming outcomes never touch the stored health
// state. Cancelling ctx aborts the outbound call.
func (s *Service) Stream(ctx context.Context, agentID string, req *TestRequest, w io.Writer, flusher Flusher) error {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}

	body, err := buildEnvelope("stream-1", "message/stream", req.Message)
	if err != nil {
		s.emitErrorEvent(w, flusher, map[string]any{"error": err.Error(), "type": "unexpected_error"})
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.StreamTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, agent.URL, bytes.NewReader(body))
	if err != nil {
		s.emitErrorEvent(w, flusher, map[string]any{"error": err.Error(), "type": "unexpected_error"})
		return nil
	}
	httpReq.Header = buildHeaders(req, true)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.logger.Warn("agent stream connection failed", "id", agent.ID, "error", err)
		s.emitErrorEvent(w, flusher, map[string]any{"error": err.Error(), "type": "connection_error"})
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorText, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		s.logger.Warn("agent stream rejected", "id", agent.ID, "status", resp.StatusCode)
		s.emitErrorEvent(w, flusher, map[string]any{
			"error":       string(errorText),
			"status_code": resp.StatusCode,
		})
		return nil
	}

	s.logger.Debug("relaying agent stream", "id", agent.ID, "url", agent.URL)
	s.relayLines(agent.ID, resp.Body, w, flusher)
	return nil
}

// relayLines copies the agent's response to the caller one line at a time,
// flushing after each so events arrive as they are produced.
func (s *Service) relayLines(agentID string, body io.Reader, w io.Writer, flusher Flusher) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
				// Caller went away; the deferred body close tears down the
				// outbound connection.
				return
			}
		} else {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}

	if err := scanner.Err(); err != nil {
		s.logger.Warn("agent stream interrupted", "id", agentID, "error", err)
		s.emitErrorEvent(w, flusher, map[string]any{"error": err.Error(), "type": "connection_error"})
	}
}

// emitErrorEvent writes a single SSE data event carrying an error payload.
func (s *Service) emitErrorEvent(w io.Writer, flusher Flusher, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal stream error event", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
