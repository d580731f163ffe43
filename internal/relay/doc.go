// Package relay forwards caller messages to registered agents.
//
// Synchronous invocation (Invoke) wraps the message in a JSON-RPC 2.0
// message/send envelope, POSTs it to the agent with injected credential and
// custom headers, and treats every outcome as a health signal: the stored
// (is_healthy, last_health_check) pair is updated together on success and on
// both failure paths. Failures surface as *RelayError, classified as transport
// (bad gateway) or unexpected.
//
// Streaming invocation (Stream) opens a message/stream call and relays the
// agent's event stream line-by-line. Once the stream is committed, failures
// are downgraded to in-band error events instead of HTTP errors, and streaming
// outcomes deliberately never update health state.
package relay
