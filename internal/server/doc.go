// Package server wires the agent hub's components behind a single HTTP mux.
//
// The JSON API lives under /api: agent registration and listing, synchronous
// test invocations, SSE stream relays, on-demand health probes, and per-user
// API settings. Authentication endpoints and the server-rendered web pages
// are delegated to the auth and web packages. Run owns the server lifecycle,
// including graceful shutdown and the periodic session sweep.
package server
