// Package store provides persistent storage for the agent hub using SQLite.
//
// # Architecture
//
// The package defines a single Store interface covering three record families:
//
//   - Agent: registered remote agents with card metadata and health state
//   - User: accounts that own agents, with saved playground API settings
//   - Session: expiring browser sessions backing cookie auth
//
// SQLiteStore is the production implementation (modernc.org/sqlite, WAL mode,
// schema auto-created on open). MockStore is an in-memory implementation for
// tests that need a Store without touching disk.
//
// # Invariants
//
// Agent URLs are canonical (trailing slash stripped by the registry) and
// unique; a duplicate insert returns ErrDuplicateAgent. The health flag and
// last-health-check timestamp are only ever written together through
// UpdateAgentHealth. Sessions past their expiry are reported as
// ErrSessionNotFound and lazily deleted.
package store
