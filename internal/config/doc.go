// Package config loads agent-hub configuration from YAML.
//
// Files support ${VAR_NAME} environment variable expansion and duration
// strings ("10s", "2m") for the outbound call timeouts. Missing timeouts fall
// back to the protocol defaults (10s card fetch, 30s invoke, 120s stream).
package config
