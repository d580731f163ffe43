// Package registry implements agent registration and health probing.
//
// Registration normalizes the submitted URL (trailing slash stripped), dedups
// against the store's unique URL index, fetches the remote card, and projects
// it into a persisted store.Agent owned by the registering user. Probing
// re-fetches the card on demand and flips the stored health state without
// re-registering; probe failures are reported as a status string, never as an
// error, since health is advisory.
package registry
