// Package card fetches and parses A2A agent card documents.
//
// An agent card is the JSON self-description a remote agent serves at
// /.well-known/agent.json: name, description, version, skills, provider,
// documentation URL. Fetcher performs the bounded HTTP GET and parse; every
// failure mode (transport error, non-2xx status, bad JSON) is reported as a
// *FetchError carrying the card URL and underlying cause.
package card
