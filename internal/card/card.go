// ABOUTME: AgentCard types for the A2A well-known metadata document
// ABOUTME: Handles the provider field's string-or-object shape at parse time

package card

import (
	"encoding/json"
)

// Skill is a single capability entry from an agent card.
type Skill struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Provider resolves the card's provider field, which remote agents publish
// either as a plain string or as an object with an "organization" field.
// The ambiguity is resolved here so nothing downstream ever sees it.
type Provider struct {
	Name string
}

// UnmarshalJSON accepts "provider": "Acme" and "provider": {"organization": "Acme"}.
// Any other shape resolves to an empty name rather than an error, since the
// card is third-party data and a malformed provider should not reject the card.
func (p *Provider) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		p.Name = plain
		return nil
	}

	var obj struct {
		Organization string `json:"organization"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		p.Name = obj.Organization
		return nil
	}

	p.Name = ""
	return nil
}

// AgentCard is the parsed self-description document an agent serves at
// /.well-known/agent.json. It is transient: the registry projects it into a
// store.Agent and the card itself is never persisted.
type AgentCard struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Version          string   `json:"version"`
	Skills           []Skill  `json:"skills"`
	Provider         Provider `json:"provider"`
	DocumentationURL string   `json:"documentationUrl"`
}
