// ABOUTME: Template rendering functions for the web UI
// ABOUTME: Loads templates from the embedded filesystem and renders them

package web

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/BAEM1N/a2a-agent-hub/internal/registry"
	"github.com/BAEM1N/a2a-agent-hub/internal/store"
)

// markdown renders agent descriptions. Raw HTML in the source is omitted by
// goldmark's default renderer, so untrusted card text stays inert.
var markdown = goldmark.New()

// Template data types
type pageData struct {
	Title    string
	User     *store.User
	LoggedIn bool
}

type agentItem struct {
	ID               string
	URL              string
	Name             string
	Version          string
	Provider         string
	Description      template.HTML
	Skills           []store.Skill
	RegisteredBy     string
	RegisteredAt     string
	IsHealthy        bool
	DocumentationURL string
}

type indexData struct {
	pageData
	Agents []agentItem
}

type loginData struct {
	pageData
	Error string
}

type registerData struct {
	pageData
	Error string
}

type playgroundData struct {
	pageData
	Agents []agentItem
}

type profileData struct {
	pageData
}

func renderDescription(src string) template.HTML {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

func toAgentItems(agents []*registry.RegisteredAgent) []agentItem {
	items := make([]agentItem, 0, len(agents))
	for _, ra := range agents {
		items = append(items, agentItem{
			ID:               ra.Agent.ID,
			URL:              ra.Agent.URL,
			Name:             ra.Agent.Name,
			Version:          ra.Agent.Version,
			Provider:         ra.Agent.Provider,
			Description:      renderDescription(ra.Agent.Description),
			Skills:           ra.Agent.Skills,
			RegisteredBy:     ra.RegisteredBy,
			RegisteredAt:     ra.Agent.RegisteredAt.Format("2006-01-02 15:04"),
			IsHealthy:        ra.Agent.IsHealthy,
			DocumentationURL: ra.Agent.DocumentationURL,
		})
	}
	return items
}

func basePage(title string, user *store.User) pageData {
	return pageData{
		Title:    title,
		User:     user,
		LoggedIn: user != nil && user.ID != "",
	}
}

// renderIndex renders the agent directory page
func (h *Handler) renderIndex(w http.ResponseWriter, user *store.User, agents []*registry.RegisteredAgent) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/index.html"))

	data := indexData{
		pageData: basePage("Agents", user),
		Agents:   toAgentItems(agents),
	}

	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		h.logger.Error("failed to render index page", "error", err)
	}
}

// renderLogin renders the login page
func (h *Handler) renderLogin(w http.ResponseWriter, status int, errorMsg string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/login.html"))

	data := loginData{
		pageData: basePage("Login", nil),
		Error:    errorMsg,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		h.logger.Error("failed to render login page", "error", err)
	}
}

// renderRegister renders the signup page
func (h *Handler) renderRegister(w http.ResponseWriter, status int, errorMsg string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/register.html"))

	data := registerData{
		pageData: basePage("Create Account", nil),
		Error:    errorMsg,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		h.logger.Error("failed to render register page", "error", err)
	}
}

// renderPlayground renders the agent test playground
func (h *Handler) renderPlayground(w http.ResponseWriter, user *store.User, agents []*registry.RegisteredAgent) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/playground.html"))

	data := playgroundData{
		pageData: basePage("Playground", user),
		Agents:   toAgentItems(agents),
	}

	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		h.logger.Error("failed to render playground page", "error", err)
	}
}

// renderProfile renders the profile and settings page
func (h *Handler) renderProfile(w http.ResponseWriter, user *store.User) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/profile.html"))

	data := profileData{
		pageData: basePage("Profile", user),
	}

	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		h.logger.Error("failed to render profile page", "error", err)
	}
}
