// Package web serves the agent hub's HTML pages: the agent directory, the
// test playground, the profile/settings page, and the login and signup
// forms. Templates are embedded in the binary and agent descriptions are
// rendered from Markdown. The JSON API in the server package does the real
// work; this package only presents it.
package web
