// Package auth provides user accounts, sessions, and API tokens for the hub.
//
// Passwords are hashed with bcrypt. Browser auth uses an HttpOnly session
// cookie backed by expiring session records in the store (no in-memory session
// table). Programmatic clients can instead present the HS256 JWT returned at
// login as a bearer token. When the auth.required config flag is off, every
// request resolves to AnonymousUser and the login flow is bypassed.
package auth
