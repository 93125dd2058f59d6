// Package httpapi is the transport boundary in front of the engine. It
// decodes and validates typed request structs before anything reaches the
// engine, maps the engine's error taxonomy onto HTTP statuses, and carries
// tokens in HttpOnly cookies with a bearer-header fallback.
package httpapi
