// Package middleware holds the admin HTTP surface's cross-cutting
// handlers: panic recovery, request logging and CORS. The admin surface
// itself is unauthenticated (client authentication happens at the wire
// protocol layer, not over HTTP), so this package carries no auth or
// tenant-context middleware.
package middleware

import (
	"net/http"

	"github.com/squawkbus/squawkbus/internal/api"
)

// writeError writes a JSON error response using the shared api envelope.
func writeError(w http.ResponseWriter, status int, code string, message string) {
	api.Error(w, status, code, message)
}
