// middleware/notfound.go
package middleware

import (
	"net/http"

	"github.com/dalemusser/contactrelay/httputil"
	"go.uber.org/zap"
)

// Client-facing texts for unrouted requests.
const (
	NotFoundMessage         = "Not found."
	MethodNotAllowedMessage = "Method not allowed."
)

// NotFoundHandler logs a 404 and writes {"error": NotFoundMessage}.
// Pass it to chi.Router.NotFound.
func NotFoundHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if logger != nil {
			logger.Debug("not_found",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_ip", r.RemoteAddr),
			)
		}
		httputil.WriteError(w, http.StatusNotFound, NotFoundMessage)
	}
}

// MethodNotAllowedHandler logs a 405 and writes {"error": MethodNotAllowedMessage}.
// Pass it to chi.Router.MethodNotAllowed.
func MethodNotAllowedHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if logger != nil {
			logger.Debug("method_not_allowed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_ip", r.RemoteAddr),
			)
		}
		httputil.WriteError(w, http.StatusMethodNotAllowed, MethodNotAllowedMessage)
	}
}
