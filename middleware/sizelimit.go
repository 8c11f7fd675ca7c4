// middleware/sizelimit.go
package middleware

import (
	"net/http"

	"github.com/dalemusser/contactrelay/httputil"
)

// BodyTooLargeMessage is the error text for 413 responses.
const BodyTooLargeMessage = "Request body too large."

// LimitBodySize caps request bodies at maxBytes. A declared Content-Length
// over the cap is rejected with 413 before the handler runs; otherwise the
// body is wrapped in http.MaxBytesReader so decoding fails past the cap.
// maxBytes <= 0 disables the limit.
func LimitBodySize(maxBytes int64) func(next http.Handler) http.Handler {
	if maxBytes <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteError(w, http.StatusRequestEntityTooLarge, BodyTooLargeMessage)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
