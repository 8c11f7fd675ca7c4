// middleware/cors.go
package middleware

import (
	"net/http"

	"github.com/dalemusser/contactrelay/config"
	"github.com/go-chi/cors"
)

// CORSFromConfig applies the CORS section of coreCfg. With CORS disabled it
// returns an identity middleware, so callers can use it unconditionally:
//
//	r.Use(middleware.CORSFromConfig(coreCfg))
//
// Preflight requests are answered here and never reach the contact handler.
func CORSFromConfig(coreCfg *config.CoreConfig) func(next http.Handler) http.Handler {
	if coreCfg == nil || !coreCfg.CORS.EnableCORS {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	exposed := coreCfg.CORS.CORSExposedHeaders
	if len(exposed) == 0 {
		exposed = []string{"X-Request-Id"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   coreCfg.CORS.CORSAllowedOrigins,
		AllowedMethods:   coreCfg.CORS.CORSAllowedMethods,
		AllowedHeaders:   coreCfg.CORS.CORSAllowedHeaders,
		ExposedHeaders:   exposed,
		AllowCredentials: coreCfg.CORS.CORSAllowCredentials,
		MaxAge:           coreCfg.CORS.CORSMaxAge,
	})
}
