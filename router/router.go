// router/router.go
package router

import (
	"github.com/dalemusser/contactrelay/config"
	"github.com/dalemusser/contactrelay/logging"
	"github.com/dalemusser/contactrelay/metrics"
	"github.com/dalemusser/contactrelay/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// New creates a chi.Router with the standard middleware stack, in order:
//   - RequestID, RealIP (trust_proxy_headers only)
//   - Recoverer (panic → JSON 500)
//   - security headers (enable_security_headers; secure defaults when coreCfg is nil)
//   - body size limit (max_request_body_bytes)
//   - HTTP metrics
//   - access log
//   - CORS (enable_cors)
//   - JSON NotFound / MethodNotAllowed
//
// Routes are mounted by the caller.
func New(coreCfg *config.CoreConfig, logger *zap.Logger) chi.Router {
	secHeaders := middleware.SecurityHeadersFromConfig(coreCfg)
	if coreCfg == nil {
		coreCfg = &config.CoreConfig{}
		secHeaders = middleware.SecureDefaults()
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if coreCfg.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(logging.Recoverer(logger))

	r.Use(secHeaders)
	r.Use(middleware.LimitBodySize(coreCfg.MaxRequestBodyBytes))

	if coreCfg.EnableMetrics {
		r.Use(metrics.HTTPMetrics)
	}
	r.Use(logging.RequestLogger(logger))

	// After the access log so preflights are logged too.
	r.Use(middleware.CORSFromConfig(coreCfg))

	r.NotFound(middleware.NotFoundHandler(logger))
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler(logger))

	return r
}
