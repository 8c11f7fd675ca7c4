// health/health.go
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/contactrelay/httputil"
	"github.com/dalemusser/contactrelay/pantry/version"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Check is a single probe; nil means healthy. ctx derives from the request.
type Check func(ctx context.Context) error

// Response is the JSON body of the health endpoints.
type Response struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// DefaultCheckTimeout bounds each probe.
const DefaultCheckTimeout = 5 * time.Second

// Handler runs checks on each request. With no checks it is a liveness probe
// answering 200 {"status":"ok","version":…}. A failing check turns the
// response into 503 with "error" against that check; error details go to the
// log only, since they may name hosts or accounts.
func Handler(checks map[string]Check, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := Response{Status: "ok", Version: version.Version}
		if len(names) == 0 {
			httputil.WriteJSON(w, http.StatusOK, resp)
			return
		}

		resp.Checks = make(map[string]string, len(names))
		status := http.StatusOK
		for _, name := range names {
			check := checks[name]
			if check == nil {
				resp.Checks[name] = "ok"
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), DefaultCheckTimeout)
			err := check(ctx)
			cancel()
			if err != nil {
				status = http.StatusServiceUnavailable
				resp.Status = "error"
				resp.Checks[name] = "error"
				logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	})
}

// Mount attaches GET /health (liveness, no checks).
func Mount(r chi.Router, logger *zap.Logger) {
	r.Method(http.MethodGet, "/health", Handler(nil, logger))
}

// MountAt attaches a handler running checks at path, e.g. "/ready".
func MountAt(r chi.Router, path string, checks map[string]Check, logger *zap.Logger) {
	r.Method(http.MethodGet, path, Handler(checks, logger))
}

// Cached wraps check so it runs at most once per ttl; callers within the
// window get the last result. Concurrent callers wait for the one in flight.
func Cached(check Check, ttl time.Duration) Check {
	return cached(check, ttl, time.Now)
}

func cached(check Check, ttl time.Duration, now func() time.Time) Check {
	var (
		mu      sync.Mutex
		checked time.Time
		last    error
	)
	return func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if !checked.IsZero() && now().Sub(checked) < ttl {
			return last
		}
		last = check(ctx)
		checked = now()
		return last
	}
}
