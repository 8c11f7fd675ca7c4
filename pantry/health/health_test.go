package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func get(t *testing.T, h http.Handler, path string) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestMount_Liveness(t *testing.T) {
	r := chi.NewRouter()
	Mount(r, nil)

	code, resp := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "dev", resp.Version)
	assert.Empty(t, resp.Checks)
}

func TestHandler_Checks(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	secret := errors.New("535 auth failed for relay@finetunai.com")

	r := chi.NewRouter()
	MountAt(r, "/ready", map[string]Check{
		"mail":  func(context.Context) error { return secret },
		"noop":  nil,
		"cache": func(context.Context) error { return nil },
	}, zap.New(core))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "535")

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, map[string]string{"mail": "error", "noop": "ok", "cache": "ok"}, resp.Checks)

	entries := logs.FilterMessage("health check failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "mail", entries[0].ContextMap()["check"])
}

func TestHandler_AllHealthy(t *testing.T) {
	h := Handler(map[string]Check{"mail": func(context.Context) error { return nil }}, nil)

	code, resp := get(t, h, "/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["mail"])
}

func TestCached(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	fail := errors.New("auth failed")
	var result error

	c := cached(func(context.Context) error {
		calls++
		return result
	}, 30*time.Second, func() time.Time { return now })

	assert.NoError(t, c(context.Background()))
	result = fail
	assert.NoError(t, c(context.Background()), "within ttl the last result is reused")
	assert.Equal(t, 1, calls)

	now = now.Add(31 * time.Second)
	assert.ErrorIs(t, c(context.Background()), fail)
	assert.ErrorIs(t, c(context.Background()), fail)
	assert.Equal(t, 2, calls)
}
