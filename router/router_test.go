package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/contactrelay/config"
	"go.uber.org/zap"
)

func testConfig() *config.CoreConfig {
	cfg := &config.CoreConfig{
		MaxRequestBodyBytes: 32,
		EnableMetrics:       true,
	}
	cfg.Security.EnableSecurityHeaders = true
	cfg.Security.XContentTypeOptions = "nosniff"
	cfg.CORS = config.CORSConfig{
		EnableCORS:         true,
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type"},
	}
	return cfg
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body %q is not JSON: %v", rec.Body.String(), err)
	}
	return body["error"]
}

func TestNew_Stack(t *testing.T) {
	r := New(testConfig(), zap.NewNop())
	r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
	r.Post("/echo", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"panic becomes JSON 500", http.MethodGet, "/panic", "", http.StatusInternalServerError, "Something went wrong, please try again later."},
		{"unknown route", http.MethodGet, "/missing", "", http.StatusNotFound, "Not found."},
		{"wrong method", http.MethodGet, "/echo", "", http.StatusMethodNotAllowed, "Method not allowed."},
		{"body too large", http.MethodPost, "/echo", strings.Repeat("x", 64), http.StatusRequestEntityTooLarge, "Request body too large."},
		{"ok", http.MethodPost, "/echo", "{}", http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Origin", "https://finetunai.com")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantError != "" {
				if got := errorOf(t, rec); got != tt.wantError {
					t.Errorf("error = %q, want %q", got, tt.wantError)
				}
			}
			if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
				t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
			}
		})
	}
}

func TestNew_CORSPreflight(t *testing.T) {
	r := New(testConfig(), zap.NewNop())
	r.Post("/api/contact", func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight reached the handler")
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/contact", nil)
	req.Header.Set("Origin", "https://finetunai.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestNew_NilConfig(t *testing.T) {
	r := New(nil, nil)
	// A mux with no routes answers 404 without running the middleware chain.
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestNew_ProxyHeadersNeedTrust(t *testing.T) {
	tests := []struct {
		name  string
		trust bool
		want  string
	}{
		{"untrusted", false, "192.0.2.10:5555"},
		{"trusted", true, "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.TrustProxyHeaders = tt.trust
			r := New(cfg, zap.NewNop())
			var got string
			r.Post("/api/contact", func(w http.ResponseWriter, r *http.Request) { got = r.RemoteAddr })

			req := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
			req.RemoteAddr = "192.0.2.10:5555"
			req.Header.Set("X-Forwarded-For", "203.0.113.9")
			r.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}
