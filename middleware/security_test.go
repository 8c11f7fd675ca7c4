package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/contactrelay/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders_Defaults(t *testing.T) {
	rec := httptest.NewRecorder()
	SecureDefaults()(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/contact", nil))

	tests := []struct {
		header string
		want   string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "no-referrer"},
		{"X-XSS-Protection", "0"},
		{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
		{"Permissions-Policy", ""},
		{"Strict-Transport-Security", ""},
	}

	for _, tt := range tests {
		if got := rec.Header().Get(tt.header); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	tests := []struct {
		name    string
		tls     bool
		preload bool
		want    string
	}{
		{"plain http", false, false, ""},
		{"tls", true, false, "max-age=31536000; includeSubDomains"},
		{"tls preload", true, true, "max-age=31536000; includeSubDomains; preload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultSecurityHeadersOptions()
			opts.HSTSPreload = tt.preload

			req := httptest.NewRequest(http.MethodGet, "http://api.example.com/", nil)
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			rec := httptest.NewRecorder()
			SecurityHeaders(opts)(okHandler()).ServeHTTP(rec, req)

			if got := rec.Header().Get("Strict-Transport-Security"); got != tt.want {
				t.Errorf("HSTS = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSecurityHeaders_EmptyOptionsSetNothing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec := httptest.NewRecorder()
	SecurityHeaders(SecurityHeadersOptions{})(okHandler()).ServeHTTP(rec, req)

	for _, header := range []string{
		"X-Frame-Options", "X-Content-Type-Options", "Referrer-Policy",
		"X-XSS-Protection", "Strict-Transport-Security", "Content-Security-Policy",
	} {
		if got := rec.Header().Get(header); got != "" {
			t.Errorf("%s should not be set, got %q", header, got)
		}
	}
}

func TestSecurityHeadersFromConfig(t *testing.T) {
	enabled := &config.CoreConfig{}
	enabled.Security.EnableSecurityHeaders = true
	enabled.Security.XFrameOptions = "SAMEORIGIN"
	enabled.Security.PermissionsPolicy = "geolocation=()"

	disabled := &config.CoreConfig{}
	disabled.Security.XFrameOptions = "DENY"

	tests := []struct {
		name      string
		cfg       *config.CoreConfig
		wantFrame string
		wantPerm  string
	}{
		{"enabled", enabled, "SAMEORIGIN", "geolocation=()"},
		{"disabled", disabled, "", ""},
		{"nil config", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			SecurityHeadersFromConfig(tt.cfg)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if got := rec.Header().Get("X-Frame-Options"); got != tt.wantFrame {
				t.Errorf("X-Frame-Options = %q, want %q", got, tt.wantFrame)
			}
			if got := rec.Header().Get("Permissions-Policy"); got != tt.wantPerm {
				t.Errorf("Permissions-Policy = %q, want %q", got, tt.wantPerm)
			}
		})
	}
}
