package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type payload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteMessage(rec, http.StatusOK, "ok")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"message":"ok"}` {
		t.Errorf("body = %s", got)
	}
}

func TestWriteJSON_ClampsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, 42, "boom")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "boom" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		want        payload
		wantErr     bool
	}{
		{
			name:        "full body",
			body:        `{"name":"Ada","email":"ada@example.com"}`,
			contentType: "application/json",
			want:        payload{Name: "Ada", Email: "ada@example.com"},
		},
		{
			name:        "missing fields stay empty",
			body:        `{"name":"Ada"}`,
			contentType: "application/json; charset=utf-8",
			want:        payload{Name: "Ada"},
		},
		{
			name:        "unknown fields ignored",
			body:        `{"name":"Ada","phone":"123"}`,
			contentType: "application/json",
			want:        payload{Name: "Ada"},
		},
		{
			name:        "empty body",
			body:        "",
			contentType: "application/json",
		},
		{
			name:        "no content type is treated as json",
			body:        `{"email":"a@b.co"}`,
			contentType: "",
			want:        payload{Email: "a@b.co"},
		},
		{
			name:        "form body ignored",
			body:        "name=Ada",
			contentType: "application/x-www-form-urlencoded",
		},
		{
			name:        "malformed",
			body:        `{"name":`,
			contentType: "application/json",
			wantErr:     true,
		},
		{
			name:        "wrong type",
			body:        `{"name":42}`,
			contentType: "application/json",
			wantErr:     true,
		},
		{
			name:        "two values",
			body:        `{"name":"a"}{"name":"b"}`,
			contentType: "application/json",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			var got payload
			err := DecodeJSON(req, &got)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeJSON_NilBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	var got payload
	if err := DecodeJSON(req, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("x", 64)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rec, req.Body, 16)

	var got payload
	err := DecodeJSON(req, &got)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("err = %v, want ErrBodyTooLarge", err)
	}
}
