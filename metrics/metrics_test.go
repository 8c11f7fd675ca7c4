package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestContactOutcome(t *testing.T) {
	before := testutil.ToFloat64(contactSubmissions.WithLabelValues("sent"))
	ContactOutcome("sent")
	ContactOutcome("sent")
	after := testutil.ToFloat64(contactSubmissions.WithLabelValues("sent"))

	if after-before != 2 {
		t.Errorf("sent counter moved by %v, want 2", after-before)
	}
}

func TestHTTPMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetrics)
	r.Get("/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/things/42", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(reqDuration)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var found bool
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["path"] == "/things/42" {
				t.Errorf("raw path leaked into label: %v", labels)
			}
			if labels["path"] == "/things/{id}" && labels["status"] == "418" && labels["method"] == "GET" {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected a series for the route pattern")
	}
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncateUTF8(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateUTF8(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestRouteLabel_TruncatesUnmatched(t *testing.T) {
	long := "/" + strings.Repeat("a", 400)
	req := httptest.NewRequest(http.MethodGet, long, nil)

	got := routeLabel(req)
	if len(got) != maxPathLabelLength {
		t.Errorf("len = %d, want %d", len(got), maxPathLabelLength)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("label %q should end with ...", got)
	}
}
