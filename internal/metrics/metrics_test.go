package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestMiddlewareCountsByRoute(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, path := range []string{"/api/items/1", "/api/items/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	want := `revision_http_requests_total{method="GET",route="/api/items/{id}",status="418"} 2`
	if out := scrape(t, m); !strings.Contains(out, want) {
		t.Errorf("metrics output missing %q:\n%s", want, out)
	}
}

func TestOutcomeCounters(t *testing.T) {
	m := New()
	m.ObserveGeneration("fallback")
	m.ObserveGeneration("fallback")
	m.ObserveEvaluation("degraded")

	out := scrape(t, m)
	for _, want := range []string{
		`revision_generations_total{outcome="fallback"} 2`,
		`revision_evaluations_total{outcome="degraded"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
