package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByRoutePattern(t *testing.T) {
	Init()
	Init() // second call must not panic

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/bank/{topicID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(RequestCounter.WithLabelValues("GET", "/bank/{topicID}", "418"))
	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bank/"+id, nil))
	}
	after := testutil.ToFloat64(RequestCounter.WithLabelValues("GET", "/bank/{topicID}", "418"))
	if after-before != 2 {
		t.Errorf("expected 2 requests counted, got %v", after-before)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	Init()
	ExamsComposed.WithLabelValues("automatic", "true").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "slidequiz_exams_composed_total") {
		t.Error("expected exam counter in exposition output")
	}
}
