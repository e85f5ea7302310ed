package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(Middleware())
	return r
}

func TestMiddleware_RouteAndStatusLabels(t *testing.T) {
	r := newRouter()
	r.Get("/v1/matches/{matchId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Put("/v1/matches/{matchId}/status", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})

	tests := []struct {
		method, path, route, status string
	}{
		{http.MethodGet, "/v1/matches/m-1", "/v1/matches/{matchId}", "404"},
		{http.MethodPut, "/v1/matches/m-2/status", "/v1/matches/{matchId}/status", "200"},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tt.method, tt.route, tt.status))
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, http.NoBody))
			after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tt.method, tt.route, tt.status))
			if after-before != 1 {
				t.Errorf("requests_total delta = %v, want 1", after-before)
			}
		})
	}
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	r := newRouter()
	r.Get("/health", func(http.ResponseWriter, *http.Request) {})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/nope/123", http.NoBody))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404"))
	if after-before != 1 {
		t.Errorf("unmatched delta = %v, want 1", after-before)
	}
}

func TestMiddleware_StreamsSkipLatency(t *testing.T) {
	r := newRouter()
	r.Get("/v1/users/{id}/events", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		_, _ = io.WriteString(w, ": connected\n\n")
		w.(http.Flusher).Flush()
	})
	r.Get("/v1/periodic-search/stats", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})

	const route = "/v1/users/{id}/events"
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/users/u-1/events", http.NoBody))
	if !rr.Flushed {
		t.Error("expected the stream to flush through the wrapper")
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, route, "200")); got < 1 {
		t.Errorf("stream not counted: %v", got)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/periodic-search/stats", http.NoBody))

	// DeleteLabelValues reports whether the series existed.
	if httpRequestDuration.DeleteLabelValues(http.MethodGet, route, "200") {
		t.Error("stream must not be observed in the latency histogram")
	}
	if !httpRequestDuration.DeleteLabelValues(http.MethodGet, "/v1/periodic-search/stats", "200") {
		t.Error("expected the stats request to be observed")
	}
	if got := testutil.ToFloat64(httpInFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
}
