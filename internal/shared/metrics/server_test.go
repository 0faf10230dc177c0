package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHealthz(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks map[string]HealthFunc
		want   int
		body   string
	}{
		{"no checks", nil, http.StatusOK, "ok"},
		{"all healthy", map[string]HealthFunc{"postgres": healthy, "redis": healthy}, http.StatusOK, "ok"},
		{"redis down", map[string]HealthFunc{"postgres": healthy, "redis": down}, http.StatusServiceUnavailable, "redis unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Handler(prometheus.NewRegistry(), tt.checks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != tt.want || !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("got %d %q, want %d %q", rec.Code, rec.Body.String(), tt.want, tt.body)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_messages_total", Help: "x"})
	reg.MustRegister(c)
	c.Add(3)

	srv := httptest.NewServer(Handler(reg, nil))
	defer srv.Close()
	res, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(b), "feed_messages_total 3") {
		t.Errorf("metrics body missing counter:\n%s", b)
	}
}
