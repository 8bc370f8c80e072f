package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector(WithRegistry(reg), WithNamespace("test")), reg
}

func TestCollectorRenderObserved(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RenderObserved("rendered", 20*time.Millisecond)
	c.RenderObserved("rendered", 5*time.Millisecond)
	c.RenderObserved("error", time.Millisecond)

	if got := metricCounterValue(t, c.rendersTotal.WithLabelValues("rendered")); got != 2 {
		t.Errorf("renders_total{rendered} = %v, want 2", got)
	}
	if got := metricCounterValue(t, c.rendersTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("renders_total{error} = %v, want 1", got)
	}
	if got := metricHistogramCount(t, c.renderDuration.WithLabelValues("rendered")); got != 2 {
		t.Errorf("render_duration_seconds{rendered} count = %d, want 2", got)
	}
}

func TestCollectorLiveMetrics(t *testing.T) {
	c, _ := newTestCollector(t)

	c.ConnectionsChanged(3)
	c.ConnectionsChanged(2)
	if got := metricGaugeValue(t, c.openConnections); got != 2 {
		t.Errorf("open_connections = %v, want 2", got)
	}

	c.EventRelayed("addPost", 2, 1)
	c.EventRelayed("addPost", 0, 0)
	c.EventRelayed("addComment", 1, 0)

	if got := metricCounterValue(t, c.eventsRelayed.WithLabelValues("addPost")); got != 2 {
		t.Errorf("events_relayed_total{addPost} = %v, want 2", got)
	}
	if got := metricCounterValue(t, c.deliveries.WithLabelValues("ok")); got != 3 {
		t.Errorf("deliveries_total{ok} = %v, want 3", got)
	}
	if got := metricCounterValue(t, c.deliveries.WithLabelValues("failed")); got != 1 {
		t.Errorf("deliveries_total{failed} = %v, want 1", got)
	}

	c.EventDropped("unknown_kind")
	if got := metricCounterValue(t, c.eventsDropped.WithLabelValues("unknown_kind")); got != 1 {
		t.Errorf("events_dropped_total{unknown_kind} = %v, want 1", got)
	}
}

func TestCollectorMiddlewareUsesRoutePattern(t *testing.T) {
	c, _ := newTestCollector(t)

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/api/posts/1", "/api/posts/2", "/ok"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := metricCounterValue(t, c.httpRequests.WithLabelValues("/api/posts/{id}", "GET", "404")); got != 2 {
		t.Errorf("http_requests_total{/api/posts/{id},404} = %v, want 2", got)
	}
	if got := metricCounterValue(t, c.httpRequests.WithLabelValues("/ok", "GET", "200")); got != 1 {
		t.Errorf("http_requests_total{/ok,200} = %v, want 1", got)
	}
	if got := metricHistogramCount(t, c.httpDuration.WithLabelValues("/api/posts/{id}", "GET")); got != 2 {
		t.Errorf("http_request_duration_seconds count = %d, want 2", got)
	}
}

func TestCollectorRegistersOnGivenRegistry(t *testing.T) {
	c, reg := newTestCollector(t)
	c.RenderObserved("redirect", 0)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "test_renders_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected test_renders_total on the registry")
	}
}

func TestCollectorConstLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(WithRegistry(reg), WithConstLabels(prometheus.Labels{"instance": "a"}), WithSubsystem("web"))
	c.ConnectionsChanged(1)

	families, _ := reg.Gather()
	for _, f := range families {
		if f.GetName() != "postline_web_open_connections" {
			continue
		}
		labels := f.GetMetric()[0].GetLabel()
		if len(labels) != 1 || labels[0].GetName() != "instance" || labels[0].GetValue() != "a" {
			t.Errorf("labels = %v", labels)
		}
		return
	}
	t.Error("postline_web_open_connections not registered")
}

func TestCollectorMiddlewareCountsUpgrades(t *testing.T) {
	c, _ := newTestCollector(t)

	done := make(chan struct{})
	upgrader := websocket.Upgrader{}
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("upgrade handler did not return")
	}

	deadline := time.Now().Add(2 * time.Second)
	for metricCounterValue(t, c.httpRequests.WithLabelValues("/ws", "GET", "101")) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("http_requests_total{/ws,101} was not recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := metricCounterValue(t, c.httpRequests.WithLabelValues("/ws", "GET", "200")); got != 0 {
		t.Errorf("upgrade counted as 200: %v", got)
	}
	if got := metricHistogramCount(t, c.httpDuration.WithLabelValues("/ws", "GET")); got != 0 {
		t.Errorf("connection lifetime observed in request duration: %d", got)
	}
}
