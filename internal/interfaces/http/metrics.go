package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sawpanic/crewrun/internal/application"
)

// MetricsRegistry holds all Prometheus metrics for crewrun
type MetricsRegistry struct {
	registry *prometheus.Registry

	RequestDuration *prometheus.HistogramVec
	Requests        *prometheus.CounterVec

	Changes     *prometheus.CounterVec
	ChangedRows *prometheus.CounterVec
	LastChange  prometheus.Gauge

	HookErrors *prometheus.CounterVec
	WSClients  prometheus.Gauge
}

// NewMetricsRegistry creates a registry with the process collectors and all
// crewrun metrics.
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crewrun_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by route",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"route", "method"},
		),

		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewrun_http_requests_total",
				Help: "Total HTTP requests by route and status code",
			},
			[]string{"route", "method", "code"},
		),

		Changes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewrun_changes_total",
				Help: "Saved changes by kind",
			},
			[]string{"kind"},
		),

		ChangedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewrun_changed_rows_total",
				Help: "Rows touched by saved changes, by kind",
			},
			[]string{"kind"},
		),

		LastChange: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewrun_last_change_timestamp_seconds",
				Help: "Unix time of the last saved change",
			},
		),

		HookErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewrun_hook_errors_total",
				Help: "Post-save hook failures by hook",
			},
			[]string{"hook"},
		),

		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewrun_ws_clients",
				Help: "Connected websocket event clients",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestDuration,
		m.Requests,
		m.Changes,
		m.ChangedRows,
		m.LastChange,
		m.HookErrors,
		m.WSClients,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, used by tests.
func (m *MetricsRegistry) Registry() *prometheus.Registry { return m.registry }

// AfterSave counts saved changes.
func (m *MetricsRegistry) AfterSave(_ context.Context, c application.Change) error {
	m.Changes.WithLabelValues(string(c.Kind)).Inc()
	m.ChangedRows.WithLabelValues(string(c.Kind)).Add(float64(c.Count))
	m.LastChange.Set(float64(c.At.Unix()))
	return nil
}

// Wrap instruments a hook so its failures are counted under name.
func (m *MetricsRegistry) Wrap(name string, h application.Hook) application.Hook {
	return application.HookFunc(func(ctx context.Context, c application.Change) error {
		err := h.AfterSave(ctx, c)
		if err != nil {
			m.HookErrors.WithLabelValues(name).Inc()
		}
		return err
	})
}

// middleware records duration and status per route template.
func (m *MetricsRegistry) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		start := time.Now()
		wrapper := wrapResponse(w)
		next.ServeHTTP(wrapper, r)

		m.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(wrapper.statusCode)).Inc()
	})
}
