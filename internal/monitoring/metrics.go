package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/kvbench/internal/benchmark"
)

// Metrics mirrors benchmark activity into Prometheus collectors on a
// private registry.
type Metrics struct {
	registry *prometheus.Registry

	callDuration *prometheus.HistogramVec
	callFailures *prometheus.CounterVec
	actionRuns   *prometheus.CounterVec
	hasData      prometheus.Gauge
}

var _ benchmark.Observer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		callDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kvbench",
			Name:      "call_duration_milliseconds",
			Help:      "Duration of measured storage calls",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 20),
		}, []string{"name"}),
		callFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvbench",
			Name:      "call_failures_total",
			Help:      "Measured storage calls that returned an error",
		}, []string{"name"}),
		actionRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvbench",
			Name:      "action_runs_total",
			Help:      "Completed controller actions by outcome",
		}, []string{"action", "status"}),
		hasData: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "kvbench",
			Name:      "store_has_data",
			Help:      "1 when the store holds benchmark data",
		}),
	}
}

// ObserveCall records one measured call.
func (m *Metrics) ObserveCall(name string, ms float64, err error) {
	m.callDuration.WithLabelValues(name).Observe(ms)
	if err != nil {
		m.callFailures.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) ObserveAction(state benchmark.ActionState) {
	switch state.Status {
	case benchmark.StatusSucceeded, benchmark.StatusFailed:
		m.actionRuns.WithLabelValues(string(state.Action), string(state.Status)).Inc()
	}
}

func (m *Metrics) SetHasData(v bool) {
	if v {
		m.hasData.Set(1)
	} else {
		m.hasData.Set(0)
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
