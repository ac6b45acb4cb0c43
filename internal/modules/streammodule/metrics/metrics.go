// Package metrics provides Prometheus metrics for the live session.
//
// A Collector owns its own registry so tests and embedded uses never collide
// with the default registry. Every method is safe on a nil *Collector, which
// lets components run without metrics wired in.
//
// Usage:
//
//	m := metrics.New()
//	m.RecordStart("running", 2*time.Second)
//	m.SetState(types.StateRunning)
//	router.GET("/metrics", gin.WrapH(m.Handler()))
package metrics

import (
	"net/http"
	"time"

	"github.com/mantonx/rtsphls/internal/modules/streammodule/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rtsphls"

// Start results used as the "result" label
const (
	ResultRunning     = "running"
	ResultInvalid     = "invalid"
	ResultSpawnFailed = "spawn_failed"
	ResultCrashed     = "crashed"
	ResultTimeout     = "timeout"
	ResultCancelled   = "cancelled"
	ResultStorage     = "storage"
)

// Collector groups the stream module's metrics
type Collector struct {
	registry *prometheus.Registry

	sessionStarts   *prometheus.CounterVec
	sessionStops    prometheus.Counter
	sessionState    *prometheus.GaugeVec
	readiness       prometheus.Histogram
	janitorWarnings prometheus.Counter
	logLines        prometheus.Counter
	orphansKilled   prometheus.Counter
}

// New creates a Collector registered on a fresh registry
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		sessionStarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_starts_total",
				Help:      "Total number of session start attempts by result",
			},
			[]string{"result"},
		),
		sessionStops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_stops_total",
			Help:      "Total number of sessions torn down by a stop request",
		}),
		sessionState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "session_state",
				Help:      "Current session state (1 for the active state, 0 otherwise)",
			},
			[]string{"state"},
		),
		readiness: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "readiness_seconds",
			Help:      "Time from spawn until the manifest became ready",
			Buckets:   []float64{0.5, 1, 1.5, 2, 3, 4, 5, 7.5, 10},
		}),
		janitorWarnings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "janitor_warnings_total",
			Help:      "Output entries the janitor could not remove",
		}),
		logLines: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoder_log_lines_total",
			Help:      "Diagnostic lines read from the encoder",
		}),
		orphansKilled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphans_killed_total",
			Help:      "Leftover encoder processes killed by the orphan sweep",
		}),
	}
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler returns the exposition handler for this collector's registry
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordStart counts a start attempt. A positive readiness duration is only
// observed for successful starts.
func (c *Collector) RecordStart(result string, readiness time.Duration) {
	if c == nil {
		return
	}
	c.sessionStarts.WithLabelValues(result).Inc()
	if result == ResultRunning && readiness > 0 {
		c.readiness.Observe(readiness.Seconds())
	}
}

// RecordStop counts a stop that tore a session down
func (c *Collector) RecordStop() {
	if c == nil {
		return
	}
	c.sessionStops.Inc()
}

// SetState marks state as the active one
func (c *Collector) SetState(state types.State) {
	if c == nil {
		return
	}
	for _, s := range types.AllStates {
		value := 0.0
		if s == state {
			value = 1
		}
		c.sessionState.WithLabelValues(s.String()).Set(value)
	}
}

// AddJanitorWarnings counts entries the janitor had to leave behind
func (c *Collector) AddJanitorWarnings(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.janitorWarnings.Add(float64(n))
}

// IncLogLines counts one diagnostic line
func (c *Collector) IncLogLines() {
	if c == nil {
		return
	}
	c.logLines.Inc()
}

// AddOrphansKilled counts processes killed by the orphan sweep
func (c *Collector) AddOrphansKilled(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.orphansKilled.Add(float64(n))
}
