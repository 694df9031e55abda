package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for clockapp.
//
// All recording helpers are safe on a nil *Metrics, so components can take
// metrics as an optional dependency.
type Metrics struct {
	// Engine Metrics
	Commands       *prometheus.CounterVec
	Ticks          *prometheus.CounterVec
	Expirations    *prometheus.CounterVec
	CounterSeconds *prometheus.GaugeVec
	Running        *prometheus.GaugeVec

	// Event Bus Metrics
	EventsPublished  *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec
	PublishDuration  *prometheus.HistogramVec
	SubscribersTotal *prometheus.GaugeVec

	// Surface Metrics
	SurfaceRefreshes *prometheus.CounterVec
	SurfaceErrors    *prometheus.CounterVec
	SurfaceActive    *prometheus.GaugeVec
}

var (
	defaultMetrics *Metrics
)

// InitMetrics registers the metrics with registry (the default registerer
// when nil).
func InitMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	// Buckets: 1µs .. 10ms, bus publishes are in-process channel sends
	latencyBuckets := prometheus.ExponentialBuckets(0.000001, 4, 8)

	m := &Metrics{
		Commands: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "clockapp_engine_commands_total",
				Help: "Total number of commands applied to an engine",
			},
			[]string{"kind", "command"},
		),

		Ticks: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "clockapp_engine_ticks_total",
				Help: "Total number of ticks applied to an engine",
			},
			[]string{"kind"},
		),

		Expirations: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "clockapp_engine_expirations_total",
				Help: "Number of times a countdown reached zero and reset itself",
			},
			[]string{"kind"},
		),

		CounterSeconds: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clockapp_engine_counter_seconds",
				Help: "Current counter value of an engine",
			},
			[]string{"kind"},
		),

		Running: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clockapp_engine_running",
				Help: "1 while the engine is running, 0 otherwise",
			},
			[]string{"kind"},
		),

		EventsPublished: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "clockapp_events_published_total",
				Help: "Total number of events published to a bus",
			},
			[]string{"bus", "event_type"},
		),

		EventsDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "clockapp_events_dropped_total",
				Help: "Total number of events dropped due to slow subscribers",
			},
			[]string{"bus", "event_type"},
		),

		PublishDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clockapp_event_publish_duration_seconds",
				Help:    "Time taken to publish an event to all matching subscribers",
				Buckets: latencyBuckets,
			},
			[]string{"bus", "event_type"},
		),

		SubscribersTotal: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clockapp_subscribers_total",
				Help: "Current number of active subscribers",
			},
			[]string{"bus"},
		),

		SurfaceRefreshes: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "clockapp_surface_refreshes_total",
				Help: "Total number of persistent status surface redraws",
			},
			[]string{"kind"},
		),

		SurfaceErrors: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "clockapp_surface_errors_total",
				Help: "Surface show/dismiss failures (dropped, never retried)",
			},
			[]string{"kind"},
		),

		SurfaceActive: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clockapp_surface_active",
				Help: "1 while a persistent status surface is shown",
			},
			[]string{"kind"},
		),
	}

	defaultMetrics = m
	return m
}

// Default returns the default metrics instance.
// If InitMetrics hasn't been called, it will initialize with the default registry.
func Default() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics(nil)
	}
	return defaultMetrics
}

// RecordCommand counts a command applied to the engine of the given kind.
func (m *Metrics) RecordCommand(kind, command string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(kind, command).Inc()
}

// RecordTick counts a tick and tracks the resulting counter value.
func (m *Metrics) RecordTick(kind string, seconds int64) {
	if m == nil {
		return
	}
	m.Ticks.WithLabelValues(kind).Inc()
	m.CounterSeconds.WithLabelValues(kind).Set(float64(seconds))
}

// RecordExpiration counts a countdown reaching zero.
func (m *Metrics) RecordExpiration(kind string) {
	if m == nil {
		return
	}
	m.Expirations.WithLabelValues(kind).Inc()
}

// SetEngineState tracks the running flag and counter of an engine.
func (m *Metrics) SetEngineState(kind string, running bool, seconds int64) {
	if m == nil {
		return
	}
	m.Running.WithLabelValues(kind).Set(boolToFloat(running))
	m.CounterSeconds.WithLabelValues(kind).Set(float64(seconds))
}

// RecordPublish counts a published event and its fan-out latency.
func (m *Metrics) RecordPublish(bus, eventType string, took time.Duration) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(bus, eventType).Inc()
	m.PublishDuration.WithLabelValues(bus, eventType).Observe(took.Seconds())
}

// RecordDrop counts an event dropped for one slow subscriber.
func (m *Metrics) RecordDrop(bus, eventType string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(bus, eventType).Inc()
}

// SetSubscribers tracks the subscriber count of a bus.
func (m *Metrics) SetSubscribers(bus string, n int) {
	if m == nil {
		return
	}
	m.SubscribersTotal.WithLabelValues(bus).Set(float64(n))
}

// RecordRefresh counts a surface redraw; err != nil counts a failure instead.
func (m *Metrics) RecordRefresh(kind string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SurfaceErrors.WithLabelValues(kind).Inc()
		return
	}
	m.SurfaceRefreshes.WithLabelValues(kind).Inc()
}

// SetSurfaceActive tracks whether the surface of kind is shown.
func (m *Metrics) SetSurfaceActive(kind string, active bool) {
	if m == nil {
		return
	}
	m.SurfaceActive.WithLabelValues(kind).Set(boolToFloat(active))
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the time elapsed since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
