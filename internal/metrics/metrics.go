// Package metrics exposes Prometheus metrics for the pose pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPath is where the metrics handler is mounted.
const DefaultPath = "/metrics"

// Metrics owns a private registry and every collector the app records.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal     *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec
	HoldsCompleted *prometheus.CounterVec
	HoldResets     *prometheus.CounterVec
	StableGood     *prometheus.GaugeVec
	TickDuration   prometheus.Histogram
	RuleUpdates    *prometheus.CounterVec
	SessionsActive prometheus.Gauge
	DetectorErrors prometheus.Counter
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		TicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asana_ticks_total",
				Help: "Evaluated frames by pose and per-frame verdict",
			},
			[]string{"pose", "result"},
		),

		FramesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asana_frames_dropped_total",
				Help: "Frames dropped by the sampling throttle",
			},
			[]string{"pose"},
		),

		HoldsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asana_holds_completed_total",
				Help: "Holds that reached their target duration",
			},
			[]string{"pose"},
		),

		HoldResets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asana_hold_resets_total",
				Help: "Holds reset after a lapse longer than the grace period",
			},
			[]string{"pose"},
		),

		StableGood: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "asana_stable_good",
				Help: "1 while the smoothed signal is good",
			},
			[]string{"pose"},
		),

		TickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "asana_tick_duration_seconds",
				Help:    "Time spent detecting and evaluating one frame",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			},
		),

		RuleUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asana_rule_updates_total",
				Help: "Rule documents published by source and outcome",
			},
			[]string{"pose", "source", "result"},
		),

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "asana_sessions_active",
				Help: "Exercise sessions currently running",
			},
		),

		DetectorErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "asana_detector_errors_total",
				Help: "Landmark detection failures",
			},
		),
	}

	m.registry.MustRegister(
		m.TicksTotal,
		m.FramesDropped,
		m.HoldsCompleted,
		m.HoldResets,
		m.StableGood,
		m.TickDuration,
		m.RuleUpdates,
		m.SessionsActive,
		m.DetectorErrors,
	)

	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          m.registry,
	})
}

// RecordTick records one evaluated frame.
func (m *Metrics) RecordTick(pose string, pass, stableGood bool) {
	if m == nil {
		return
	}
	result := "fail"
	if pass {
		result = "pass"
	}
	m.TicksTotal.WithLabelValues(pose, result).Inc()

	gauge := 0.0
	if stableGood {
		gauge = 1
	}
	m.StableGood.WithLabelValues(pose).Set(gauge)
}

// RecordDropped records a frame dropped by the throttle.
func (m *Metrics) RecordDropped(pose string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(pose).Inc()
}

// RecordHoldCompleted records a completed hold.
func (m *Metrics) RecordHoldCompleted(pose string) {
	if m == nil {
		return
	}
	m.HoldsCompleted.WithLabelValues(pose).Inc()
}

// RecordHoldReset records a hold reset by a long lapse.
func (m *Metrics) RecordHoldReset(pose string) {
	if m == nil {
		return
	}
	m.HoldResets.WithLabelValues(pose).Inc()
}

// RecordRuleUpdate records a rule publish. result is "changed",
// "unchanged" or "rejected".
func (m *Metrics) RecordRuleUpdate(pose, source, result string) {
	if m == nil {
		return
	}
	m.RuleUpdates.WithLabelValues(pose, source, result).Inc()
}

// RecordDetectorError counts a failed landmark detection.
func (m *Metrics) RecordDetectorError() {
	if m == nil {
		return
	}
	m.DetectorErrors.Inc()
}

// SetSessionActive sets the active session gauge.
func (m *Metrics) SetSessionActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.SessionsActive.Set(1)
	} else {
		m.SessionsActive.Set(0)
	}
}

// ObserveTick returns a func that records the elapsed tick time when called.
func (m *Metrics) ObserveTick() func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.TickDuration.Observe(time.Since(start).Seconds())
	}
}
