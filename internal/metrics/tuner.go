package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tuner/internal/tuner"
)

// Cycle outcomes used as the "outcome" label.
const (
	OutcomePitched = "pitched"
	OutcomeSilent  = "silent"
	OutcomeGated   = "gated"
)

// TunerMetrics contains Prometheus metrics for the analysis cycle. It
// implements tuner.Observer.
type TunerMetrics struct {
	registry *prometheus.Registry

	cyclesTotal     *prometheus.CounterVec
	cyclesSkipped   *prometheus.CounterVec
	publishFailures prometheus.Counter
	cycleDuration   prometheus.Histogram
	fundamentalHz   prometheus.Gauge
	peakVolume      prometheus.Gauge
	centsOffset     prometheus.Gauge
}

// NewTunerMetrics creates and registers new tuner metrics.
func NewTunerMetrics(registry *prometheus.Registry) (*TunerMetrics, error) {
	m := &TunerMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *TunerMetrics) initMetrics() {
	m.cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tuner_cycles_total",
			Help: "Total number of completed analysis cycles",
		},
		[]string{"outcome"}, // pitched, silent, gated
	)

	m.cyclesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tuner_cycles_skipped_total",
			Help: "Total number of analysis cycles skipped",
		},
		[]string{"reason"}, // timeout, error
	)

	m.publishFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tuner_publish_failures_total",
		Help: "Total number of results the publisher failed to send",
	})

	m.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tuner_cycle_duration_seconds",
		Help:    "Time from window load to published result",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 100us to ~0.8s
	})

	m.fundamentalHz = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tuner_fundamental_hz",
		Help: "Fundamental frequency of the latest cycle, 0 when none",
	})

	m.peakVolume = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tuner_peak_volume",
		Help: "Peak absolute sample value of the latest window",
	})

	m.centsOffset = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tuner_cents_offset",
		Help: "Deviation of the latest fundamental from its target note in cents",
	})
}

// TrackDroppedSamples exposes a producer drop count, e.g.
// (*buffer.SharedBuffer).Dropped, as a counter.
func (m *TunerMetrics) TrackDroppedSamples(dropped func() uint64) error {
	return m.registry.Register(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "tuner_dropped_samples_total",
			Help: "Total number of captured samples dropped while a window was pending",
		},
		func() float64 { return float64(dropped()) },
	))
}

// CycleCompleted records a published result.
func (m *TunerMetrics) CycleCompleted(r tuner.AnalysisResult, elapsed time.Duration) {
	outcome := OutcomePitched
	switch {
	case r.Gated:
		outcome = OutcomeGated
	case r.FundamentalHz == 0:
		outcome = OutcomeSilent
	}
	m.cyclesTotal.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(elapsed.Seconds())
	m.fundamentalHz.Set(float64(r.FundamentalHz))
	m.peakVolume.Set(float64(r.PeakVolume))
	if r.Note != nil {
		m.centsOffset.Set(r.Note.Cents)
	} else {
		m.centsOffset.Set(0)
	}
}

// CycleSkipped records a cycle that produced no result.
func (m *TunerMetrics) CycleSkipped(reason string) {
	m.cyclesSkipped.WithLabelValues(reason).Inc()
}

// PublishFailed records a result the publisher could not send.
func (m *TunerMetrics) PublishFailed() {
	m.publishFailures.Inc()
}

// Describe implements prometheus.Collector.
func (m *TunerMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.cyclesTotal.Describe(ch)
	m.cyclesSkipped.Describe(ch)
	m.publishFailures.Describe(ch)
	m.cycleDuration.Describe(ch)
	m.fundamentalHz.Describe(ch)
	m.peakVolume.Describe(ch)
	m.centsOffset.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *TunerMetrics) Collect(ch chan<- prometheus.Metric) {
	m.cyclesTotal.Collect(ch)
	m.cyclesSkipped.Collect(ch)
	m.publishFailures.Collect(ch)
	m.cycleDuration.Collect(ch)
	m.fundamentalHz.Collect(ch)
	m.peakVolume.Collect(ch)
	m.centsOffset.Collect(ch)
}

var _ tuner.Observer = (*TunerMetrics)(nil)
