package ipmibmc

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks Core operational statistics with atomic counters, the same
// lock-free style as the teacher's metrics.go, generalized from per-I/O-op
// counters to dispatch/response/synthesis/queue-depth counters.
type Metrics struct {
	DispatchedTotal       atomic.Uint64 // requests that reached a matching handler
	DispatchedDefault     atomic.Uint64 // of those, how many via the default handler
	DispatchErrors        atomic.Uint64 // handler Handle calls that returned an error
	ResponsesSent         atomic.Uint64
	ResponseFailures      atomic.Uint64
	SynthesizedTotal      atomic.Uint64 // error responses built by the Error Synthesiser
	QueueDepth            atomic.Int64  // current default-sink FIFO depth
	DispatchDurationCount atomic.Uint64 // number of Dispatch calls timed
	DispatchDurationNanos atomic.Uint64 // running total of Dispatch durations
}

// NewMetrics returns a zeroed Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordDispatch(matched bool, err error) {
	m.DispatchedTotal.Add(1)
	if !matched {
		m.DispatchedDefault.Add(1)
	}
	if err != nil {
		m.DispatchErrors.Add(1)
	}
}

func (m *Metrics) RecordResponse(err error) {
	if err != nil {
		m.ResponseFailures.Add(1)
		return
	}
	m.ResponsesSent.Add(1)
}

func (m *Metrics) RecordSynthesized(uint8) {
	m.SynthesizedTotal.Add(1)
}

func (m *Metrics) SetQueueDepth(n int) {
	m.QueueDepth.Store(int64(n))
}

// ObserveDispatchDuration accumulates a Dispatch call's duration. AverageDispatchDuration
// divides the running total back out, the same running-sum-over-count shape
// as the teacher's own latency accounting, kept here instead of a
// histogram since this type mirrors raw atomic counters, not buckets.
func (m *Metrics) ObserveDispatchDuration(seconds float64) {
	m.DispatchDurationCount.Add(1)
	m.DispatchDurationNanos.Add(uint64(seconds * float64(time.Second)))
}

// AverageDispatchDuration returns the mean Dispatch duration observed so
// far, or zero if none have been recorded yet.
func (m *Metrics) AverageDispatchDuration() time.Duration {
	count := m.DispatchDurationCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(m.DispatchDurationNanos.Load() / count)
}

// PromMetrics mirrors Metrics into Prometheus collectors, grounded on
// dittofs's internal/adapter/nlm/metrics.go NewMetrics(reg) pattern: every
// series is created and registered up front, with an ipmibmc_ prefix.
type PromMetrics struct {
	dispatchedTotal  *prometheus.CounterVec
	responsesTotal   *prometheus.CounterVec
	synthesizedTotal *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	queueDepth       prometheus.Gauge
}

// NewPromMetrics creates and registers the Core's Prometheus series against
// reg (typically prometheus.DefaultRegisterer).
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	m := &PromMetrics{
		dispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipmibmc_dispatched_total",
				Help: "Total requests dispatched, by outcome.",
			},
			[]string{"outcome"}, // "handled", "default", "error"
		),
		responsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipmibmc_responses_total",
				Help: "Total response delivery attempts, by outcome.",
			},
			[]string{"outcome"}, // "sent", "failed"
		),
		synthesizedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipmibmc_synthesized_responses_total",
				Help: "Total error responses built by the Error Synthesiser, by completion code.",
			},
			[]string{"completion_code"},
		),
		dispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ipmibmc_dispatch_duration_seconds",
				Help:    "Time spent routing a request to a handler.",
				Buckets: prometheus.DefBuckets,
			},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ipmibmc_default_sink_queue_depth",
				Help: "Current depth of the default-device sink's request FIFO.",
			},
		),
	}
	reg.MustRegister(
		m.dispatchedTotal,
		m.responsesTotal,
		m.synthesizedTotal,
		m.dispatchDuration,
		m.queueDepth,
	)
	return m
}

func (m *PromMetrics) RecordDispatch(matched bool, err error) {
	switch {
	case err != nil:
		m.dispatchedTotal.WithLabelValues("error").Inc()
	case matched:
		m.dispatchedTotal.WithLabelValues("handled").Inc()
	default:
		m.dispatchedTotal.WithLabelValues("default").Inc()
	}
}

func (m *PromMetrics) RecordResponse(err error) {
	if err != nil {
		m.responsesTotal.WithLabelValues("failed").Inc()
		return
	}
	m.responsesTotal.WithLabelValues("sent").Inc()
}

func (m *PromMetrics) RecordSynthesized(completionCode uint8) {
	m.synthesizedTotal.WithLabelValues(formatCompletionCode(completionCode)).Inc()
}

func (m *PromMetrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// ObserveDispatchDuration records the time a Dispatch call took.
func (m *PromMetrics) ObserveDispatchDuration(seconds float64) {
	m.dispatchDuration.Observe(seconds)
}

func formatCompletionCode(code uint8) string {
	const hexDigits = "0123456789abcdef"
	return "0x" + string([]byte{hexDigits[code>>4], hexDigits[code&0xf]})
}

// MultiObserver fans a single Observer call out to several observers, so a
// Core instance can feed both the in-process Metrics and a Prometheus
// mirror from one wiring point.
type MultiObserver []Observer

func (mo MultiObserver) RecordDispatch(matched bool, err error) {
	for _, o := range mo {
		o.RecordDispatch(matched, err)
	}
}

func (mo MultiObserver) RecordResponse(err error) {
	for _, o := range mo {
		o.RecordResponse(err)
	}
}

func (mo MultiObserver) RecordSynthesized(completionCode uint8) {
	for _, o := range mo {
		o.RecordSynthesized(completionCode)
	}
}

func (mo MultiObserver) SetQueueDepth(n int) {
	for _, o := range mo {
		o.SetQueueDepth(n)
	}
}

func (mo MultiObserver) ObserveDispatchDuration(seconds float64) {
	for _, o := range mo {
		o.ObserveDispatchDuration(seconds)
	}
}

// Observer is the same contract internal/interfaces.Observer defines,
// re-declared at the module root so callers wiring up a Core don't need to
// import the internal package.
type Observer interface {
	RecordDispatch(matched bool, err error)
	RecordResponse(err error)
	RecordSynthesized(completionCode uint8)
	SetQueueDepth(n int)
	ObserveDispatchDuration(seconds float64)
}

var (
	_ Observer = (*Metrics)(nil)
	_ Observer = (*PromMetrics)(nil)
	_ Observer = (MultiObserver)(nil)
)
