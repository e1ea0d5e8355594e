package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runsTotal tracks orchestration runs by trigger.
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_runs_total",
		Help: "Total orchestration runs by trigger",
	}, []string{"trigger"})

	// runDuration tracks the time taken by a full orchestration run.
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_run_duration_seconds",
		Help:    "Time taken for one orchestration run",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// listingPushes tracks per-listing pushes by platform, op and result.
	listingPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_listing_pushes_total",
		Help: "Total per-listing pushes by platform, operation and result",
	}, []string{"platform", "op", "result"})

	// pushRetries tracks retry attempts spent on transient failures.
	pushRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_push_retries_total",
		Help: "Total retry attempts on transient adapter failures",
	}, []string{"platform", "op"})

	// repriceSkips tracks repricing passes that pushed nothing.
	repriceSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_reprice_skips_total",
		Help: "Repricing passes that pushed nothing, by reason",
	}, []string{"reason"})

	// invalidRules tracks rule evaluations rejected by the evaluator.
	invalidRules = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_invalid_rules_total",
		Help: "Total rule evaluations rejected as invalid",
	})

	// oversellClamps tracks sales that drove quantity below zero.
	oversellClamps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_oversell_clamps_total",
		Help: "Total sale events that clamped quantity at zero",
	})
)

// Metrics provides methods to record engine metrics.
type Metrics struct{}

// NewMetrics creates an engine metrics recorder.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRun records a completed orchestration run.
func (m *Metrics) RecordRun(trigger Trigger, duration time.Duration) {
	runsTotal.WithLabelValues(string(trigger)).Inc()
	runDuration.Observe(duration.Seconds())
}

// RecordPush records one per-listing push.
func (m *Metrics) RecordPush(platform string, op PushOp, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	listingPushes.WithLabelValues(platform, string(op), result).Inc()
}

// RecordRetries records retry attempts spent on one push.
func (m *Metrics) RecordRetries(platform string, op PushOp, retries int) {
	if retries > 0 {
		pushRetries.WithLabelValues(platform, string(op)).Add(float64(retries))
	}
}

// RecordRepriceSkip records a repricing pass that pushed nothing.
func (m *Metrics) RecordRepriceSkip(reason string) {
	repriceSkips.WithLabelValues(reason).Inc()
}

// RecordInvalidRule records a rejected rule evaluation.
func (m *Metrics) RecordInvalidRule() {
	invalidRules.Inc()
}

// RecordOversellClamp records a quantity clamp at zero.
func (m *Metrics) RecordOversellClamp() {
	oversellClamps.Inc()
}
