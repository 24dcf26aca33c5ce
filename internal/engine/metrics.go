package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"capstan/internal/api"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

// syncDurationBuckets covers the realistic spread of one sync attempt,
// from a no-op re-grade to a large first apply plus health wait.
var syncDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// engineMetrics holds the engine's Prometheus collectors. Every engine
// instance registers on its own registry, so tests never collide on the
// global default.
type engineMetrics struct {
	syncTotal     *prometheus.CounterVec
	syncDuration  *prometheus.HistogramVec
	actionsTotal  *prometheus.CounterVec
	driftDetected *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	applications  *prometheus.GaugeVec
}

func newEngineMetrics(reg prometheus.Registerer) *engineMetrics {
	m := &engineMetrics{
		syncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capstan_sync_total",
			Help: "Completed sync attempts by outcome.",
		}, []string{"application", "result"}),

		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "capstan_sync_duration_seconds",
			Help:    "Wall-clock duration of sync attempts.",
			Buckets: syncDurationBuckets,
		}, []string{"application"}),

		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capstan_sync_actions_total",
			Help: "Per-resource actions executed during syncs.",
		}, []string{"action", "result"}),

		driftDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capstan_drift_detected_total",
			Help: "Out-of-band drift notifications that scheduled a reconciliation.",
		}, []string{"application"}),

		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "capstan_queue_depth",
			Help: "Reconciliation tasks waiting for a worker.",
		}),

		applications: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "capstan_applications",
			Help: "Registered Applications by phase.",
		}, []string{"phase"}),
	}

	reg.MustRegister(
		m.syncTotal,
		m.syncDuration,
		m.actionsTotal,
		m.driftDetected,
		m.queueDepth,
		m.applications,
	)
	return m
}

// recordAttempt accounts one finished sync attempt.
func (m *engineMetrics) recordAttempt(app, result string, duration time.Duration, actions []api.ActionResult) {
	m.syncTotal.WithLabelValues(app, result).Inc()
	m.syncDuration.WithLabelValues(app).Observe(duration.Seconds())

	for _, a := range actions {
		outcome := "success"
		if !a.Success {
			outcome = "failure"
		}
		m.actionsTotal.WithLabelValues(string(a.Action), outcome).Inc()
	}
}

// recordDrift accounts one accepted drift notification.
func (m *engineMetrics) recordDrift(app string) {
	m.driftDetected.WithLabelValues(app).Inc()
}

// setQueueDepth publishes the current queue length.
func (m *engineMetrics) setQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// setPhaseCounts publishes the per-phase Application census. Every phase
// is written on each call so counts from vacated phases reset to zero.
func (m *engineMetrics) setPhaseCounts(counts map[v1alpha1.ApplicationPhase]int) {
	for _, phase := range []v1alpha1.ApplicationPhase{
		v1alpha1.PhaseIdle,
		v1alpha1.PhaseSyncing,
		v1alpha1.PhaseRetrying,
		v1alpha1.PhaseHealthy,
		v1alpha1.PhaseDegraded,
		v1alpha1.PhaseFailed,
	} {
		m.applications.WithLabelValues(string(phase)).Set(float64(counts[phase]))
	}
}

// forgetApplication drops the per-Application series of a removed
// Application so the scrape surface does not grow without bound.
func (m *engineMetrics) forgetApplication(app string) {
	labels := prometheus.Labels{"application": app}
	m.syncTotal.DeletePartialMatch(labels)
	m.syncDuration.DeletePartialMatch(labels)
	m.driftDetected.DeletePartialMatch(labels)
}
