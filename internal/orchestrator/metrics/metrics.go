// Package metrics defines the internal Prometheus collectors named in
// SPEC_FULL.md's DOMAIN STACK table: queue depth, ready counts, dispatch
// latency, dead-letter rate. There is deliberately no HTTP handler here —
// exposing /metrics is a transport concern, out of scope per §1. Callers
// that do own a transport can register Collectors.Registry with their own
// mux.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors bundles every gauge/counter/histogram the queue and dispatcher
// update. All are registered against a private Registry
// rather than prometheus.DefaultRegisterer so a process embedding this
// package never collides with its own metrics.
type Collectors struct {
	Registry *prometheus.Registry

	QueueDepth         *prometheus.GaugeVec
	ReadyCount         *prometheus.GaugeVec
	DispatchLatency    *prometheus.HistogramVec
	DeadLetterTotal    *prometheus.CounterVec
	JobsEnqueuedTotal  *prometheus.CounterVec
	JobsCompletedTotal *prometheus.CounterVec
	LeasesReclaimed    prometheus.Counter
}

func New() *Collectors {
	reg := prometheus.NewRegistry()

	c := &Collectors{
		Registry: reg,
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orchestrator_queue_depth",
			Help: "Ready jobs currently queued, by kind.",
		}, []string{"kind"}),
		ReadyCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orchestrator_ready_count",
			Help: "Ready jobs grouped by library and priority.",
		}, []string{"library_id", "priority"}),
		DispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orchestrator_dispatch_latency_seconds",
			Help:    "Time from actor dispatch to completion or failure, by kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		DeadLetterTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_jobs_dead_lettered_total",
			Help: "Jobs moved to dead_lettered, by kind.",
		}, []string{"kind"}),
		JobsEnqueuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_jobs_enqueued_total",
			Help: "Enqueue calls, by kind and outcome (accepted/merged).",
		}, []string{"kind", "outcome"}),
		JobsCompletedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_jobs_completed_total",
			Help: "Jobs that reached Completed, by kind.",
		}, []string{"kind"}),
		LeasesReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_leases_reclaimed_total",
			Help: "Leases reclaimed from crashed or stalled workers.",
		}),
	}

	reg.MustRegister(c.QueueDepth, c.ReadyCount, c.DispatchLatency,
		c.DeadLetterTotal, c.JobsEnqueuedTotal, c.JobsCompletedTotal, c.LeasesReclaimed)
	return c
}

// ObserveDispatch records the wall-clock time an actor execution took.
func (c *Collectors) ObserveDispatch(kind string, start time.Time) {
	if c == nil {
		return
	}
	c.DispatchLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
