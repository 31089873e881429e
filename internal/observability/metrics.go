package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics counts charge and sync outcomes for the renewal pipeline.
type BillingMetrics struct {
	ChargesTotal   *prometheus.CounterVec
	SyncPushes     *prometheus.CounterVec
	RenewalRuns    prometheus.Counter
	RenewalSkipped prometheus.Counter
}

func NewBillingMetrics() *BillingMetrics {
	m := newBillingMetrics()
	prometheus.MustRegister(m.ChargesTotal, m.SyncPushes, m.RenewalRuns, m.RenewalSkipped)
	return m
}

// NewUnregisteredMetrics returns metrics bound to no registry, for tests.
func NewUnregisteredMetrics() *BillingMetrics {
	return newBillingMetrics()
}

func newBillingMetrics() *BillingMetrics {
	return &BillingMetrics{
		ChargesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soilsync",
			Subsystem: "billing",
			Name:      "charges_total",
			Help:      "Charge attempts by outcome.",
		}, []string{"outcome"}),
		SyncPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soilsync",
			Subsystem: "billing",
			Name:      "sync_pushes_total",
			Help:      "Commerce platform sync pushes by outcome.",
		}, []string{"outcome"}),
		RenewalRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soilsync",
			Subsystem: "billing",
			Name:      "renewal_runs_total",
			Help:      "Completed renewal batch runs.",
		}),
		RenewalSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soilsync",
			Subsystem: "billing",
			Name:      "renewal_runs_skipped_total",
			Help:      "Renewal runs skipped because another instance held the lease.",
		}),
	}
}
