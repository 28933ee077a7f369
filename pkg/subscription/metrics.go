package subscription

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SweepMetrics exposes reconciliation sweep outcomes to prometheus.
type SweepMetrics struct {
	renewed  prometheus.Counter
	expired  prometheus.Counter
	skipped  prometheus.Counter
	failed   prometheus.Counter
	duration prometheus.Histogram
}

// NewSweepMetrics registers sweep metrics with the given registerer.
func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	factory := promauto.With(reg)
	return &SweepMetrics{
		renewed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "sweep",
			Name:      "renewed_total",
			Help:      "Subscriptions renewed by the reconciliation sweep.",
		}),
		expired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "sweep",
			Name:      "expired_total",
			Help:      "Subscriptions expired by the reconciliation sweep.",
		}),
		skipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "sweep",
			Name:      "skipped_total",
			Help:      "Due subscriptions skipped as already reconciled concurrently.",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "sweep",
			Name:      "failed_total",
			Help:      "Subscriptions whose reconciliation failed with an unexpected error.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "billing",
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a full reconciliation pass.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

func (m *SweepMetrics) observe(res *SweepResult) {
	m.renewed.Add(float64(len(res.Renewed)))
	m.expired.Add(float64(len(res.Expired)))
	m.skipped.Add(float64(len(res.Skipped)))
	m.failed.Add(float64(len(res.Failed)))
	m.duration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
}
