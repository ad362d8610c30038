package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	commits        *prometheus.CounterVec
	removals       prometheus.Counter
	versions       prometheus.Gauge
	commitDuration prometheus.Histogram
}

// newMetrics creates the ledger metrics, registered with reg unless reg
// is nil.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		commits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contentstore_ledger_commits_total",
			Help: "Versions written by commit, create and save",
		}, []string{"op"}),
		removals: f.NewCounter(prometheus.CounterOpts{
			Name: "contentstore_ledger_version_removals_total",
			Help: "Versions removed",
		}),
		versions: f.NewGauge(prometheus.GaugeOpts{
			Name: "contentstore_ledger_stored_versions",
			Help: "Versions stored through this ledger since start",
		}),
		commitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "contentstore_ledger_commit_duration_seconds",
			Help:    "Duration of commits including persistence",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}
}
