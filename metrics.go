package blockarena

import "github.com/prometheus/client_golang/prometheus"

var AddedCount = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "blockarena",
	Subsystem: "arena",
	Name:      "added",
	Help:      "Blocks created locally",
})

var AssignCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "blockarena",
	Subsystem: "arena",
	Name:      "assign",
	Help:      "Merge assignments by outcome",
}, []string{"result"})

var UpdateCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "blockarena",
	Subsystem: "arena",
	Name:      "update",
	Help:      "Local mutations by outcome",
}, []string{"result"})

var UnpackFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "blockarena",
	Subsystem: "protocol",
	Name:      "unpack_failures",
	Help:      "Wire values that could not be reconstructed",
}, []string{"kind"})

var MergeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "blockarena",
	Subsystem: "protocol",
	Name:      "merge_duration_seconds",
	Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
})

const (
	resultApplied  = "applied"
	resultStale    = "stale"
	resultBorrowed = "borrowed"
	resultReplaced = "replaced"
	resultMismatch = "mismatch"
	resultUnknown  = "unknown"
	resultReentry  = "reentry"
)

// Collectors lists the arena metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		AddedCount,
		AssignCount,
		UpdateCount,
		UnpackFailures,
		MergeDuration,
	}
}
