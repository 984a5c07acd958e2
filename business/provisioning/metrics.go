package provisioning

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioning_transitions_total",
			Help: "Count of provisioning state transitions by target state.",
		},
		[]string{"state"},
	)

	DegradedWalletsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "provisioning_degraded_wallets_total",
		Help: "Runs that reached READY without a wallet row.",
	})

	DuplicateCollapsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioning_duplicate_collapses_total",
			Help: "Inserts rejected as duplicates and treated as success, by record.",
		},
		[]string{"record"},
	)
)

func init() {
	prometheus.MustRegister(TransitionsTotal, DegradedWalletsTotal, DuplicateCollapsesTotal)
}
