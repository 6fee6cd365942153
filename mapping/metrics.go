package mapping

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters shared by all mappings in the process.
var (
	mutationCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentmap_mutations_total",
		Help: "Mutating operations applied, by operation.",
	}, []string{"op"})

	commitCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contentmap_commits_total",
		Help: "Successful writes of a mapping file.",
	})

	commitErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contentmap_commit_errors_total",
		Help: "Failed writes of a mapping file.",
	})
)
