package page

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "streams",
		Subsystem: "page",
		Name:      "resolve_rounds",
		Help:      "Number of fetch rounds needed to resolve one page.",
		Buckets:   []float64{1, 2, 3, 4, 6, 8, 12},
	})

	fetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "streams",
		Subsystem: "page",
		Name:      "fetched_ids_total",
		Help:      "Ids returned by ordered sources.",
	})

	trimmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "streams",
		Subsystem: "page",
		Name:      "trimmed_ids_total",
		Help:      "Ids rejected by visibility trimming.",
	})
)
