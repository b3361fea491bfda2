package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Genealogy metrics, served on /metrics by cmd/api
var (
	renumberDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "genealogy_renumber_duration_seconds",
		Help:    "Time to compute and write member codes",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"scope"})

	renumberChanged = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "genealogy_renumber_changed_codes",
		Help:    "Number of member codes rewritten per renumbering",
		Buckets: []float64{0, 1, 10, 100, 1000, 10000},
	})

	guardRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genealogy_guard_rejections_total",
		Help: "Parent links rejected by the consistency guard",
	}, []string{"reason"})

	kinshipQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genealogy_kinship_queries_total",
		Help: "Kinship queries by outcome",
	}, []string{"result"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genealogy_cache_lookups_total",
		Help: "Cached traversal lookups",
	}, []string{"kind", "result"})
)
