package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sourceCache  = "cache"
	sourceRemote = "remote"
)

var (
	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "covid",
		Name:      "dataset_loads_total",
		Help:      "Successful dataset loads by source.",
	}, []string{"source"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "covid",
		Name:      "pipeline_stage_duration_seconds",
		Help:      "Duration of pipeline stages.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"stage", "status"})

	weeklyRows = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "covid",
		Name:      "weekly_rows",
		Help:      "Rows in the most recently prepared weekly series.",
	})
)
