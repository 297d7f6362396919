package kraam

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	reachRounds   prometheus.Counter
	reachSize     prometheus.Gauge
	candidateSize prometheus.Gauge
	exported      prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		reachRounds: f.NewCounter(prometheus.CounterOpts{
			Name: "kraam_reach_rounds_total",
			Help: "Reach expansion rounds performed by sweeps.",
		}),
		reachSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "kraam_reach_size",
			Help: "Number of vertices in the current reach.",
		}),
		candidateSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "kraam_candidate_size",
			Help: "Number of vertices in the current pruned candidate.",
		}),
		exported: f.NewCounter(prometheus.CounterOpts{
			Name: "kraam_exported_subgames_total",
			Help: "Subgames written to the output directory.",
		}),
	}
}
