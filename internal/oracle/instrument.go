package oracle

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rfratto/kraam/internal/game"
)

type instrumented struct {
	inner    Oracle
	calls    *prometheus.CounterVec
	duration prometheus.Histogram
	size     prometheus.Histogram
}

// Instrument wraps o so that every call is recorded in metrics registered
// against reg. A nil reg creates unregistered metrics.
func Instrument(o Oracle, reg prometheus.Registerer) Oracle {
	f := promauto.With(reg)
	return &instrumented{
		inner: o,
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kraam_oracle_calls_total",
			Help: "Total number of oracle calls, by outcome.",
		}, []string{"outcome"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kraam_oracle_duration_seconds",
			Help:    "Time spent waiting on the oracle.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		size: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kraam_oracle_game_vertices",
			Help:    "Number of vertices of the games handed to the oracle.",
			Buckets: prometheus.ExponentialBuckets(2, 2, 16),
		}),
	}
}

func (i *instrumented) Solve(ctx context.Context, g *game.Game) (*Result, error) {
	start := time.Now()
	res, err := i.inner.Solve(ctx, g)
	i.duration.Observe(time.Since(start).Seconds())
	i.size.Observe(float64(g.Len()))

	switch {
	case err != nil:
		i.calls.WithLabelValues("error").Inc()
	case res.Wins():
		i.calls.WithLabelValues("won").Inc()
	default:
		i.calls.WithLabelValues("lost").Inc()
	}
	return res, err
}
