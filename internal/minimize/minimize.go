// Package minimize searches a parity game for a small subgame which is still
// won by Player0 from the start vertex.
//
// All strategies explore the same neighbor relation: a candidate C has one
// neighbor prune(C - {v}) for every vertex v in C other than the start
// vertex. They differ in the order neighbors are visited and how much of the
// visited lattice is remembered.
package minimize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rfratto/kraam/internal/game"
	"github.com/rfratto/kraam/internal/oracle"
	"github.com/rfratto/kraam/internal/subgame"
)

// ErrUnknownStrategy is returned by New for an unrecognized strategy name.
var ErrUnknownStrategy = errors.New("unknown search strategy")

// DefaultBeamWidth is the number of candidates LocalOptimum expands per round
// when Options.BeamWidth is unset.
const DefaultBeamWidth = 10

// Strategy names accepted by New.
const (
	KindExhaustive = "exhaustive"
	KindShrink     = "shrink"
	KindLocal      = "local"
)

// Kinds returns the strategy names accepted by New.
func Kinds() []string { return []string{KindExhaustive, KindShrink, KindLocal} }

// Result is the outcome of a search. Candidates and dominions are expressed
// in the identifiers of the searched game.
type Result struct {
	// Found is false when Player0 doesn't win the full game, in which case no
	// subgame can be winning either and the other fields are empty.
	Found bool

	// Best is the best candidate subgame found.
	Best game.Set
	// Dominion is the Player0 dominion of Best. It is itself a valid subgame
	// and is never larger than Best.
	Dominion game.Set

	// History holds the best recorded size after the initial evaluation and
	// after every round which improved it.
	History []int

	// Evaluated is the number of candidates handed to the oracle.
	Evaluated int
}

// Strategy is a subgame search strategy.
type Strategy interface {
	// Search looks for a small winning subgame of g. Search returns an error
	// when ctx is canceled or when the oracle fails and failures aren't
	// skipped.
	Search(ctx context.Context, g *game.Game) (*Result, error)
}

// Options configures a Strategy.
type Options struct {
	Logger     log.Logger
	Registerer prometheus.Registerer

	// Prune reduces candidates to valid subgames. Defaults to
	// subgame.PruneIncremental.
	Prune subgame.PruneFunc

	// BeamWidth is used by LocalOptimum. Defaults to DefaultBeamWidth.
	BeamWidth int

	// SkipOracleErrors treats a candidate the oracle failed on as not
	// winning instead of aborting the search.
	SkipOracleErrors bool
}

// New creates the Strategy called kind.
func New(kind string, o oracle.Oracle, opts Options) (Strategy, error) {
	switch strings.ToLower(kind) {
	case KindExhaustive:
		return NewExhaustive(o, opts), nil
	case KindShrink:
		return NewShrink(o, opts), nil
	case KindLocal:
		return NewLocalOptimum(o, opts), nil
	default:
		return nil, fmt.Errorf("%w %q: available strategies are %s", ErrUnknownStrategy, kind, strings.Join(Kinds(), ", "))
	}
}

type metrics struct {
	candidates *prometheus.CounterVec
	bestSize   prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer, strategy string) *metrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"strategy": strategy}
	return &metrics{
		candidates: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "kraam_search_candidates_total",
			Help:        "Candidates produced by the search, by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		bestSize: f.NewGauge(prometheus.GaugeOpts{
			Name:        "kraam_search_best_size",
			Help:        "Size of the best subgame found so far.",
			ConstLabels: labels,
		}),
	}
}

// Candidate outcomes.
const (
	outcomeTrivial = "trivial"
	outcomeSeen    = "seen"
	outcomeWon     = "won"
	outcomeLost    = "lost"
	outcomeFailed  = "failed"
)

// searcher holds the state shared by all strategies.
type searcher struct {
	g       *game.Game
	oracle  oracle.Oracle
	opts    Options
	log     log.Logger
	metrics *metrics

	evaluated int
	history   []int
}

func newSearcher(name string, o oracle.Oracle, opts Options) searcher {
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	if opts.Prune == nil {
		opts.Prune = subgame.PruneIncremental
	}
	if opts.BeamWidth <= 0 {
		opts.BeamWidth = DefaultBeamWidth
	}
	return searcher{
		oracle:  o,
		opts:    opts,
		log:     log.With(opts.Logger, "component", "search", "strategy", name),
		metrics: newMetrics(opts.Registerer, name),
	}
}

// reset prepares the searcher for a search over g.
func (s *searcher) reset(g *game.Game) {
	s.g = g
	s.evaluated = 0
	s.history = nil
}

// neighbor returns prune(c - {v}).
func (s *searcher) neighbor(c game.Set, v game.VertexID) game.Set {
	return s.opts.Prune(s.g, c.Without(v))
}

// trivial reports whether c is too small to be worth evaluating. This
// covers the empty set returned when pruning loses the start vertex.
func (s *searcher) trivial(c game.Set) bool {
	if c.Len() < 2 {
		s.metrics.candidates.WithLabelValues(outcomeTrivial).Inc()
		return true
	}
	return false
}

// verdict is the oracle's answer for a candidate.
type verdict struct {
	wins     bool
	dominion game.Set
}

// evaluate asks the oracle whether Player0 wins the subgame induced by c.
// The dominion is computed on the solved subgame and mapped back to the
// identifiers of the searched game.
func (s *searcher) evaluate(ctx context.Context, c game.Set) (verdict, error) {
	if err := ctx.Err(); err != nil {
		return verdict{}, err
	}

	v, err := s.solve(ctx, c)
	switch {
	case err == nil:
		if v.wins {
			s.metrics.candidates.WithLabelValues(outcomeWon).Inc()
		} else {
			s.metrics.candidates.WithLabelValues(outcomeLost).Inc()
		}
		return v, nil

	case s.opts.SkipOracleErrors && errors.Is(err, oracle.ErrOracle) && ctx.Err() == nil:
		s.metrics.candidates.WithLabelValues(outcomeFailed).Inc()
		level.Warn(s.log).Log("msg", "skipping candidate the oracle failed on", "size", c.Len(), "err", err)
		return verdict{}, nil

	default:
		s.metrics.candidates.WithLabelValues(outcomeFailed).Inc()
		return verdict{}, err
	}
}

func (s *searcher) solve(ctx context.Context, c game.Set) (verdict, error) {
	sub, err := game.Realize(s.g, c)
	if err != nil {
		return verdict{}, err
	}
	flat, origin := game.Flatten(sub)

	s.evaluated++
	res, err := s.oracle.Solve(ctx, flat)
	if err != nil {
		return verdict{}, err
	}
	if !res.Wins() {
		return verdict{}, nil
	}

	var strategy game.Strategy
	if res.Solution != nil {
		strategy = res.Solution.Strategy
	}
	flatDominion, err := game.Dominion(flat, strategy)
	if err != nil {
		return verdict{}, fmt.Errorf("%w: %w", oracle.ErrOracle, err)
	}

	dominion := game.NewSet(s.g.Size())
	flatDominion.Each(func(v game.VertexID) { dominion.Add(origin[v]) })
	return verdict{wins: true, dominion: dominion}, nil
}

// record appends size to the history of best sizes.
func (s *searcher) record(size int) {
	s.history = append(s.history, size)
	s.metrics.bestSize.Set(float64(size))
}

func (s *searcher) result(best, dominion game.Set) *Result {
	return &Result{
		Found:     true,
		Best:      best,
		Dominion:  dominion,
		History:   s.history,
		Evaluated: s.evaluated,
	}
}

// notFound is returned when Player0 loses the full game.
func (s *searcher) notFound() *Result {
	level.Info(s.log).Log("msg", "player 0 does not win the full game, nothing to minimize")
	return &Result{Evaluated: s.evaluated}
}

// removable returns the vertices of c which neighbors are built from, in
// ascending order.
func (s *searcher) removable(c game.Set) []game.VertexID {
	vs := c.Slice()
	out := vs[:0]
	for _, v := range vs {
		if v != s.g.Start() {
			out = append(out, v)
		}
	}
	return out
}
