package minimize

import (
	"context"
	"sort"

	"github.com/go-kit/log/level"

	"github.com/rfratto/kraam/internal/game"
	"github.com/rfratto/kraam/internal/oracle"
)

// LocalOptimum is a bounded beam search over the neighbor relation. Every
// winning candidate is scored by the size of its dominion. Each round
// expands only the BeamWidth best-scored candidates which haven't been
// expanded yet, and the search stops after a round which didn't improve the
// best score.
type LocalOptimum struct {
	searcher
}

var _ Strategy = (*LocalOptimum)(nil)

// NewLocalOptimum creates a new LocalOptimum strategy.
func NewLocalOptimum(o oracle.Oracle, opts Options) *LocalOptimum {
	return &LocalOptimum{searcher: newSearcher(KindLocal, o, opts)}
}

type scored struct {
	set      game.Set
	dominion game.Set
	order    int // insertion order, for stable tie-breaks
}

func (c *scored) score() int { return c.dominion.Len() }

// Search implements Strategy.
func (s *LocalOptimum) Search(ctx context.Context, g *game.Game) (*Result, error) {
	s.reset(g)

	full := g.Vertices()
	v, err := s.evaluate(ctx, full)
	if err != nil {
		return nil, err
	} else if !v.wins {
		return s.notFound(), nil
	}

	var (
		recorded = map[string]*scored{}
		rejected = map[string]struct{}{}
		frontier []*scored
		best     *scored
	)
	add := func(c game.Set, dominion game.Set) {
		sc := &scored{set: c, dominion: dominion, order: len(recorded)}
		recorded[c.Key()] = sc
		frontier = append(frontier, sc)
		if best == nil || sc.score() < best.score() {
			best = sc
		}
	}
	add(full, v.dominion)
	s.record(best.score())

	for round := 1; len(frontier) > 0; round++ {
		lastBest := best.score()

		sort.Slice(frontier, func(i, j int) bool {
			if frontier[i].score() != frontier[j].score() {
				return frontier[i].score() < frontier[j].score()
			}
			return frontier[i].order < frontier[j].order
		})
		beam := frontier
		if len(beam) > s.opts.BeamWidth {
			beam = beam[:s.opts.BeamWidth]
		}
		// Candidates outside the beam are dropped from the frontier: they
		// count as expanded even though they weren't.
		frontier = nil

		level.Debug(s.log).Log("msg", "expanding beam", "round", round, "beam", len(beam), "recorded", len(recorded), "best", lastBest)

		for _, c := range beam {
			for _, rm := range s.removable(c.set) {
				next := s.neighbor(c.set, rm)
				if s.trivial(next) {
					continue
				}
				key := next.Key()
				_, seen := recorded[key]
				if _, lost := rejected[key]; seen || lost {
					s.metrics.candidates.WithLabelValues(outcomeSeen).Inc()
					continue
				}

				v, err := s.evaluate(ctx, next)
				if err != nil {
					return nil, err
				}
				if v.wins {
					add(next, v.dominion)
				} else {
					rejected[key] = struct{}{}
				}
			}
		}

		if best.score() >= lastBest {
			break
		}
		s.record(best.score())
		level.Info(s.log).Log("msg", "improved best subgame", "round", round, "size", best.score())
	}

	level.Info(s.log).Log("msg", "search finished", "size", best.score(), "evaluated", s.evaluated)
	return s.result(best.set, best.dominion), nil
}
