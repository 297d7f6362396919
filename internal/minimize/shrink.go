package minimize

import (
	"context"

	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/stat/combin"

	"github.com/rfratto/kraam/internal/game"
	"github.com/rfratto/kraam/internal/oracle"
)

// Shrink starts from the dominion of the full game and repeatedly looks for
// a winning subgame with fewer vertices than the current best dominion.
//
// With a best dominion of size k, Shrink tries every combination of k-2
// vertices drawn from all non-start vertices of the game, plus the start
// vertex, prunes it and asks the oracle. Combinations are generated lazily
// in lexicographic order.
// The dominion of the first winner becomes the new best and the enumeration
// restarts at the new size. The search stops after an enumeration which
// found no winner. Each enumeration is combinatorial in the number of
// vertices of the game.
type Shrink struct {
	searcher
}

var _ Strategy = (*Shrink)(nil)

// NewShrink creates a new Shrink strategy.
func NewShrink(o oracle.Oracle, opts Options) *Shrink {
	return &Shrink{searcher: newSearcher(KindShrink, o, opts)}
}

// Search implements Strategy.
func (s *Shrink) Search(ctx context.Context, g *game.Game) (*Result, error) {
	s.reset(g)

	full := g.Vertices()
	v, err := s.evaluate(ctx, full)
	if err != nil {
		return nil, err
	} else if !v.wins {
		return s.notFound(), nil
	}

	var (
		best         = full
		bestDominion = v.dominion
		pool         = s.removable(full)
		checked      = map[string]struct{}{}
	)
	s.record(bestDominion.Len())

	for round := 1; ; round++ {
		k := bestDominion.Len()
		level.Debug(s.log).Log("msg", "enumerating candidates", "round", round, "size", k-1)

		var (
			found    bool
			foundSet game.Set
			foundDom game.Set
			evalErr  error
		)
		if k-2 < 0 || k-2 > len(pool) {
			break
		}
		gen := combin.NewCombinationGenerator(len(pool), k-2)
		idx := make([]int, k-2)
		for !found && gen.Next() {
			if evalErr = ctx.Err(); evalErr != nil {
				break
			}

			c := game.NewSet(g.Size(), g.Start())
			for _, i := range gen.Combination(idx) {
				c.Add(pool[i])
			}
			c = s.opts.Prune(g, c)
			if s.trivial(c) {
				continue
			}
			key := c.Key()
			if _, seen := checked[key]; seen {
				s.metrics.candidates.WithLabelValues(outcomeSeen).Inc()
				continue
			}
			checked[key] = struct{}{}

			var v verdict
			v, evalErr = s.evaluate(ctx, c)
			if evalErr != nil {
				break
			}
			if v.wins {
				found, foundSet, foundDom = true, c, v.dominion
			}
		}
		if evalErr != nil {
			return nil, evalErr
		}
		if !found {
			break
		}

		// The candidate has at most k-1 vertices, so its dominion is strictly
		// smaller than the previous best.
		best, bestDominion = foundSet, foundDom
		s.record(bestDominion.Len())
		level.Info(s.log).Log("msg", "found smaller subgame", "round", round, "size", bestDominion.Len())
	}

	level.Info(s.log).Log("msg", "search finished", "size", bestDominion.Len(), "evaluated", s.evaluated)
	return s.result(best, bestDominion), nil
}
