package minimize

import (
	"context"

	"github.com/go-kit/log/level"

	"github.com/rfratto/kraam/internal/game"
	"github.com/rfratto/kraam/internal/oracle"
)

// Exhaustive visits every winning subgame reachable from the full game
// through the neighbor relation, depth first, and reports the smallest one.
// It is exponential in the worst case.
type Exhaustive struct {
	searcher
}

var _ Strategy = (*Exhaustive)(nil)

// NewExhaustive creates a new Exhaustive strategy.
func NewExhaustive(o oracle.Oracle, opts Options) *Exhaustive {
	return &Exhaustive{searcher: newSearcher(KindExhaustive, o, opts)}
}

// Search implements Strategy.
func (s *Exhaustive) Search(ctx context.Context, g *game.Game) (*Result, error) {
	s.reset(g)

	full := g.Vertices()
	v, err := s.evaluate(ctx, full)
	if err != nil {
		return nil, err
	} else if !v.wins {
		return s.notFound(), nil
	}

	var (
		// checked holds every candidate evaluated so far, winning or not.
		checked = map[string]struct{}{full.Key(): {}}
		stack   = []game.Set{full}

		best         = full
		bestDominion = v.dominion
	)
	s.record(best.Len())

	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		level.Debug(s.log).Log("msg", "expanding candidate", "size", c.Len(), "stack", len(stack), "checked", len(checked))

		for _, rm := range s.removable(c) {
			next := s.neighbor(c, rm)
			if s.trivial(next) {
				continue
			}
			key := next.Key()
			if _, seen := checked[key]; seen {
				s.metrics.candidates.WithLabelValues(outcomeSeen).Inc()
				continue
			}

			v, err := s.evaluate(ctx, next)
			if err != nil {
				return nil, err
			}
			checked[key] = struct{}{}
			if !v.wins {
				continue
			}

			stack = append(stack, next)
			if next.Len() < best.Len() {
				best, bestDominion = next, v.dominion
				s.record(best.Len())
				level.Info(s.log).Log("msg", "found smaller subgame", "size", best.Len())
			}
		}
	}

	level.Info(s.log).Log("msg", "search finished", "size", best.Len(), "dominion", bestDominion.Len(), "evaluated", s.evaluated)
	return s.result(best, bestDominion), nil
}
