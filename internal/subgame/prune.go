package subgame

import "github.com/rfratto/kraam/internal/game"

// PruneFunc reduces a candidate of g to the largest valid subgame it
// contains. PruneFuncs never modify c.
type PruneFunc func(g *game.Game, c game.Set) game.Set

// Prune removes rule-breaking vertices from c until none are left, rescanning
// the whole candidate every round. The result is empty when the start vertex
// of g doesn't survive.
func Prune(g *game.Game, c game.Set) game.Set {
	result := c.Clone()

	for p := FindProblems(g, result); !p.Empty(); p = FindProblems(g, result) {
		result.RemoveAll(p.Offenders(g))
	}

	if !result.Has(g.Start()) {
		return game.NewSet(g.Size())
	}
	return result
}

// PruneIncremental computes the same fixpoint as Prune, but after the first
// round only rescans the vertices with an edge into a vertex removed in the
// previous round: removing a vertex can't create violations anywhere else.
// It stops early with an empty result as soon as the start vertex has to go.
func PruneIncremental(g *game.Game, c game.Set) game.Set {
	var (
		start  = g.Start()
		empty  = game.NewSet(g.Size())
		result = c.Clone()
	)
	if !result.Has(start) {
		return empty
	}

	p := FindProblems(g, result)
	for !p.Empty() {
		targets := p.Offenders(g)
		if targets.Has(start) {
			return empty
		}
		result.RemoveAll(targets)

		exposed := game.NewSet(g.Size())
		targets.Each(func(v game.VertexID) {
			for _, from := range g.In(v) {
				exposed.Add(from)
			}
		})
		p = FindProblemsOn(g, result, exposed)
	}

	return result
}
