package game

// WalkFunc is the type of function called by Walk to visit a specific vertex
// of a Game.
//
// Walk will abort if a WalkFunc returns an error.
type WalkFunc func(v VertexID) error

// NextFunc returns the vertices a walk continues with after visiting v.
// Game.Out and Game.In are both NextFuncs.
type NextFunc func(v VertexID) []VertexID

// Walk performs a depth-first search from all vertices in start, following
// next. fn will be invoked for each vertex encountered. The order in which
// vertices are visited is not guaranteed.
//
// Walk does not visit vertices unreachable from start, and never visits a
// vertex twice.
func Walk(g *Game, start []VertexID, next NextFunc, fn WalkFunc) error {
	var (
		visited   = NewSet(g.Size())
		unchecked = make([]VertexID, 0, len(start))
	)

	// Pre-fill the set of vertices to check from the start list.
	unchecked = append(unchecked, start...)

	for len(unchecked) > 0 {
		check := unchecked[len(unchecked)-1]
		unchecked = unchecked[:len(unchecked)-1]

		if visited.Has(check) {
			continue
		}
		visited.Add(check)

		if err := fn(check); err != nil {
			return err
		}

		unchecked = append(unchecked, next(check)...)
	}

	return nil
}

// Reachable returns the set of vertices reachable from start by following
// outgoing edges, including start itself.
func Reachable(g *Game, start VertexID) Set {
	reached := NewSet(g.Size())
	_ = Walk(g, []VertexID{start}, g.Out, func(v VertexID) error {
		reached.Add(v)
		return nil
	})
	return reached
}
