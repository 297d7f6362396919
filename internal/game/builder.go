package game

import (
	"fmt"
	"sort"
)

// Builder builds a Game. Vertices must be added before the edges that
// reference them. A Builder must not be used after Build is called.
type Builder struct {
	size     int
	defined  Set
	start    VertexID
	priority []int
	owned    Set
	outEdges [][]VertexID
}

// NewBuilder returns a Builder for a game whose identifiers are drawn from
// [0, size). The start vertex defaults to 0.
func NewBuilder(size int) *Builder {
	return &Builder{
		size:     size,
		defined:  NewSet(size),
		priority: make([]int, size),
		owned:    NewSet(size),
		outEdges: make([][]VertexID, size),
	}
}

// AddVertex adds v with the given priority and owner. Adding a vertex twice
// is an error.
func (b *Builder) AddVertex(v VertexID, priority int, owner Player) error {
	if int(v) >= b.size {
		return fmt.Errorf("%w: vertex %d outside of declared range [0, %d)", ErrInconsistent, v, b.size)
	}
	if b.defined.Has(v) {
		return fmt.Errorf("%w: vertex %d defined twice", ErrMalformed, v)
	}
	if priority < 0 {
		return fmt.Errorf("%w: vertex %d has negative priority %d", ErrMalformed, v, priority)
	}

	b.defined.Add(v)
	b.priority[v] = priority
	if owner == Player0 {
		b.owned.Add(v)
	}
	return nil
}

// AddEdge adds an edge from -> to. AddEdge is a no-op if the edge already
// exists. Both vertices must have been added.
func (b *Builder) AddEdge(from, to VertexID) error {
	if !b.defined.Has(from) || !b.defined.Has(to) {
		return fmt.Errorf("%w: edge %d -> %d references an undefined vertex", ErrInconsistent, from, to)
	}
	b.outEdges[from] = append(b.outEdges[from], to)
	return nil
}

// SetStart sets the start vertex of the game.
func (b *Builder) SetStart(v VertexID) { b.start = v }

// Build validates the game and returns it.
func (b *Builder) Build() (*Game, error) {
	if !b.defined.Has(b.start) {
		return nil, fmt.Errorf("%w: start vertex %d", ErrStartNotMember, b.start)
	}

	g := &Game{
		vertices: b.defined,
		n:        b.defined.Len(),
		start:    b.start,
		priority: b.priority,
		owned:    b.owned,
		outEdges: make([][]VertexID, b.size),
		inEdges:  make([][]VertexID, b.size),
	}

	b.defined.Each(func(v VertexID) {
		g.outEdges[v] = dedupe(b.outEdges[v])
	})
	b.defined.Each(func(v VertexID) {
		for _, to := range g.outEdges[v] {
			// Appending in ascending order of v keeps inEdges sorted.
			g.inEdges[to] = append(g.inEdges[to], v)
		}
	})

	return g, nil
}

// dedupe sorts vs and removes duplicates in place.
func dedupe(vs []VertexID) []VertexID {
	if len(vs) == 0 {
		return nil
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })

	out := vs[:1]
	for _, v := range vs[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
