// Package game holds the parity game model shared by every search: an
// immutable directed graph whose vertices carry a priority and an owner, with
// a distinguished start vertex.
package game

import (
	"errors"
	"fmt"
)

// Sentinel errors for building and reading games.
var (
	// ErrMalformed is returned when a game or solution can't be parsed.
	ErrMalformed = errors.New("game: malformed input")

	// ErrInconsistent is returned when a vertex or edge references an
	// identifier outside of the declared vertex set.
	ErrInconsistent = errors.New("game: inconsistent graph")

	// ErrStartNotMember is returned when a start vertex isn't part of a game or
	// of a requested subgame.
	ErrStartNotMember = errors.New("game: start vertex not in vertex set")
)

// VertexID identifies a vertex. Identifiers double as indices into the
// adjacency tables of a Game.
type VertexID uint32

// Player is one of the two players of a parity game.
type Player uint8

const (
	// Player0 owns the vertices reported by Game.Owned. Subgames are searched
	// for positions won by Player0.
	Player0 Player = 0
	// Player1 owns every other vertex.
	Player1 Player = 1
)

// String returns "0" or "1".
func (p Player) String() string {
	if p == Player0 {
		return "0"
	}
	return "1"
}

// Game is a parity game. Games are immutable once built and are safe for
// concurrent use; every transformation returns a new Game.
//
// Vertex identifiers are drawn from [0, Size()), but the vertex set may be
// sparse: a subgame realized from a parent keeps the parent's identifiers.
type Game struct {
	vertices Set
	n        int
	start    VertexID
	priority []int
	owned    Set
	outEdges [][]VertexID // Outgoing edges for a given vertex
	inEdges  [][]VertexID // Incoming edges for a given vertex
}

// Size returns the size of the identifier space of g. Sets used as
// candidates for g must be created with NewSet(g.Size()).
func (g *Game) Size() int { return len(g.outEdges) }

// Len returns the number of vertices in g.
func (g *Game) Len() int { return g.n }

// Start returns the start vertex of g.
func (g *Game) Start() VertexID { return g.start }

// Has returns true if v is a vertex of g.
func (g *Game) Has(v VertexID) bool { return g.vertices.Has(v) }

// Priority returns the priority of v.
func (g *Game) Priority(v VertexID) int { return g.priority[v] }

// Owned returns true if v is owned by Player0.
func (g *Game) Owned(v VertexID) bool { return g.owned.Has(v) }

// Owner returns the player owning v.
func (g *Game) Owner(v VertexID) Player {
	if g.owned.Has(v) {
		return Player0
	}
	return Player1
}

// Out returns the targets of the outgoing edges of v in ascending order. The
// returned slice must not be modified.
func (g *Game) Out(v VertexID) []VertexID { return g.outEdges[v] }

// In returns the sources of the incoming edges of v in ascending order. The
// returned slice must not be modified.
func (g *Game) In(v VertexID) []VertexID { return g.inEdges[v] }

// Vertices returns a copy of the vertex set of g.
func (g *Game) Vertices() Set { return g.vertices.Clone() }

// OwnedSet returns a copy of the set of vertices owned by Player0.
func (g *Game) OwnedSet() Set { return g.owned.Clone() }

// EachVertex calls fn for every vertex of g in ascending order.
func (g *Game) EachVertex(fn func(v VertexID)) { g.vertices.Each(fn) }

// NumEdges returns the number of edges in g.
func (g *Game) NumEdges() int {
	var total int
	g.vertices.Each(func(v VertexID) { total += len(g.outEdges[v]) })
	return total
}

// Realize restricts g to the vertices in c. Priorities and ownership are
// carried over, and only edges with both endpoints in c are kept. The start
// vertex of g must be in c.
//
// Realize doesn't check whether c is a valid subgame.
func Realize(g *Game, c Set) (*Game, error) {
	if !c.Has(g.start) {
		return nil, fmt.Errorf("%w: realizing subgame without vertex %d", ErrStartNotMember, g.start)
	}

	members := c.Intersect(g.vertices)
	sub := &Game{
		vertices: members,
		n:        members.Len(),
		start:    g.start,
		priority: g.priority, // Priorities are never mutated; share them.
		owned:    g.owned.Intersect(members),
		outEdges: make([][]VertexID, g.Size()),
		inEdges:  make([][]VertexID, g.Size()),
	}

	members.Each(func(v VertexID) {
		sub.outEdges[v] = restrict(g.outEdges[v], members)
		sub.inEdges[v] = restrict(g.inEdges[v], members)
	})
	return sub, nil
}

func restrict(vs []VertexID, keep Set) []VertexID {
	var out []VertexID
	for _, v := range vs {
		if keep.Has(v) {
			out = append(out, v)
		}
	}
	return out
}

// Flatten renumbers g so that its vertex identifiers form the contiguous
// range [0, g.Len()). Vertices are renumbered in ascending order of their old
// identifier, which keeps a start vertex of 0 at 0.
//
// Flatten returns the new game alongside origin, where origin[v] is the
// identifier in g of vertex v of the flattened game.
func Flatten(g *Game) (flat *Game, origin []VertexID) {
	origin = g.vertices.Slice()

	renumber := make(map[VertexID]VertexID, len(origin))
	for newID, oldID := range origin {
		renumber[oldID] = VertexID(newID)
	}

	n := len(origin)
	flat = &Game{
		vertices: NewSet(n),
		n:        n,
		start:    renumber[g.start],
		priority: make([]int, n),
		owned:    NewSet(n),
		outEdges: make([][]VertexID, n),
		inEdges:  make([][]VertexID, n),
	}

	for newID, oldID := range origin {
		v := VertexID(newID)
		flat.vertices.Add(v)
		flat.priority[v] = g.priority[oldID]
		if g.owned.Has(oldID) {
			flat.owned.Add(v)
		}
		flat.outEdges[v] = renumberAll(g.outEdges[oldID], renumber)
		flat.inEdges[v] = renumberAll(g.inEdges[oldID], renumber)
	}
	return flat, origin
}

// renumberAll maps vs through renumber. Order is kept: renumbering preserves
// the relative order of identifiers.
func renumberAll(vs []VertexID, renumber map[VertexID]VertexID) []VertexID {
	if len(vs) == 0 {
		return nil
	}
	out := make([]VertexID, len(vs))
	for i, v := range vs {
		out[i] = renumber[v]
	}
	return out
}
