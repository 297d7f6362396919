// Package gametest provides fixtures for tests that need parity games.
package gametest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rfratto/kraam/internal/game"
)

// Edge is a directed edge between two vertices.
type Edge struct{ From, To game.VertexID }

// Spec describes a small game. Vertex v gets priority v unless Priorities is
// set, which makes every vertex recognizable after a Flatten.
type Spec struct {
	Size       int
	Start      game.VertexID
	Owned      []game.VertexID
	Edges      []Edge
	Priorities []int
}

// Build builds the game described by s and fails the test on error.
func Build(t testing.TB, s Spec) *game.Game {
	t.Helper()

	owned := make(map[game.VertexID]bool, len(s.Owned))
	for _, v := range s.Owned {
		owned[v] = true
	}

	b := game.NewBuilder(s.Size)
	for i := 0; i < s.Size; i++ {
		v := game.VertexID(i)
		prio := i
		if s.Priorities != nil {
			prio = s.Priorities[i]
		}
		owner := game.Player1
		if owned[v] {
			owner = game.Player0
		}
		require.NoError(t, b.AddVertex(v, prio, owner))
	}
	for _, e := range s.Edges {
		require.NoError(t, b.AddEdge(e.From, e.To))
	}
	b.SetStart(s.Start)

	g, err := b.Build()
	require.NoError(t, err)
	return g
}

// Example returns the four-vertex game used throughout the tests: start 0,
// vertices 0 and 2 owned by Player0, and edges 0->1, 1->2, 2->3, 3->0, 1->3.
func Example(t testing.TB) *game.Game {
	return Build(t, Spec{
		Size:  4,
		Start: 0,
		Owned: []game.VertexID{0, 2},
		Edges: []Edge{{0, 1}, {1, 2}, {2, 3}, {3, 0}, {1, 3}},
	})
}

// Random returns a pseudo-random game with n vertices where every vertex has
// between 1 and maxOut successors. Half of the vertices are owned by Player0
// on average. Vertex v has priority v.
func Random(t testing.TB, rng *rand.Rand, n, maxOut int) *game.Game {
	t.Helper()

	s := Spec{Size: n}
	for i := 0; i < n; i++ {
		v := game.VertexID(i)
		if rng.Intn(2) == 0 {
			s.Owned = append(s.Owned, v)
		}
		for j := 0; j < 1+rng.Intn(maxOut); j++ {
			s.Edges = append(s.Edges, Edge{From: v, To: game.VertexID(rng.Intn(n))})
		}
	}
	return Build(t, s)
}

// RandomSet returns a pseudo-random subset of the vertices of g which always
// holds the start vertex.
func RandomSet(rng *rand.Rand, g *game.Game) game.Set {
	s := game.NewSet(g.Size(), g.Start())
	g.EachVertex(func(v game.VertexID) {
		if rng.Intn(3) != 0 {
			s.Add(v)
		}
	})
	return s
}

// Set returns a set over the identifier space of g.
func Set(g *game.Game, vs ...game.VertexID) game.Set {
	return game.NewSet(g.Size(), vs...)
}
