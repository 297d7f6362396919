package game_test

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfratto/kraam/internal/game"
	"github.com/rfratto/kraam/internal/game/gametest"
)

func TestBuilder(t *testing.T) {
	g := gametest.Example(t)

	assert.Equal(t, 4, g.Len())
	assert.Equal(t, 4, g.Size())
	assert.Equal(t, 5, g.NumEdges())
	assert.Equal(t, game.VertexID(0), g.Start())
	assert.True(t, g.Owned(0))
	assert.False(t, g.Owned(1))
	assert.Equal(t, game.Player1, g.Owner(3))
	assert.Equal(t, []game.VertexID{2, 3}, g.Out(1))
	assert.Equal(t, []game.VertexID{1, 2}, g.In(3))
	assert.Equal(t, 2, g.Priority(2))
}

func TestBuilder_Errors(t *testing.T) {
	t.Run("vertex out of range", func(t *testing.T) {
		b := game.NewBuilder(2)
		require.ErrorIs(t, b.AddVertex(2, 0, game.Player0), game.ErrInconsistent)
	})

	t.Run("duplicate vertex", func(t *testing.T) {
		b := game.NewBuilder(2)
		require.NoError(t, b.AddVertex(0, 0, game.Player0))
		require.ErrorIs(t, b.AddVertex(0, 1, game.Player0), game.ErrMalformed)
	})

	t.Run("edge to undefined vertex", func(t *testing.T) {
		b := game.NewBuilder(3)
		require.NoError(t, b.AddVertex(0, 0, game.Player0))
		require.ErrorIs(t, b.AddEdge(0, 2), game.ErrInconsistent)
	})

	t.Run("start not defined", func(t *testing.T) {
		b := game.NewBuilder(3)
		require.NoError(t, b.AddVertex(0, 0, game.Player0))
		b.SetStart(1)
		_, err := b.Build()
		require.ErrorIs(t, err, game.ErrStartNotMember)
	})
}

func TestBuilder_DuplicateEdges(t *testing.T) {
	g := gametest.Build(t, gametest.Spec{
		Size:  2,
		Edges: []gametest.Edge{{From: 0, To: 1}, {From: 0, To: 1}, {From: 1, To: 0}, {From: 0, To: 0}},
	})
	assert.Equal(t, []game.VertexID{0, 1}, g.Out(0))
	assert.Equal(t, []game.VertexID{0, 1}, g.In(0))
	assert.Equal(t, 3, g.NumEdges())
}

func TestRealize(t *testing.T) {
	g := gametest.Example(t)

	sub, err := game.Realize(g, gametest.Set(g, 0, 1, 3))
	require.NoError(t, err)

	assert.Equal(t, 3, sub.Len())
	assert.Equal(t, g.Size(), sub.Size())
	assert.False(t, sub.Has(2))
	assert.Equal(t, []game.VertexID{3}, sub.Out(1))
	assert.Equal(t, []game.VertexID{1}, sub.In(3))
	assert.True(t, sub.Owned(0))
	assert.False(t, sub.Owned(2))

	// The parent is left untouched.
	assert.Equal(t, []game.VertexID{2, 3}, g.Out(1))
}

func TestRealize_RequiresStart(t *testing.T) {
	g := gametest.Example(t)
	_, err := game.Realize(g, gametest.Set(g, 1, 2))
	require.ErrorIs(t, err, game.ErrStartNotMember)
}

func TestFlatten(t *testing.T) {
	tt := []struct {
		name      string
		start     game.VertexID
		keep      []game.VertexID
		wantStart game.VertexID
	}{
		{name: "start at zero", start: 0, keep: []game.VertexID{0, 3, 5}, wantStart: 0},
		{name: "start elsewhere", start: 5, keep: []game.VertexID{2, 3, 5}, wantStart: 2},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			g := gametest.Build(t, gametest.Spec{
				Size:  6,
				Start: tc.start,
				Owned: []game.VertexID{0, 2, 4},
				Edges: []gametest.Edge{{From: 0, To: 3}, {From: 3, To: 5}, {From: 5, To: 0}, {From: 2, To: 3}, {From: 5, To: 2}, {From: 3, To: 1}},
			})
			sub, err := game.Realize(g, gametest.Set(g, tc.keep...))
			require.NoError(t, err)

			flat, origin := game.Flatten(sub)
			require.Equal(t, len(tc.keep), flat.Len())
			require.Equal(t, flat.Len(), flat.Size())
			assert.Equal(t, tc.wantStart, flat.Start())
			assert.Equal(t, tc.keep, origin)

			// The renumbering is an isomorphism.
			flat.EachVertex(func(v game.VertexID) {
				old := origin[v]
				assert.Equal(t, sub.Priority(old), flat.Priority(v))
				assert.Equal(t, sub.Owned(old), flat.Owned(v))

				var out, in []game.VertexID
				for _, to := range flat.Out(v) {
					out = append(out, origin[to])
				}
				for _, from := range flat.In(v) {
					in = append(in, origin[from])
				}
				assert.Empty(t, cmp.Diff(sub.Out(old), out), "out edges of %d", v)
				assert.Empty(t, cmp.Diff(sub.In(old), in), "in edges of %d", v)
			})
		})
	}
}

func TestWalk(t *testing.T) {
	g := gametest.Build(t, gametest.Spec{
		Size:  5,
		Edges: []gametest.Edge{{From: 0, To: 1}, {From: 1, To: 2}, {From: 2, To: 0}, {From: 3, To: 4}, {From: 4, To: 2}},
	})

	assert.Equal(t, "{0 1 2}", game.Reachable(g, 0).String())
	assert.Equal(t, "{0 1 2 3 4}", game.Reachable(g, 3).String())

	var visited []game.VertexID
	err := game.Walk(g, []game.VertexID{2}, g.In, func(v game.VertexID) error {
		visited = append(visited, v)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []game.VertexID{0, 1, 2, 3, 4}, visited)
}

func TestSet(t *testing.T) {
	a := game.NewSet(70, 1, 2, 65)
	b := game.NewSet(70, 2, 3)

	assert.Equal(t, 3, a.Len())
	assert.Equal(t, "{1 2 3 65}", a.Union(b).String())
	assert.Equal(t, "{2}", a.Intersect(b).String())
	assert.Equal(t, "{1 65}", a.Difference(b).String())
	assert.True(t, game.NewSet(70, 2).SubsetOf(a))
	assert.False(t, b.SubsetOf(a))

	c := a.Without(65)
	assert.True(t, a.Has(65))
	assert.False(t, c.Has(65))

	assert.Equal(t, a.Key(), game.NewSet(70, 65, 2, 1).Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.True(t, a.Equal(game.NewSet(70, 1, 2, 65)))

	a.RemoveAll(b)
	assert.Equal(t, "{1 65}", a.String())
	a.AddAll(b)
	assert.Equal(t, "{1 2 3 65}", a.String())

	assert.Panics(t, func() { a.Add(70) })
}

func TestSet_KeyDistinguishesSets(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	seen := make(map[string]string)
	for i := 0; i < 500; i++ {
		s := game.NewSet(40)
		for j := 0; j < 40; j++ {
			if rng.Intn(2) == 0 {
				s.Add(game.VertexID(j))
			}
		}
		if prev, ok := seen[s.Key()]; ok {
			require.Equal(t, prev, s.String())
		}
		seen[s.Key()] = s.String()
	}
}

func TestMarshalDOT(t *testing.T) {
	dot := string(game.MarshalDOT(gametest.Example(t)))

	assert.True(t, strings.HasPrefix(dot, "digraph {"))
	assert.Contains(t, dot, `0 [label="0:0" shape=diamond peripheries=2]`)
	assert.Contains(t, dot, `1 [label="1:1" shape=box peripheries=1]`)
	assert.Contains(t, dot, "1 -> 3")
}
