// Package oracletest provides in-process oracles for tests.
package oracletest

import (
	"context"

	"github.com/rfratto/kraam/internal/game"
	"github.com/rfratto/kraam/internal/oracle"
)

// Zielonka returns an Oracle which solves games in-process with Zielonka's
// recursive algorithm. It is exponential and only meant for small games.
// Games must not have vertices without successors.
//
// Player0 wins a play when the highest priority seen infinitely often is
// even. The returned solution has a record for every vertex, with a strategy
// edge for every vertex owned by the player winning from it.
func Zielonka() oracle.Oracle {
	return oracle.Func(func(ctx context.Context, g *game.Game) (*oracle.Result, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s := solver{g: g}
		win, strategy := s.solve(g.Vertices())

		sol := &game.Solution{
			Winner:   make(map[game.VertexID]game.Player, g.Len()),
			Strategy: make(game.Strategy),
		}
		// Solvers list the start vertex first.
		sol.Order = append(sol.Order, g.Start())
		g.EachVertex(func(v game.VertexID) {
			if v != g.Start() {
				sol.Order = append(sol.Order, v)
			}
		})
		for _, v := range sol.Order {
			p := game.Player1
			if win[game.Player0].Has(v) {
				p = game.Player0
			}
			sol.Winner[v] = p
			if to, ok := strategy[p][v]; ok {
				sol.Strategy[v] = to
			}
		}

		winner, _ := sol.WinnerAt(g.Start())
		return &oracle.Result{Winner: winner, Solution: sol}, nil
	})
}

type solver struct {
	g *game.Game
}

func opponent(p game.Player) game.Player { return 1 - p }

// solve returns the winning regions and strategies of both players in the
// subgame induced by vs.
func (s solver) solve(vs game.Set) (win [2]game.Set, strategy [2]game.Strategy) {
	size := s.g.Size()
	win = [2]game.Set{game.NewSet(size), game.NewSet(size)}
	strategy = [2]game.Strategy{{}, {}}
	if vs.Empty() {
		return win, strategy
	}

	top := -1
	vs.Each(func(v game.VertexID) {
		if prio := s.g.Priority(v); prio > top {
			top = prio
		}
	})
	var (
		p    = game.Player(top % 2)
		o    = opponent(p)
		tops = game.NewSet(size)
	)
	vs.Each(func(v game.VertexID) {
		if s.g.Priority(v) == top {
			tops.Add(v)
		}
	})

	attr, attrStrategy := s.attract(vs, p, tops)
	subWin, subStrategy := s.solve(vs.Difference(attr))

	if subWin[o].Empty() {
		win[p] = vs.Clone()
		merge(strategy[p], subStrategy[p], attrStrategy)
		// From a top priority vertex p may move anywhere inside vs.
		tops.Each(func(v game.VertexID) {
			if s.g.Owner(v) != p {
				return
			}
			if to, ok := s.succIn(v, vs); ok {
				strategy[p][v] = to
			}
		})
		return win, strategy
	}

	oppAttr, oppStrategy := s.attract(vs, o, subWin[o])
	restWin, restStrategy := s.solve(vs.Difference(oppAttr))

	win[p] = restWin[p]
	merge(strategy[p], restStrategy[p])

	win[o] = restWin[o].Union(oppAttr)
	merge(strategy[o], restStrategy[o], subStrategy[o], oppStrategy)
	return win, strategy
}

// attract returns the attractor of target for player p within vs, along
// with the edges p takes to get there.
func (s solver) attract(vs game.Set, p game.Player, target game.Set) (game.Set, game.Strategy) {
	var (
		attr     = target.Intersect(vs)
		strategy = game.Strategy{}
	)

	for changed := true; changed; {
		changed = false
		vs.Difference(attr).Each(func(v game.VertexID) {
			if s.g.Owner(v) == p {
				if to, ok := s.succIn(v, attr); ok {
					attr.Add(v)
					strategy[v] = to
					changed = true
				}
				return
			}

			for _, to := range s.g.Out(v) {
				if vs.Has(to) && !attr.Has(to) {
					return
				}
			}
			attr.Add(v)
			changed = true
		})
	}
	return attr, strategy
}

// succIn returns the first successor of v inside set.
func (s solver) succIn(v game.VertexID, set game.Set) (game.VertexID, bool) {
	for _, to := range s.g.Out(v) {
		if set.Has(to) {
			return to, true
		}
	}
	return 0, false
}

func merge(dst game.Strategy, srcs ...game.Strategy) {
	for _, src := range srcs {
		for k, v := range src {
			dst[k] = v
		}
	}
}
