// Package subgame decides whether a candidate vertex set of a game forms a
// valid subgame, and prunes candidates down to the largest valid subgame they
// contain.
//
// A candidate C is a valid subgame when:
//
//  1. no vertex of C owned by Player1 has an edge leaving C, and
//  2. every vertex of C owned by Player0 has at least one edge staying in C.
package subgame

import (
	"errors"
	"fmt"

	"github.com/rfratto/kraam/internal/game"
)

// Sentinel errors returned by Validate.
var (
	// ErrEscape is returned when a Player1 vertex can leave the candidate.
	ErrEscape = errors.New("subgame: opponent vertex escapes the candidate")

	// ErrStuck is returned when a Player0 vertex has no edge inside the
	// candidate.
	ErrStuck = errors.New("subgame: owned vertex has no internal edge")
)

// Problems lists the vertices of a candidate that break the subgame rules.
type Problems struct {
	// Escapes maps every Player1 vertex with an edge leaving the candidate to
	// the external vertices it reaches directly.
	Escapes map[game.VertexID][]game.VertexID

	// Stuck holds the Player0 vertices without an edge inside the candidate.
	Stuck []game.VertexID
}

// Empty returns true if no rule is broken.
func (p Problems) Empty() bool { return len(p.Escapes) == 0 && len(p.Stuck) == 0 }

// Offenders returns every vertex that breaks a rule as a set over the
// identifier space of g.
func (p Problems) Offenders(g *game.Game) game.Set {
	s := game.NewSet(g.Size(), p.Stuck...)
	for v := range p.Escapes {
		s.Add(v)
	}
	return s
}

// FindProblems scans every vertex of c for rule violations.
func FindProblems(g *game.Game, c game.Set) Problems {
	var p Problems
	c.Each(func(v game.VertexID) { check(g, c, v, &p) })
	return p
}

// FindProblemsOn is FindProblems restricted to the vertices of c that are
// also in relevant.
func FindProblemsOn(g *game.Game, c, relevant game.Set) Problems {
	var p Problems
	c.Intersect(relevant).Each(func(v game.VertexID) { check(g, c, v, &p) })
	return p
}

// check records the violations of v in p.
func check(g *game.Game, c game.Set, v game.VertexID, p *Problems) {
	if !g.Owned(v) {
		var escapes []game.VertexID
		for _, to := range g.Out(v) {
			if !c.Has(to) {
				escapes = append(escapes, to)
			}
		}
		if len(escapes) > 0 {
			if p.Escapes == nil {
				p.Escapes = make(map[game.VertexID][]game.VertexID)
			}
			p.Escapes[v] = escapes
		}
		return
	}

	for _, to := range g.Out(v) {
		if c.Has(to) {
			return
		}
	}
	p.Stuck = append(p.Stuck, v)
}

// IsValid returns true if c is a valid subgame of g.
func IsValid(g *game.Game, c game.Set) bool {
	return FindProblems(g, c).Empty()
}

// Validate returns nil if c is a valid subgame of g. Otherwise it describes
// the violation of the lowest offending vertex, wrapping ErrEscape or
// ErrStuck.
func Validate(g *game.Game, c game.Set) error {
	p := FindProblems(g, c)
	if p.Empty() {
		return nil
	}

	v := p.Offenders(g).Slice()[0]
	if escapes, ok := p.Escapes[v]; ok {
		return fmt.Errorf("%w: vertex %d reaches %v", ErrEscape, v, escapes)
	}
	return fmt.Errorf("%w: vertex %d", ErrStuck, v)
}
