// Package reach grows candidate vertex sets outward from the start vertex of
// a game, one round of edge traversals at a time.
package reach

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rfratto/kraam/internal/game"
	"github.com/rfratto/kraam/internal/subgame"
)

// ErrUnknownPolicy is returned by ParsePolicy for unrecognized names.
var ErrUnknownPolicy = errors.New("reach: unknown algorithm")

// Policy selects which edges a round of expansion traverses.
type Policy int

const (
	// Forward follows outgoing edges.
	Forward Policy = iota
	// Bidirectional follows outgoing and incoming edges.
	Bidirectional
	// Reverse follows incoming edges.
	Reverse
)

var policyNames = map[Policy]string{
	Forward:       "SDSI",
	Bidirectional: "SDSI-BI",
	Reverse:       "SDSI-REV",
}

// String returns the algorithm name of p.
func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// PolicyNames returns the names accepted by ParsePolicy.
func PolicyNames() []string {
	return []string{Forward.String(), Bidirectional.String(), Reverse.String()}
}

// ParsePolicy returns the Policy for an algorithm name. Names are case
// insensitive; "forward", "bidirectional" and "reverse" are accepted as
// aliases.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToUpper(name) {
	case "SDSI", "FORWARD":
		return Forward, nil
	case "SDSI-BI", "BIDIRECTIONAL":
		return Bidirectional, nil
	case "SDSI-REV", "REVERSE":
		return Reverse, nil
	default:
		return 0, fmt.Errorf("%w %q, available: %s", ErrUnknownPolicy, name, strings.Join(PolicyNames(), ", "))
	}
}

// step adds the neighbors of v under p into next.
func (p Policy) step(g *game.Game, v game.VertexID, next game.Set) {
	if p == Forward || p == Bidirectional {
		for _, to := range g.Out(v) {
			next.Add(to)
		}
	}
	if p == Reverse || p == Bidirectional {
		for _, from := range g.In(v) {
			next.Add(from)
		}
	}
}

// Expander maintains a monotonically growing reach set, starting from the
// start vertex of a game. Expanders are not safe for concurrent use.
type Expander struct {
	g      *game.Game
	policy Policy
	reach  game.Set
	rounds int
}

// NewExpander returns an Expander whose reach only holds the start vertex of
// g.
func NewExpander(g *game.Game, policy Policy) *Expander {
	return &Expander{
		g:      g,
		policy: policy,
		reach:  game.NewSet(g.Size(), g.Start()),
	}
}

// Policy returns the traversal policy of e.
func (e *Expander) Policy() Policy { return e.policy }

// Rounds returns the number of rounds performed so far.
func (e *Expander) Rounds() int { return e.rounds }

// Reach returns a copy of the current reach set.
func (e *Expander) Reach() game.Set { return e.reach.Clone() }

// IncreaseReach performs n rounds of expansion. Every round adds the
// neighbors of every vertex currently in reach. IncreaseReach returns true if
// any round added a vertex; false means the reachable part of the game has
// been fully explored.
func (e *Expander) IncreaseReach(n int) bool {
	var increased bool

	for i := 0; i < n; i++ {
		next := game.NewSet(e.g.Size())
		e.reach.Each(func(v game.VertexID) { e.policy.step(e.g, v, next) })

		if !next.SubsetOf(e.reach) {
			increased = true
		}
		e.reach.AddAll(next)
		e.rounds++
	}

	return increased
}

// Prune returns the largest valid subgame inside the current reach, using
// subgame.Prune. The reach itself is left untouched.
func (e *Expander) Prune() game.Set { return subgame.Prune(e.g, e.reach) }

// PruneOptimized is Prune using subgame.PruneIncremental.
func (e *Expander) PruneOptimized() game.Set { return subgame.PruneIncremental(e.g, e.reach) }
