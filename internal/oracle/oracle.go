// Package oracle decides which player wins a parity game from its start
// vertex by handing the game to a winner-determination solver.
package oracle

import (
	"context"
	"errors"

	"github.com/rfratto/kraam/internal/game"
)

// ErrOracle is returned when the winner of a game couldn't be determined.
// Callers must not infer a winner from a failed call.
var ErrOracle = errors.New("oracle: could not determine the winner")

// Result is the verdict of an Oracle.
type Result struct {
	// Winner is the player winning from the start vertex.
	Winner game.Player
	// Solution is the full solution, in the identifiers of the solved game.
	Solution *game.Solution
}

// Wins returns true if Player0 wins from the start vertex.
func (r *Result) Wins() bool { return r.Winner == game.Player0 }

// Oracle solves parity games. Games handed to an Oracle have a contiguous
// identifier space (see game.Flatten).
type Oracle interface {
	Solve(ctx context.Context, g *game.Game) (*Result, error)
}

// Func is an Oracle implemented by a function.
type Func func(ctx context.Context, g *game.Game) (*Result, error)

// Solve implements Oracle.
func (f Func) Solve(ctx context.Context, g *game.Game) (*Result, error) { return f(ctx, g) }
