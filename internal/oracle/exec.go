package oracle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/rfratto/kraam/internal/game"
)

// DefaultCommand is the solver invoked when none is configured.
const DefaultCommand = "oink"

// ExecOptions configures an Exec oracle.
type ExecOptions struct {
	// Command is the solver to run. It is invoked as
	//
	//	<Command> <Args...> <game file> <solution file>
	Command string
	Args    []string

	// TempDir is where per-call working directories are created. The system
	// temporary directory is used when empty.
	TempDir string

	// Timeout bounds a single solver run. Zero means no limit.
	Timeout time.Duration
}

// Exec is an Oracle which runs an external solver process.
type Exec struct {
	logger log.Logger
	opts   ExecOptions
}

var _ Oracle = (*Exec)(nil)

// NewExec creates a new Exec oracle.
func NewExec(l log.Logger, o ExecOptions) *Exec {
	if l == nil {
		l = log.NewNopLogger()
	}
	if o.Command == "" {
		o.Command = DefaultCommand
	}
	return &Exec{
		logger: log.With(l, "component", "oracle"),
		opts:   o,
	}
}

// Solve writes g to a temporary file, runs the solver on it and reads back
// the solution. Solve blocks until the solver exits, ctx is canceled or the
// configured timeout passes.
func (o *Exec) Solve(ctx context.Context, g *game.Game) (*Result, error) {
	dir, err := os.MkdirTemp(o.opts.TempDir, "kraam-oracle-")
	if err != nil {
		return nil, fmt.Errorf("%w: creating working directory: %w", ErrOracle, err)
	}
	defer os.RemoveAll(dir)

	var (
		gamePath = filepath.Join(dir, "subgame.pg")
		solPath  = gamePath + ".sol"
	)
	if err := game.WriteFile(gamePath, g); err != nil {
		return nil, fmt.Errorf("%w: writing game: %w", ErrOracle, err)
	}

	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	args := make([]string, 0, len(o.opts.Args)+2)
	args = append(args, o.opts.Args...)
	args = append(args, gamePath, solPath)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, o.opts.Command, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, fmt.Errorf("%w: running %s: %w: %s", ErrOracle, o.opts.Command, err, strings.TrimSpace(stderr.String()))
	}
	level.Debug(o.logger).Log("msg", "solver finished", "vertices", g.Len(), "duration", time.Since(start))

	sol, err := game.ReadSolution(solPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading solution: %w", ErrOracle, err)
	}
	winner, ok := sol.WinnerAt(g.Start())
	if !ok {
		return nil, fmt.Errorf("%w: solver wrote an empty solution", ErrOracle)
	}
	return &Result{Winner: winner, Solution: sol}, nil
}
