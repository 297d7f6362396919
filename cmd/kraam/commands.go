package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rfratto/kraam/internal/config"
	"github.com/rfratto/kraam/internal/kraam"
)

func newSweepCommand(gf *globalFlags) *cobra.Command {
	var (
		lf            loadFlags
		algorithm     string
		multithreaded bool
		workers       int
		find          bool
	)

	cmd := &cobra.Command{
		Use:   "sweep <game> <output-dir>",
		Short: "Grow the reach of the start vertex and export every pruned candidate",
		Long: `Sweep grows the reach of the start vertex one round at a time and prunes it
to the largest valid subgame after every round.

By default every candidate with at least two vertices is written to the output
directory as <round>.pg. With --find, candidates are handed to the oracle
instead, and the first one won by Player0 is written as subgame.pg.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner(cmd, gf, func(fs *pflag.FlagSet, cfg *config.Root) {
				lf.apply(fs, cfg)
				if fs.Changed("algorithm") {
					cfg.Reach.Algorithm = algorithm
				}
				if multithreaded {
					cfg.Export.Workers = runtime.NumCPU()
				}
				if fs.Changed("workers") {
					cfg.Export.Workers = workers
				}
				if fs.Changed("find") {
					cfg.Reach.Mode = config.ModeExport
					if find {
						cfg.Reach.Mode = config.ModeFind
					}
				}
			})
			if err != nil {
				return err
			}
			if err := r.sys.Load(args[0], lf.parseOptions(cmd.Flags())...); err != nil {
				return err
			}

			return r.serve(cmd.Context(), func(ctx context.Context) error {
				_, err := r.sys.Sweep(ctx, args[1])
				return err
			})
		},
	}

	fs := cmd.Flags()
	lf.register(fs)
	fs.StringVarP(&algorithm, "algorithm", "a", "SDSI", "reach algorithm (SDSI, SDSI-BI, SDSI-REV)")
	fs.BoolVar(&multithreaded, "multithreaded", false, "export candidates with one worker per CPU")
	fs.IntVar(&workers, "workers", 1, "number of candidates exported concurrently")
	fs.BoolVar(&find, "find", false, "stop at the first candidate won by Player0")
	return cmd
}

func newMinimizeCommand(gf *globalFlags) *cobra.Command {
	var (
		lf        loadFlags
		strategy  string
		beamWidth int
	)

	cmd := &cobra.Command{
		Use:   "minimize <game> <output-dir>",
		Short: "Search for a small subgame won by Player0 and export its dominion",
		Long: `Minimize removes vertices from the game while Player0 keeps winning from the
start vertex, and writes the result to the output directory as subgame.pg.
The exhaustive strategy writes the smallest winning candidate it found; the
other strategies write that candidate's dominion.

Strategies:
  exhaustive  depth-first search over every single-vertex removal
  shrink      tries combinations of non-start vertices one smaller than the
              current best dominion, until no combination wins
  local       beam search keeping the candidates with the smallest dominions`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner(cmd, gf, func(fs *pflag.FlagSet, cfg *config.Root) {
				lf.apply(fs, cfg)
				if fs.Changed("strategy") {
					cfg.Search.Strategy = strategy
				}
				if fs.Changed("beam-width") {
					cfg.Search.BeamWidth = beamWidth
				}
			})
			if err != nil {
				return err
			}
			if err := r.sys.Load(args[0], lf.parseOptions(cmd.Flags())...); err != nil {
				return err
			}

			return r.serve(cmd.Context(), func(ctx context.Context) error {
				res, err := r.sys.Minimize(ctx, args[1])
				if err != nil {
					return err
				}
				if res.Found {
					fmt.Fprintf(cmd.OutOrStdout(), "%d, %d\n", res.Best.Len(), res.Dominion.Len())
				}
				return nil
			})
		},
	}

	fs := cmd.Flags()
	lf.register(fs)
	fs.StringVar(&strategy, "strategy", "local", "search strategy (exhaustive, shrink, local)")
	fs.IntVar(&beamWidth, "beam-width", 10, "candidates expanded per round by the local strategy")
	return cmd
}

func newSolsizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "solsize <game> <solution>",
		Short: "Print the declared size of a game and the size of its dominion",
		Long: `Solsize prints "<vertices>, <dominion>" where <vertices> is the vertex count
declared by the game file and <dominion> is the number of vertices reached from
the start vertex when following the strategy of the solution.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return kraam.SolutionSize(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}
