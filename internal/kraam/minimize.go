package kraam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-kit/log/level"

	"github.com/rfratto/kraam/internal/config"
	"github.com/rfratto/kraam/internal/export"
	"github.com/rfratto/kraam/internal/game"
	"github.com/rfratto/kraam/internal/minimize"
	"github.com/rfratto/kraam/internal/oracle"
)

// Minimize searches the loaded game for a small subgame won by Player0 with
// the configured strategy and writes it to out as subgame.pg. The exhaustive
// strategy writes the smallest winning candidate itself; the others write
// its dominion. Nothing but the configured extras is written when
// Player0 doesn't win the loaded game.
func (s *System) Minimize(ctx context.Context, out string) (*minimize.Result, error) {
	g, err := s.loaded()
	if err != nil {
		return nil, err
	}

	strategy, err := s.strategy()
	if err != nil {
		return nil, stageError(StageConfig, err)
	}

	var res *minimize.Result
	err = s.withOutput(out, func(st *export.Staging) error {
		level.Info(s.log).Log("msg", "starting search", "strategy", s.cfg.Search.Strategy, "vertices", g.Len())

		var err error
		res, err = strategy.Search(ctx, g)
		switch {
		case err == nil:
		case errors.Is(err, oracle.ErrOracle):
			return stageError(StageOracle, err)
		default:
			return err
		}

		if !res.Found {
			level.Warn(s.log).Log("msg", "player 0 does not win the loaded game; no subgame written")
			return nil
		}

		level.Info(s.log).Log("msg", "search finished", "best", res.Best.Len(), "dominion", res.Dominion.Len(), "evaluated", res.Evaluated)
		c := exported(s.cfg.Search.Strategy, res)
		s.setCurrent(g, c)
		if err := export.Subgame(g, c, st.Path("subgame.pg"), s.exportOptions()); err != nil {
			return stageError(StageExport, err)
		}
		s.metrics.exported.Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// exported returns the vertices of the subgame Minimize writes for res.
func exported(kind string, res *minimize.Result) game.Set {
	if strings.EqualFold(kind, minimize.KindExhaustive) {
		return res.Best
	}
	return res.Dominion
}

// strategy returns the configured search strategy. Strategies are created
// once per System, as they register metrics.
func (s *System) strategy() (minimize.Strategy, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	if s.search != nil {
		return s.search, nil
	}
	strategy, err := minimize.New(s.cfg.Search.Strategy, s.oracle, minimize.Options{
		Logger:           s.log,
		Registerer:       s.reg,
		Prune:            s.pruner(),
		BeamWidth:        s.cfg.Search.BeamWidth,
		SkipOracleErrors: s.cfg.Oracle.OnError == config.OnErrorSkip,
	})
	if err != nil {
		return nil, err
	}
	s.search = strategy
	return strategy, nil
}

// SolutionSize writes "<declared vertices>, <dominion size>" for the game
// at gamePath and the solution at solPath to w. The dominion is the set of
// vertices reached from the start vertex when following the solution's
// strategy.
func SolutionSize(w io.Writer, gamePath, solPath string) error {
	g, err := game.ReadFile(gamePath)
	if err != nil {
		return stageError(StageParse, err)
	}
	sol, err := game.ReadSolution(solPath)
	if err != nil {
		return stageError(StageParse, err)
	}

	dom, err := game.Dominion(g, sol.Strategy)
	if err != nil {
		return stageError(StageParse, err)
	}
	_, err = fmt.Fprintf(w, "%d, %d\n", g.Size(), dom.Len())
	return err
}
