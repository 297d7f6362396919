package kraam

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-kit/log/level"

	"github.com/rfratto/kraam/internal/config"
	"github.com/rfratto/kraam/internal/export"
	"github.com/rfratto/kraam/internal/game"
	"github.com/rfratto/kraam/internal/oracle"
	"github.com/rfratto/kraam/internal/reach"
)

// SweepResult summarizes a sweep.
type SweepResult struct {
	// Rounds is the number of reach rounds performed.
	Rounds int
	// Exported is the number of subgames written in export mode.
	Exported int

	// Found is set in find mode when a winning subgame was found.
	Found bool
	// Subgame is the winning subgame in find mode, in the identifiers of the
	// loaded game.
	Subgame game.Set
}

// Sweep grows the reach of the start vertex of the loaded game one round at
// a time and prunes it after every round.
//
// In export mode, every pruned candidate with at least two vertices is
// written to out as <round>.pg, stopping once the candidate covers the
// whole game. In find mode, every candidate is handed to the oracle and the
// first one won by Player0 is written to out as subgame.pg, along with its
// solution.
func (s *System) Sweep(ctx context.Context, out string) (*SweepResult, error) {
	g, err := s.loaded()
	if err != nil {
		return nil, err
	}
	policy, err := reach.ParsePolicy(s.cfg.Reach.Algorithm)
	if err != nil {
		return nil, stageError(StageConfig, err)
	}

	var res *SweepResult
	err = s.withOutput(out, func(st *export.Staging) error {
		e := reach.NewExpander(g, policy)
		level.Info(s.log).Log("msg", "starting sweep", "algorithm", policy, "mode", s.cfg.Reach.Mode)

		var err error
		switch s.cfg.Reach.Mode {
		case config.ModeFind:
			res, err = s.sweepFind(ctx, g, e, st)
		default:
			res, err = s.sweepExport(ctx, g, e, st)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// step grows the reach by one round and returns the pruned candidate. ok is
// false once the reach stopped growing.
func (s *System) step(g *game.Game, e *reach.Expander) (c game.Set, ok bool) {
	if !e.IncreaseReach(1) {
		return game.Set{}, false
	}
	s.metrics.reachRounds.Inc()

	r := e.Reach()
	s.metrics.reachSize.Set(float64(r.Len()))

	c = s.pruner()(g, r)
	s.metrics.candidateSize.Set(float64(c.Len()))
	level.Debug(s.log).Log("msg", "reach round", "round", e.Rounds(), "reach", r.Len(), "candidate", c.Len())
	return c, true
}

func (s *System) sweepExport(ctx context.Context, g *game.Game, e *reach.Expander, st *export.Staging) (*SweepResult, error) {
	var (
		res  = &SweepResult{}
		pool = export.NewPool(ctx, s.log, g, s.cfg.Export.Workers, s.exportOptions())
	)

	// The reach before the first round is only the start vertex.
	level.Debug(s.log).Log("msg", "initial candidate", "candidate", e.Prune().Len())

	for {
		if err := ctx.Err(); err != nil {
			_, _ = pool.Wait()
			return nil, err
		}
		// A failed export stops the sweep; Wait below reports the error.
		if pool.Context().Err() != nil {
			break
		}

		c, ok := s.step(g, e)
		if !ok {
			break
		}
		res.Rounds = e.Rounds()

		if c.Len() == g.Len() {
			break
		}
		if c.Len() < 2 {
			continue
		}

		s.setCurrent(g, c)
		name := fmt.Sprintf("%d.pg", res.Rounds+1)
		if err := pool.Submit(st.Path(name), c); err != nil {
			_, _ = pool.Wait()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, stageError(StageExport, err)
		}
	}

	n, err := pool.Wait()
	res.Exported = n
	s.metrics.exported.Add(float64(n))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, stageError(StageExport, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	level.Info(s.log).Log("msg", "sweep finished", "rounds", res.Rounds, "exported", res.Exported)
	return res, nil
}

func (s *System) sweepFind(ctx context.Context, g *game.Game, e *reach.Expander, st *export.Staging) (*SweepResult, error) {
	res := &SweepResult{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c, ok := s.step(g, e)
		if !ok {
			break
		}
		res.Rounds = e.Rounds()

		if c.Len() < 2 {
			continue
		}
		s.setCurrent(g, c)

		flat, verdict, err := s.solve(ctx, g, c)
		switch {
		case errors.Is(err, oracle.ErrOracle) && s.cfg.Oracle.OnError == config.OnErrorSkip:
			level.Warn(s.log).Log("msg", "skipping candidate the oracle failed on", "round", res.Rounds, "err", err)
		case err != nil:
			return nil, err
		case verdict.Wins():
			level.Info(s.log).Log("msg", "found winning subgame", "round", res.Rounds, "vertices", c.Len())
			if err := s.writeFound(st, flat, verdict); err != nil {
				return nil, err
			}
			res.Found, res.Subgame = true, c
			return res, nil
		}

		if c.Len() == g.Len() {
			break
		}
	}

	level.Info(s.log).Log("msg", "sweep finished without a winning subgame", "rounds", res.Rounds)
	return res, nil
}

// solve asks the oracle about the subgame of g induced by c.
func (s *System) solve(ctx context.Context, g *game.Game, c game.Set) (*game.Game, *oracle.Result, error) {
	sub, err := game.Realize(g, c)
	if err != nil {
		return nil, nil, stageError(StagePrune, err)
	}
	flat, _ := game.Flatten(sub)

	res, err := s.oracle.Solve(ctx, flat)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, stageError(StageOracle, err)
	}
	return flat, res, nil
}

func (s *System) writeFound(st *export.Staging, flat *game.Game, res *oracle.Result) error {
	path := st.Path("subgame.pg")
	if err := game.WriteFile(path, flat); err != nil {
		return stageError(StageExport, err)
	}
	if res.Solution != nil {
		if err := game.WriteSolutionFile(path+".sol", res.Solution); err != nil {
			return stageError(StageExport, err)
		}
	}
	if s.cfg.Export.DOT {
		if err := os.WriteFile(st.Path("subgame.dot"), game.MarshalDOT(flat), 0o644); err != nil {
			return stageError(StageExport, err)
		}
	}
	s.metrics.exported.Inc()
	return nil
}
