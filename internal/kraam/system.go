// Package kraam ties the game model, the searches and the oracle together
// into runs which read a game and write their findings to an output
// directory.
package kraam

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime/pprof"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"

	"github.com/rfratto/kraam/internal/config"
	"github.com/rfratto/kraam/internal/export"
	"github.com/rfratto/kraam/internal/game"
	"github.com/rfratto/kraam/internal/minimize"
	"github.com/rfratto/kraam/internal/oracle"
	"github.com/rfratto/kraam/internal/subgame"
)

// Stages a run can fail in.
const (
	StageConfig = "config"
	StageParse  = "parse"
	StagePrune  = "prune"
	StageOracle = "oracle"
	StageExport = "export"
)

// StageError reports the stage of a run which failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s failed: %s", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

func stageError(stage string, err error) error {
	var se *StageError
	if err == nil || errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// ErrNotLoaded is returned when running before a game was loaded.
var ErrNotLoaded = errors.New("no game loaded")

// Options configures a System.
type Options struct {
	Logger log.Logger
	Config *config.Root

	// Oracle overrides the solver built from Config.Oracle.
	Oracle oracle.Oracle

	// Profile writes a CPU profile of every run to cpu.pprof in the output
	// directory.
	Profile bool
}

// System runs kraam against a single loaded game.
type System struct {
	log     log.Logger
	cfg     *config.Root
	oracle  oracle.Oracle
	profile bool

	reg     *prometheus.Registry
	metrics *metrics

	mut     sync.RWMutex
	search  minimize.Strategy
	g       *game.Game
	current *game.Game // latest candidate, renumbered
}

// NewSystem creates a new System.
func NewSystem(o Options) (*System, error) {
	l := o.Logger
	if l == nil {
		l = log.NewNopLogger()
	}
	cfg := o.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, stageError(StageConfig, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		version.NewCollector("kraam"),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	orc := o.Oracle
	if orc == nil {
		timeout, err := cfg.Oracle.TimeoutDuration()
		if err != nil {
			return nil, stageError(StageConfig, err)
		}
		orc = oracle.NewExec(l, oracle.ExecOptions{
			Command: cfg.Oracle.Command,
			Args:    cfg.Oracle.Args,
			TempDir: cfg.Oracle.TempDir,
			Timeout: timeout,
		})
	}

	return &System{
		log:     l,
		cfg:     cfg,
		oracle:  oracle.Instrument(orc, reg),
		profile: o.Profile,
		reg:     reg,
		metrics: newMetrics(reg),
	}, nil
}

// Registry returns the registry holding the metrics of s.
func (s *System) Registry() *prometheus.Registry { return s.reg }

// Load reads the game at path. It replaces any previously loaded game.
func (s *System) Load(path string, opts ...game.ParseOption) error {
	g, err := game.ReadFile(path, opts...)
	if err != nil {
		return stageError(StageParse, err)
	}

	level.Info(s.log).Log(
		"msg", "loaded game",
		"path", path,
		"vertices", g.Len(),
		"edges", g.NumEdges(),
		"start", g.Start(),
		"reachable", game.Reachable(g, g.Start()).Len(),
	)

	s.mut.Lock()
	defer s.mut.Unlock()
	s.g, s.current = g, g
	return nil
}

// Game returns the loaded game, or nil.
func (s *System) Game() *game.Game {
	s.mut.RLock()
	defer s.mut.RUnlock()
	return s.g
}

func (s *System) loaded() (*game.Game, error) {
	g := s.Game()
	if g == nil {
		return nil, stageError(StageParse, ErrNotLoaded)
	}
	return g, nil
}

// setCurrent records c as the candidate shown by GraphHandler.
func (s *System) setCurrent(g *game.Game, c game.Set) {
	sub, err := game.Realize(g, c)
	if err != nil {
		return
	}
	flat, _ := game.Flatten(sub)

	s.mut.Lock()
	defer s.mut.Unlock()
	s.current = flat
}

// pruner returns the configured pruner.
func (s *System) pruner() subgame.PruneFunc {
	if s.cfg.Reach.OptimizedPruner {
		return subgame.PruneIncremental
	}
	return subgame.Prune
}

func (s *System) exportOptions() export.Options {
	return export.Options{DOT: s.cfg.Export.DOT}
}

// GraphHandler returns an http.Handler that renders the latest candidate
// subgame, or the loaded game before any candidate was found, as DOT.
func (s *System) GraphHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.mut.RLock()
		g := s.current
		s.mut.RUnlock()

		if g == nil {
			http.Error(w, ErrNotLoaded.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		_, _ = w.Write(game.MarshalDOT(g))
	}
}

// MetricsHandler returns an http.Handler exposing the metrics of s.
func (s *System) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})
}

// withOutput runs fn against a staging directory for out and commits it if
// fn succeeds. Extra files requested by the configuration are written
// before committing.
func (s *System) withOutput(out string, fn func(st *export.Staging) error) (err error) {
	st, err := export.NewStaging(out)
	if err != nil {
		return stageError(StageExport, err)
	}
	defer func() {
		if err != nil {
			if abortErr := st.Abort(); abortErr != nil {
				level.Warn(s.log).Log("msg", "failed to remove staging directory", "dir", st.Dir(), "err", abortErr)
			}
		}
	}()

	stopProfile := func() {}
	if s.profile {
		f, err := os.Create(st.Path("cpu.pprof"))
		if err != nil {
			return stageError(StageExport, err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return stageError(StageExport, fmt.Errorf("starting CPU profile: %w", err))
		}
		stopProfile = func() {
			pprof.StopCPUProfile()
			f.Close()
		}
	}

	err = fn(st)
	stopProfile()
	if err != nil {
		return err
	}

	if s.cfg.Export.EffectiveConfig {
		if err := os.WriteFile(st.Path("kraam.hcl"), s.cfg.Encode(), 0o644); err != nil {
			return stageError(StageExport, err)
		}
	}
	if s.cfg.Export.Metrics {
		if err := prometheus.WriteToTextfile(st.Path("metrics.prom"), s.reg); err != nil {
			return stageError(StageExport, err)
		}
	}

	if err := st.Commit(); err != nil {
		return stageError(StageExport, err)
	}
	level.Info(s.log).Log("msg", "wrote output", "dir", out)
	return nil
}
