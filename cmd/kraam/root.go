package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rfratto/kraam/internal/config"
	"github.com/rfratto/kraam/internal/game"
	"github.com/rfratto/kraam/internal/kraam"
)

// globalFlags are shared by every command which runs a System.
type globalFlags struct {
	configFile     string
	logLevel       string
	httpListenAddr string
	profile        bool

	oracleCommand   string
	oracleTimeout   string
	oracleOnError   string
	dot             bool
	metrics         bool
	effectiveConfig bool
}

func (f *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.configFile, "config.file", "", "path to an HCL config file to load")
	fs.StringVar(&f.logLevel, "log.level", "info", "only log messages at or above this level (debug, info, warn, error)")
	fs.StringVar(&f.httpListenAddr, "server.http-listen-addr", "", "address to serve /graph and /metrics on while running; empty disables the server")
	fs.BoolVar(&f.profile, "profile", false, "write a CPU profile to cpu.pprof in the output directory")

	fs.StringVar(&f.oracleCommand, "oracle", "", "solver command used as the oracle")
	fs.StringVar(&f.oracleTimeout, "oracle.timeout", "", "timeout of a single oracle call, such as 30s or 5m")
	fs.StringVar(&f.oracleOnError, "oracle.on-error", "", "what to do when the oracle fails on a candidate (abort, skip)")
	fs.BoolVar(&f.dot, "dot", false, "write a Graphviz file next to every exported subgame")
	fs.BoolVar(&f.metrics, "metrics", false, "write metrics.prom to the output directory")
	fs.BoolVar(&f.effectiveConfig, "effective-config", false, "write the effective configuration to kraam.hcl in the output directory")
}

// apply overrides cfg with the flags which were set explicitly.
func (f *globalFlags) apply(fs *pflag.FlagSet, cfg *config.Root) {
	if fs.Changed("oracle") {
		cfg.Oracle.Command = f.oracleCommand
	}
	if fs.Changed("oracle.timeout") {
		cfg.Oracle.Timeout = f.oracleTimeout
	}
	if fs.Changed("oracle.on-error") {
		cfg.Oracle.OnError = f.oracleOnError
	}
	if fs.Changed("dot") {
		cfg.Export.DOT = f.dot
	}
	if fs.Changed("metrics") {
		cfg.Export.Metrics = f.metrics
	}
	if fs.Changed("effective-config") {
		cfg.Export.EffectiveConfig = f.effectiveConfig
	}
}

func (f *globalFlags) logger() (log.Logger, error) {
	var opt level.Option
	switch f.logLevel {
	case "debug":
		opt = level.AllowDebug()
	case "info":
		opt = level.AllowInfo()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		return nil, fmt.Errorf("unknown log level %q", f.logLevel)
	}

	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	l = log.With(l, "ts", log.DefaultTimestampUTC)
	return level.NewFilter(l, opt), nil
}

// loadFlags select the game to run against.
type loadFlags struct {
	initialVertex   uint32
	optimizedPruner bool
}

func (f *loadFlags) register(fs *pflag.FlagSet) {
	fs.Uint32Var(&f.initialVertex, "initial-vertex", 0, "start vertex, overriding the initial marker of the game file")
	fs.BoolVar(&f.optimizedPruner, "optimized-pruner", false, "prune candidates incrementally")
}

func (f *loadFlags) apply(fs *pflag.FlagSet, cfg *config.Root) {
	if fs.Changed("optimized-pruner") {
		cfg.Reach.OptimizedPruner = f.optimizedPruner
	}
}

func (f *loadFlags) parseOptions(fs *pflag.FlagSet) []game.ParseOption {
	if !fs.Changed("initial-vertex") {
		return nil
	}
	return []game.ParseOption{game.WithStart(game.VertexID(f.initialVertex))}
}

func newRootCommand() *cobra.Command {
	var gf globalFlags

	root := &cobra.Command{
		Use:   "kraam",
		Short: "Find small subgames of parity games won by Player0",

		SilenceUsage:  true,
		SilenceErrors: true,
	}
	gf.register(root.PersistentFlags())

	root.AddCommand(
		newSweepCommand(&gf),
		newMinimizeCommand(&gf),
		newSolsizeCommand(),
		newVersionCommand(),
	)
	return root
}

// runner holds what a command needs once flags have been resolved.
type runner struct {
	log log.Logger
	sys *kraam.System
	gf  *globalFlags
}

// newRunner resolves the configuration of cmd and creates a System. The
// configuration is layered as defaults, config file, environment, then
// flags; apply receives the flag set to override cfg from.
func newRunner(cmd *cobra.Command, gf *globalFlags, apply func(fs *pflag.FlagSet, cfg *config.Root)) (*runner, error) {
	l, err := gf.logger()
	if err != nil {
		return nil, err
	}

	cfg := config.Default()
	if gf.configFile != "" {
		cfg, err = config.Load(gf.configFile)
		if err != nil {
			return nil, &kraam.StageError{Stage: kraam.StageConfig, Err: err}
		}
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, &kraam.StageError{Stage: kraam.StageConfig, Err: err}
	}

	fs := cmd.Flags()
	gf.apply(fs, cfg)
	if apply != nil {
		apply(fs, cfg)
	}

	sys, err := kraam.NewSystem(kraam.Options{
		Logger:  l,
		Config:  cfg,
		Profile: gf.profile,
	})
	if err != nil {
		return nil, err
	}
	return &runner{log: l, sys: sys, gf: gf}, nil
}

// serve runs the debug server until ctx is canceled or fn returns.
func (r *runner) serve(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.gf.httpListenAddr == "" {
		return fn(ctx)
	}

	lis, err := net.Listen("tcp", r.gf.httpListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.gf.httpListenAddr, err)
	}

	router := mux.NewRouter()
	router.Handle("/graph", r.sys.GraphHandler())
	router.Handle("/metrics", r.sys.MetricsHandler())

	srv := &http.Server{Handler: router}
	go func() {
		level.Info(r.log).Log("msg", "now listening for http traffic", "addr", lis.Addr())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			level.Info(r.log).Log("msg", "http server closed", "err", err)
		}
	}()
	defer srv.Close()

	return fn(ctx)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Print("kraam"))
		},
	}
}
