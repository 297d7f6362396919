// Package config holds the run configuration of kraam. Configuration is
// layered: built-in defaults are overridden by an HCL file, which is
// overridden by KRAAM_* environment variables. Command-line flags are
// applied last by the caller.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/prometheus/common/model"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/rfratto/kraam/internal/minimize"
	"github.com/rfratto/kraam/internal/oracle"
	"github.com/rfratto/kraam/internal/reach"
)

// Root is the top-level configuration. Blocks are pointers so that the HCL
// file may omit them; Default never leaves them nil.
type Root struct {
	Oracle *Oracle `hcl:"oracle,block" cty:"oracle"`
	Search *Search `hcl:"search,block" cty:"search"`
	Reach  *Reach  `hcl:"reach,block" cty:"reach"`
	Export *Export `hcl:"export,block" cty:"export"`
}

// Oracle configures the external solver.
type Oracle struct {
	Command string   `hcl:"command,optional" cty:"command" env:"KRAAM_ORACLE_COMMAND"`
	Args    []string `hcl:"args,optional" cty:"args" env:"KRAAM_ORACLE_ARGS" envSeparator:" "`
	// Timeout is a Prometheus-style duration such as "30s" or "1h". Empty or
	// "0" disables the timeout.
	Timeout string `hcl:"timeout,optional" cty:"timeout" env:"KRAAM_ORACLE_TIMEOUT"`
	TempDir string `hcl:"temp_dir,optional" cty:"temp_dir" env:"KRAAM_ORACLE_TEMP_DIR"`
	// OnError is either "abort" or "skip".
	OnError string `hcl:"on_error,optional" cty:"on_error" env:"KRAAM_ORACLE_ON_ERROR"`
}

// Oracle error policies.
const (
	OnErrorAbort = "abort"
	OnErrorSkip  = "skip"
)

// Search configures subgame minimization.
type Search struct {
	Strategy  string `hcl:"strategy,optional" cty:"strategy" env:"KRAAM_SEARCH_STRATEGY"`
	BeamWidth int    `hcl:"beam_width,optional" cty:"beam_width" env:"KRAAM_SEARCH_BEAM_WIDTH"`
}

// Reach configures reach sweeps.
type Reach struct {
	Algorithm       string `hcl:"algorithm,optional" cty:"algorithm" env:"KRAAM_REACH_ALGORITHM"`
	OptimizedPruner bool   `hcl:"optimized_pruner,optional" cty:"optimized_pruner" env:"KRAAM_REACH_OPTIMIZED_PRUNER"`
	// Mode is either "export" or "find".
	Mode string `hcl:"mode,optional" cty:"mode" env:"KRAAM_REACH_MODE"`
}

// Sweep modes.
const (
	ModeExport = "export"
	ModeFind   = "find"
)

// Export configures what gets written to the output directory.
type Export struct {
	Workers         int  `hcl:"workers,optional" cty:"workers" env:"KRAAM_EXPORT_WORKERS"`
	DOT             bool `hcl:"dot,optional" cty:"dot" env:"KRAAM_EXPORT_DOT"`
	Metrics         bool `hcl:"metrics,optional" cty:"metrics" env:"KRAAM_EXPORT_METRICS"`
	EffectiveConfig bool `hcl:"effective_config,optional" cty:"effective_config" env:"KRAAM_EXPORT_EFFECTIVE_CONFIG"`
}

// Default returns the default configuration.
func Default() *Root {
	return &Root{
		Oracle: &Oracle{
			Command: oracle.DefaultCommand,
			Args:    []string{},
			OnError: OnErrorAbort,
		},
		Search: &Search{
			Strategy:  minimize.KindLocal,
			BeamWidth: minimize.DefaultBeamWidth,
		},
		Reach: &Reach{
			Algorithm: "SDSI",
			Mode:      ModeExport,
		},
		Export: &Export{
			Workers: 1,
		},
	}
}

// Load reads the HCL file at path on top of the defaults. Expressions in the
// file may call env(name) and a few string and number functions, and may
// refer to the defaults as default.<block>.<attribute>.
func Load(path string) (*Root, error) {
	bb, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(bb, path)
}

// Parse parses HCL source on top of the defaults. filename is only used in
// diagnostics.
func Parse(src []byte, filename string) (*Root, error) {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, diags
	}

	root := Default()
	ectx, err := evalContext(root)
	if err != nil {
		return nil, err
	}
	diags = diags.Extend(gohcl.DecodeBody(file.Body, ectx, root))
	if diags.HasErrors() {
		return nil, diags
	}
	if err := root.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return root, nil
}

func evalContext(defaults *Root) (*hcl.EvalContext, error) {
	defaultsVal, err := EncodeCty(defaults)
	if err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"default": defaultsVal,
		},
		Functions: map[string]function.Function{
			"env":    envFunc,
			"concat": stdlib.ConcatFunc,
			"min":    stdlib.MinFunc,
			"max":    stdlib.MaxFunc,
			"upper":  stdlib.UpperFunc,
			"lower":  stdlib.LowerFunc,
		},
	}, nil
}

// envFunc returns the value of an environment variable, or an empty string
// if it isn't set.
var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})

// ApplyEnv overrides fields of r from KRAAM_* environment variables. environ
// holds the variables to use; a nil map reads the process environment.
func (r *Root) ApplyEnv(environ map[string]string) error {
	opts := env.Options{Environment: environ}
	if err := env.ParseWithOptions(r, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return r.Validate()
}

// Validate checks r for values that can't be used.
func (r *Root) Validate() error {
	if _, err := r.Oracle.TimeoutDuration(); err != nil {
		return err
	}
	switch r.Oracle.OnError {
	case OnErrorAbort, OnErrorSkip:
	default:
		return fmt.Errorf("oracle.on_error must be %q or %q, got %q", OnErrorAbort, OnErrorSkip, r.Oracle.OnError)
	}
	switch r.Reach.Mode {
	case ModeExport, ModeFind:
	default:
		return fmt.Errorf("reach.mode must be %q or %q, got %q", ModeExport, ModeFind, r.Reach.Mode)
	}
	if _, err := reach.ParsePolicy(r.Reach.Algorithm); err != nil {
		return fmt.Errorf("reach.algorithm: %w", err)
	}
	if !slices.Contains(minimize.Kinds(), strings.ToLower(r.Search.Strategy)) {
		return fmt.Errorf("search.strategy: %w %q", minimize.ErrUnknownStrategy, r.Search.Strategy)
	}
	if r.Search.BeamWidth < 1 {
		return fmt.Errorf("search.beam_width must be at least 1, got %d", r.Search.BeamWidth)
	}
	return nil
}

// TimeoutDuration parses the oracle timeout.
func (o *Oracle) TimeoutDuration() (time.Duration, error) {
	if o.Timeout == "" {
		return 0, nil
	}
	d, err := model.ParseDuration(o.Timeout)
	if err != nil {
		return 0, fmt.Errorf("oracle.timeout: %w", err)
	}
	return time.Duration(d), nil
}

// Encode renders r as HCL.
func (r *Root) Encode() []byte {
	f := hclwrite.NewEmptyFile()
	gohcl.EncodeIntoBody(r, f.Body())
	return f.Bytes()
}

// EncodeCty encodes r into a cty.Value, so it can be referenced from HCL
// expressions.
func EncodeCty(r *Root) (cty.Value, error) {
	ty, err := gocty.ImpliedType(r)
	if err != nil {
		return cty.NilVal, err
	}
	return gocty.ToCtyValue(r, ty)
}
