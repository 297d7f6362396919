package oracle_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfratto/kraam/internal/game"
	"github.com/rfratto/kraam/internal/game/gametest"
	"github.com/rfratto/kraam/internal/oracle"
)

// fakeSolver writes a shell script standing in for a solver. body runs with
// $1 set to the game file and $2 to the solution file.
func fakeSolver(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake solver needs a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "solver.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestExec_Solve(t *testing.T) {
	solver := fakeSolver(t, `
grep -q '^parity 4;$' "$1" || exit 3
printf 'paritysol 4;\n0 0 1;\n1 0;\n2 0 3;\n3 0;\n' > "$2"
`)

	o := oracle.NewExec(nil, oracle.ExecOptions{Command: solver, TempDir: t.TempDir()})
	res, err := o.Solve(context.Background(), gametest.Example(t))
	require.NoError(t, err)

	assert.True(t, res.Wins())
	assert.Equal(t, game.Strategy{0: 1, 2: 3}, res.Solution.Strategy)
}

func TestExec_SolveLost(t *testing.T) {
	solver := fakeSolver(t, `printf 'paritysol 1;\n0 1;\n' > "$2"`)

	o := oracle.NewExec(nil, oracle.ExecOptions{Command: solver})
	res, err := o.Solve(context.Background(), gametest.Example(t))
	require.NoError(t, err)
	assert.False(t, res.Wins())
	assert.Equal(t, game.Player1, res.Winner)
}

func TestExec_PassesArgs(t *testing.T) {
	solver := fakeSolver(t, `
[ "$1" = "--quiet" ] || exit 4
printf 'paritysol 1;\n0 0;\n' > "$3"
`)

	o := oracle.NewExec(nil, oracle.ExecOptions{Command: solver, Args: []string{"--quiet"}})
	res, err := o.Solve(context.Background(), gametest.Example(t))
	require.NoError(t, err)
	assert.True(t, res.Wins())
}

func TestExec_Failures(t *testing.T) {
	tt := []struct {
		name    string
		body    string
		timeout time.Duration
		wantMsg string
	}{
		{name: "exit status", body: "echo 'bad game' >&2; exit 1", wantMsg: "bad game"},
		{name: "no solution", body: "exit 0", wantMsg: "reading solution"},
		{name: "garbage solution", body: `echo 'nonsense' > "$2"`, wantMsg: "reading solution"},
		{name: "empty solution", body: `printf 'paritysol 0;\n' > "$2"`, wantMsg: "empty solution"},
		{name: "timeout", body: "sleep 5", timeout: 50 * time.Millisecond, wantMsg: "deadline exceeded"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			o := oracle.NewExec(nil, oracle.ExecOptions{Command: fakeSolver(t, tc.body), Timeout: tc.timeout})
			_, err := o.Solve(context.Background(), gametest.Example(t))
			require.ErrorIs(t, err, oracle.ErrOracle)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestExec_MissingCommand(t *testing.T) {
	o := oracle.NewExec(nil, oracle.ExecOptions{Command: filepath.Join(t.TempDir(), "does-not-exist")})
	_, err := o.Solve(context.Background(), gametest.Example(t))
	require.ErrorIs(t, err, oracle.ErrOracle)
}

func TestExec_LeavesNoFiles(t *testing.T) {
	tmp := t.TempDir()
	solver := fakeSolver(t, `printf 'paritysol 1;\n0 0;\n' > "$2"`)

	o := oracle.NewExec(nil, oracle.ExecOptions{Command: solver, TempDir: tmp})
	_, err := o.Solve(context.Background(), gametest.Example(t))
	require.NoError(t, err)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInstrument(t *testing.T) {
	var (
		reg   = prometheus.NewRegistry()
		calls int
	)
	inner := oracle.Func(func(_ context.Context, g *game.Game) (*oracle.Result, error) {
		calls++
		switch calls {
		case 1:
			return &oracle.Result{Winner: game.Player0}, nil
		case 2:
			return &oracle.Result{Winner: game.Player1}, nil
		default:
			return nil, oracle.ErrOracle
		}
	})

	o := oracle.Instrument(inner, reg)
	g := gametest.Example(t)
	for i := 0; i < 3; i++ {
		_, _ = o.Solve(context.Background(), g)
	}

	expect := `
# HELP kraam_oracle_calls_total Total number of oracle calls, by outcome.
# TYPE kraam_oracle_calls_total counter
kraam_oracle_calls_total{outcome="error"} 1
kraam_oracle_calls_total{outcome="lost"} 1
kraam_oracle_calls_total{outcome="won"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expect), "kraam_oracle_calls_total"))

	_, err := o.Solve(context.Background(), g)
	assert.True(t, errors.Is(err, oracle.ErrOracle))
}
