package minimize_test

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfratto/kraam/internal/game"
	"github.com/rfratto/kraam/internal/game/gametest"
	"github.com/rfratto/kraam/internal/minimize"
	"github.com/rfratto/kraam/internal/oracle"
	"github.com/rfratto/kraam/internal/oracle/oracletest"
	"github.com/rfratto/kraam/internal/subgame"
)

// cycles is a Player0-only game where the start vertex picks between an odd
// cycle (0 1), an even cycle (0 2) and the even cycle (3 4) which also leads
// to the odd cycle (4 5). The smallest winning subgame is {0 2}, while the
// full game's dominion is {0 3 4}.
func cycles(t *testing.T) *game.Game {
	return gametest.Build(t, gametest.Spec{
		Size:  6,
		Owned: []game.VertexID{0, 1, 2, 3, 4, 5},
		Edges: []gametest.Edge{{From: 0, To: 1}, {From: 1, To: 0}, {From: 0, To: 2}, {From: 2, To: 0}, {From: 0, To: 3}, {From: 3, To: 4}, {From: 4, To: 3}, {From: 4, To: 5}, {From: 5, To: 4}},
	})
}

// selfLoop lets Player0 stay on the even start vertex forever, or visit the
// odd vertex 1 which has the higher priority. Its dominion is {0}, but {0 1}
// can't be shrunk further since {0} is trivial.
func selfLoop(t *testing.T) *game.Game {
	return gametest.Build(t, gametest.Spec{
		Size:       2,
		Owned:      []game.VertexID{0, 1},
		Priorities: []int{2, 3},
		Edges:      []gametest.Edge{{From: 0, To: 0}, {From: 0, To: 1}, {From: 1, To: 0}},
	})
}

func strategies(t *testing.T, o oracle.Oracle, opts minimize.Options) map[string]minimize.Strategy {
	out := make(map[string]minimize.Strategy)
	for _, kind := range minimize.Kinds() {
		s, err := minimize.New(kind, o, opts)
		require.NoError(t, err)
		out[kind] = s
	}
	return out
}

func TestNew(t *testing.T) {
	s, err := minimize.New("Local", oracletest.Zielonka(), minimize.Options{})
	require.NoError(t, err)
	assert.IsType(t, &minimize.LocalOptimum{}, s)

	_, err = minimize.New("annealing", oracletest.Zielonka(), minimize.Options{})
	require.ErrorIs(t, err, minimize.ErrUnknownStrategy)
	assert.Contains(t, err.Error(), "exhaustive, shrink, local")
}

func TestSearch_Cycles(t *testing.T) {
	tt := []struct {
		kind    string
		best    string
		history []int
	}{
		{kind: minimize.KindExhaustive, best: "{0 2}"},
		{kind: minimize.KindShrink, best: "{0 2}", history: []int{3, 2}},
		{kind: minimize.KindLocal, history: []int{3, 2}},
	}

	for _, tc := range tt {
		t.Run(tc.kind, func(t *testing.T) {
			s, err := minimize.New(tc.kind, oracletest.Zielonka(), minimize.Options{})
			require.NoError(t, err)

			res, err := s.Search(context.Background(), cycles(t))
			require.NoError(t, err)
			require.True(t, res.Found)

			assert.Equal(t, "{0 2}", res.Dominion.String())
			if tc.best != "" {
				assert.Equal(t, tc.best, res.Best.String())
			}
			if tc.history != nil {
				assert.Equal(t, tc.history, res.History)
			}
			assert.Positive(t, res.Evaluated)
		})
	}
}

func TestSearch_DominionSmallerThanBest(t *testing.T) {
	for kind, s := range strategies(t, oracletest.Zielonka(), minimize.Options{}) {
		t.Run(kind, func(t *testing.T) {
			res, err := s.Search(context.Background(), selfLoop(t))
			require.NoError(t, err)
			require.True(t, res.Found)
			assert.Equal(t, "{0 1}", res.Best.String())
			assert.Equal(t, "{0}", res.Dominion.String())
		})
	}
}

func TestSearch_ExhaustiveHistory(t *testing.T) {
	s := minimize.NewExhaustive(oracletest.Zielonka(), minimize.Options{})
	res, err := s.Search(context.Background(), cycles(t))
	require.NoError(t, err)

	// The full game is recorded first and every later entry is smaller.
	require.NotEmpty(t, res.History)
	assert.Equal(t, 6, res.History[0])
	assert.Equal(t, 2, res.History[len(res.History)-1])
	assertNonIncreasing(t, res.History)
}

func TestSearch_NotFound(t *testing.T) {
	for kind, s := range strategies(t, oracletest.Zielonka(), minimize.Options{}) {
		t.Run(kind, func(t *testing.T) {
			res, err := s.Search(context.Background(), gametest.Example(t))
			require.NoError(t, err)
			assert.False(t, res.Found)
			assert.Equal(t, 1, res.Evaluated)
		})
	}
}

// failAfterFirst solves the first game with Zielonka and fails every call
// after that.
func failAfterFirst() oracle.Oracle {
	var (
		inner = oracletest.Zielonka()
		calls int
	)
	return oracle.Func(func(ctx context.Context, g *game.Game) (*oracle.Result, error) {
		calls++
		if calls == 1 {
			return inner.Solve(ctx, g)
		}
		return nil, oracle.ErrOracle
	})
}

func TestSearch_OracleFailure(t *testing.T) {
	for _, kind := range minimize.Kinds() {
		t.Run(kind+"/abort", func(t *testing.T) {
			s, err := minimize.New(kind, failAfterFirst(), minimize.Options{})
			require.NoError(t, err)

			_, err = s.Search(context.Background(), cycles(t))
			require.ErrorIs(t, err, oracle.ErrOracle)
		})

		t.Run(kind+"/skip", func(t *testing.T) {
			s, err := minimize.New(kind, failAfterFirst(), minimize.Options{SkipOracleErrors: true})
			require.NoError(t, err)

			res, err := s.Search(context.Background(), cycles(t))
			require.NoError(t, err)
			require.True(t, res.Found)
			// Nothing but the full game could be evaluated.
			assert.Equal(t, "{0 3 4}", res.Dominion.String())
		})
	}
}

func TestSearch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for kind, s := range strategies(t, oracletest.Zielonka(), minimize.Options{}) {
		t.Run(kind, func(t *testing.T) {
			_, err := s.Search(ctx, cycles(t))
			require.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestSearch_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := minimize.NewShrink(oracletest.Zielonka(), minimize.Options{Registerer: reg})

	_, err := s.Search(context.Background(), cycles(t))
	require.NoError(t, err)

	expect := `
# HELP kraam_search_best_size Size of the best subgame found so far.
# TYPE kraam_search_best_size gauge
kraam_search_best_size{strategy="shrink"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expect), "kraam_search_best_size"))
}

func TestSearch_Random(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 40; i++ {
		g := gametest.Random(t, rng, 2+rng.Intn(6), 3)

		var exhaustive *minimize.Result
		results := make(map[string]*minimize.Result)
		for _, prune := range []subgame.PruneFunc{subgame.Prune, subgame.PruneIncremental} {
			for kind, s := range strategies(t, oracletest.Zielonka(), minimize.Options{Prune: prune, BeamWidth: 3}) {
				res, err := s.Search(context.Background(), g)
				require.NoError(t, err)

				// Both pruners must drive the search identically.
				if prev, ok := results[kind]; ok {
					require.Equal(t, prev.Found, res.Found)
					if res.Found {
						require.True(t, prev.Best.Equal(res.Best))
						require.Equal(t, prev.History, res.History)
					}
				}
				results[kind] = res
				if kind == minimize.KindExhaustive {
					exhaustive = res
				}

				if !res.Found {
					continue
				}
				checkResult(t, g, res)
			}
		}

		// Every winner the local search records is reached through winning
		// neighbors, so the exhaustive search visits it too.
		if exhaustive.Found {
			require.LessOrEqual(t, exhaustive.Best.Len(), results[minimize.KindLocal].Best.Len())
		}
	}
}

func checkResult(t *testing.T, g *game.Game, res *minimize.Result) {
	t.Helper()

	require.True(t, res.Best.Has(g.Start()))
	require.True(t, res.Dominion.Has(g.Start()))
	require.True(t, res.Dominion.SubsetOf(res.Best))
	require.True(t, subgame.IsValid(g, res.Best), "best %s", res.Best)
	require.True(t, subgame.IsValid(g, res.Dominion), "dominion %s", res.Dominion)
	assertNonIncreasing(t, res.History)

	sub, err := game.Realize(g, res.Dominion)
	require.NoError(t, err)
	flat, _ := game.Flatten(sub)
	verdict, err := oracletest.Zielonka().Solve(context.Background(), flat)
	require.NoError(t, err)
	require.True(t, verdict.Wins(), "dominion %s is not winning", res.Dominion)
}

func assertNonIncreasing(t *testing.T, history []int) {
	t.Helper()
	for i := 1; i < len(history); i++ {
		require.LessOrEqual(t, history[i], history[i-1], "history %v", history)
	}
}
