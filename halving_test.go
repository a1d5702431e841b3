package halving

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// depthEvaluator scores a candidate by its "max_depth" parameter, treating
// nil as 5. Deterministic and resource-independent, which makes expected
// eliminations easy to reason about in tests.
func depthEvaluator() Evaluator {
	return EvaluatorFunc(func(_ context.Context, c Candidate, _ float64) (float64, error) {
		v, _ := c.Get("max_depth")

		if v == nil {
			return 5, nil
		}

		return float64(v.(int)), nil
	})
}

func depthCandidates() []Candidate {
	return []Candidate{
		NewCandidate(0, map[string]any{"max_depth": 3}),
		NewCandidate(1, map[string]any{"max_depth": nil}),
		NewCandidate(2, map[string]any{"max_depth": 7}),
		NewCandidate(3, map[string]any{"max_depth": 9}),
	}
}

func testConfig() SearchConfig {
	config := DefaultSearchConfig()
	config.MinResource = 1
	config.MaxResource = 10
	config.HalvingFactor = 2
	config.Seed = 1
	config.MaxConcurrency = 2

	return config
}

func TestSearchDepthScenario(t *testing.T) {
	// 4 candidates, min=1, max=10, factor=2: the schedule must be
	// resource 1 over 4, resource 2 over 2, resource 4 over 1.
	result, err := Search(context.Background(), testConfig(), depthEvaluator(), depthCandidates())
	require.NoError(t, err)

	require.Len(t, result.Rounds, 3)

	assert.Equal(t, RoundSummary{Round: 0, Resource: 1, CandidateCount: 4, SurvivorCount: 2, BestScore: 9}, result.Rounds[0])
	assert.Equal(t, RoundSummary{Round: 1, Resource: 2, CandidateCount: 2, SurvivorCount: 1, BestScore: 9}, result.Rounds[1])
	assert.Equal(t, RoundSummary{Round: 2, Resource: 4, CandidateCount: 1, SurvivorCount: 1, BestScore: 9}, result.Rounds[2])

	// The largest effective max_depth wins.
	v, _ := result.Best.Get("max_depth")
	assert.Equal(t, 9, v)
	assert.Equal(t, float64(9), result.BestScore)
}

func TestSearchValidationFailsFast(t *testing.T) {
	var calls int32

	countingEvaluator := EvaluatorFunc(func(_ context.Context, _ Candidate, _ float64) (float64, error) {
		atomic.AddInt32(&calls, 1)

		return 0, nil
	})

	cases := []struct {
		name   string
		mutate func(*SearchConfig)
	}{
		{"min greater than max", func(c *SearchConfig) { c.MinResource = 10; c.MaxResource = 1 }},
		{"non-positive min resource", func(c *SearchConfig) { c.MinResource = 0 }},
		{"factor not above one", func(c *SearchConfig) { c.HalvingFactor = 1 }},
		{"zero concurrency", func(c *SearchConfig) { c.MaxConcurrency = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := testConfig()
			tc.mutate(&config)

			_, err := Search(context.Background(), config, countingEvaluator, depthCandidates())

			var confErr *ConfigurationError
			assert.ErrorAs(t, err, &confErr)
		})
	}

	// Bad configurations must be rejected before any evaluation happens.
	assert.Zero(t, atomic.LoadInt32(&calls))

	// Nil evaluator and empty population are configuration errors too.
	var confErr *ConfigurationError

	_, err := Search(context.Background(), testConfig(), nil, depthCandidates())
	assert.ErrorAs(t, err, &confErr)

	_, err = Search(context.Background(), testConfig(), countingEvaluator, nil)
	assert.ErrorAs(t, err, &confErr)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestSearchAllCandidatesFailed(t *testing.T) {
	errBoom := errors.New("boom")

	failing := EvaluatorFunc(func(_ context.Context, _ Candidate, _ float64) (float64, error) {
		return 0, errBoom
	})

	_, err := Search(context.Background(), testConfig(), failing, depthCandidates())

	var allErr *AllCandidatesFailedError
	require.ErrorAs(t, err, &allErr)

	assert.Equal(t, 0, allErr.Round)
	assert.Equal(t, float64(1), allErr.Resource)
	assert.Equal(t, 4, allErr.CandidateCount)
	assert.Len(t, allErr.Errors, 4)

	// The underlying evaluator error stays reachable through the chain.
	assert.ErrorIs(t, err, errBoom)
}

func TestSearchAllCandidatesFailedNamesLaterRound(t *testing.T) {
	// Healthy at resource 1, broken at anything larger: round 1 is the
	// first all-failed round and must be the one named.
	flaky := EvaluatorFunc(func(_ context.Context, c Candidate, resource float64) (float64, error) {
		if resource > 1 {
			return 0, errors.New("out of budget")
		}

		v, _ := c.Get("max_depth")
		if v == nil {
			return 5, nil
		}

		return float64(v.(int)), nil
	})

	result, err := Search(context.Background(), testConfig(), flaky, depthCandidates())

	var allErr *AllCandidatesFailedError
	require.ErrorAs(t, err, &allErr)

	assert.Equal(t, 1, allErr.Round)
	assert.Equal(t, float64(2), allErr.Resource)
	assert.Equal(t, 2, allErr.CandidateCount)

	// The completed round 0 is preserved in the history.
	require.Len(t, result.Rounds, 1)
	assert.Equal(t, 0, result.Rounds[0].Round)
}

func TestSearchSingleFailureEliminatesOnlyThatCandidate(t *testing.T) {
	// The would-be winner (max_depth 9) always errors; the search must
	// recover and crown the runner-up instead of aborting.
	flaky := EvaluatorFunc(func(_ context.Context, c Candidate, _ float64) (float64, error) {
		v, _ := c.Get("max_depth")

		if v == nil {
			return 5, nil
		}

		if v.(int) == 9 {
			return 0, errors.New("cursed configuration")
		}

		return float64(v.(int)), nil
	})

	result, err := Search(context.Background(), testConfig(), flaky, depthCandidates())
	require.NoError(t, err)

	v, _ := result.Best.Get("max_depth")
	assert.Equal(t, 7, v)
}

func TestSearchNaNScoreIsEliminated(t *testing.T) {
	nanEvaluator := EvaluatorFunc(func(_ context.Context, c Candidate, _ float64) (float64, error) {
		v, _ := c.Get("max_depth")

		if v == nil {
			return math.NaN(), nil
		}

		return float64(v.(int)), nil
	})

	candidates := []Candidate{
		NewCandidate(0, map[string]any{"max_depth": nil}),
		NewCandidate(1, map[string]any{"max_depth": 2}),
	}

	result, err := Search(context.Background(), testConfig(), nanEvaluator, candidates)
	require.NoError(t, err)

	// A NaN score can never beat a real one, however low.
	v, _ := result.Best.Get("max_depth")
	assert.Equal(t, 2, v)
}

func TestSearchTieBreakPrefersEarlierCandidate(t *testing.T) {
	flat := EvaluatorFunc(func(_ context.Context, _ Candidate, _ float64) (float64, error) {
		return 1, nil
	})

	candidates := make([]Candidate, 5)
	for i := range candidates {
		candidates[i] = NewCandidate(i, map[string]any{"id": i})
	}

	result, err := Search(context.Background(), testConfig(), flat, candidates)
	require.NoError(t, err)

	// All scores equal: the earliest-generated candidate wins every tie.
	assert.Equal(t, 0, result.Best.Index())
}

func TestSearchTerminatesAtResourceCeiling(t *testing.T) {
	config := testConfig()
	config.MaxResource = 4

	candidates := make([]Candidate, 16)
	for i := range candidates {
		candidates[i] = NewCandidate(i, map[string]any{"max_depth": i})
	}

	result, err := Search(context.Background(), config, depthEvaluator(), candidates)
	require.NoError(t, err)

	// 16 candidates but only budgets 1, 2, 4 available: the final round
	// runs at the ceiling with 4 candidates still alive, and the
	// top-ranked of those wins.
	require.Len(t, result.Rounds, 3)
	assert.Equal(t, float64(4), result.Rounds[2].Resource)
	assert.Equal(t, 4, result.Rounds[2].CandidateCount)

	v, _ := result.Best.Get("max_depth")
	assert.Equal(t, 15, v)
}

func TestSearchAggressiveElimination(t *testing.T) {
	config := testConfig()
	config.MaxResource = 2

	candidates := make([]Candidate, 8)
	for i := range candidates {
		candidates[i] = NewCandidate(i, map[string]any{"max_depth": i})
	}

	// Without the flag the budget advances every round and the ceiling
	// round is contested by 4 candidates.
	result, err := Search(context.Background(), config, depthEvaluator(), candidates)
	require.NoError(t, err)

	require.Len(t, result.Rounds, 2)
	assert.Equal(t, []float64{1, 2}, roundResources(result))
	assert.Equal(t, 4, result.Rounds[1].CandidateCount)

	// With the flag, one extra elimination round runs at MinResource
	// first, so only 2 candidates reach the ceiling.
	config.AggressiveElimination = true

	result, err = Search(context.Background(), config, depthEvaluator(), candidates)
	require.NoError(t, err)

	require.Len(t, result.Rounds, 3)
	assert.Equal(t, []float64{1, 1, 2}, roundResources(result))
	assert.Equal(t, 2, result.Rounds[2].CandidateCount)

	v, _ := result.Best.Get("max_depth")
	assert.Equal(t, 7, v)
}

func roundResources(result Result) []float64 {
	out := make([]float64, len(result.Rounds))

	for i, r := range result.Rounds {
		out[i] = r.Resource
	}

	return out
}

func TestSearchScheduleProperties(t *testing.T) {
	config := DefaultSearchConfig()
	config.MinResource = 1
	config.MaxResource = 27
	config.HalvingFactor = 3
	config.MaxConcurrency = 4

	candidates, err := GenerateGrid([]GridParam{
		{Name: "a", Values: []any{1, 2, 3}},
		{Name: "b", Values: []any{1, 2, 3}},
		{Name: "max_depth", Values: []any{1, 2}},
	})
	require.NoError(t, err)
	require.Len(t, candidates, 18)

	result, err := Search(context.Background(), config, depthEvaluator(), candidates)
	require.NoError(t, err)

	// Bounded round count: ceil(log_f(n)) + 1.
	bound := int(math.Ceil(math.Log(18)/math.Log(3))) + 1
	assert.LessOrEqual(t, len(result.Rounds), bound)

	for i, round := range result.Rounds {
		assert.Equal(t, i, round.Round)
		assert.LessOrEqual(t, round.Resource, config.MaxResource)
		assert.GreaterOrEqual(t, round.SurvivorCount, 1)
		assert.LessOrEqual(t, round.SurvivorCount, round.CandidateCount)

		if i == 0 {
			continue
		}

		prev := result.Rounds[i-1]

		// Resource never shrinks, population never grows, and each
		// round's entrants are exactly the previous round's survivors.
		assert.GreaterOrEqual(t, round.Resource, prev.Resource)
		assert.Equal(t, prev.SurvivorCount, round.CandidateCount)
		assert.Less(t, round.CandidateCount, prev.CandidateCount)
	}
}

func TestSearchDeterminism(t *testing.T) {
	config := testConfig()
	config.Seed = 42
	config.MaxConcurrency = 4

	params := []RandomParam{
		{Name: "max_depth", Dist: Uniform[int]{Min: 1, Max: 50}},
		{Name: "criterion", Dist: Choice{Values: []any{"gini", "entropy"}}},
	}

	first, err := RandomSearch(context.Background(), config, depthEvaluator(), params, 20)
	require.NoError(t, err)

	second, err := RandomSearch(context.Background(), config, depthEvaluator(), params, 20)
	require.NoError(t, err)

	// Same seed and a deterministic evaluator: identical history, winner
	// and score, even with parallel evaluation.
	assert.Equal(t, first.Rounds, second.Rounds)
	assert.True(t, first.Best.Equal(second.Best))
	assert.Equal(t, first.Best.Index(), second.Best.Index())
	assert.Equal(t, first.BestScore, second.BestScore)
}

func TestSearchRespectsConcurrencyLimit(t *testing.T) {
	config := testConfig()
	config.MaxConcurrency = 2

	var inFlight, peak int64

	slow := EvaluatorFunc(func(_ context.Context, c Candidate, _ float64) (float64, error) {
		current := atomic.AddInt64(&inFlight, 1)
		defer atomic.AddInt64(&inFlight, -1)

		for {
			observed := atomic.LoadInt64(&peak)
			if current <= observed || atomic.CompareAndSwapInt64(&peak, observed, current) {
				break
			}
		}

		time.Sleep(5 * time.Millisecond)

		v, _ := c.Get("max_depth")

		return float64(v.(int)), nil
	})

	candidates := make([]Candidate, 12)
	for i := range candidates {
		candidates[i] = NewCandidate(i, map[string]any{"max_depth": i})
	}

	_, err := Search(context.Background(), config, slow, candidates)
	require.NoError(t, err)

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestSearchCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	blocking := EvaluatorFunc(func(ctx context.Context, _ Candidate, _ float64) (float64, error) {
		<-ctx.Done()

		return 0, ctx.Err()
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := Search(ctx, testConfig(), blocking, depthCandidates())

	assert.ErrorIs(t, err, context.Canceled)

	// No round completed, so no history was recorded.
	assert.Empty(t, result.Rounds)
}

func TestSearchProgressUpdates(t *testing.T) {
	config := testConfig()

	progressChan := make(chan ProgressUpdate, 16)
	config.ProgressChan = progressChan

	result, err := Search(context.Background(), config, depthEvaluator(), depthCandidates())
	require.NoError(t, err)

	close(progressChan)

	var updates []ProgressUpdate
	for update := range progressChan {
		updates = append(updates, update)
	}

	require.Len(t, updates, len(result.Rounds))

	for i, update := range updates {
		round := result.Rounds[i]

		assert.Equal(t, round.Round, update.Round)
		assert.Equal(t, round.Resource, update.Resource)
		assert.Equal(t, round.CandidateCount, update.CandidateCount)
		assert.Equal(t, round.SurvivorCount, update.SurvivorCount)
		assert.Equal(t, round.BestScore, update.BestScore)
		assert.NotNil(t, update.BestParams)
	}
}

func TestGridSearchEndToEnd(t *testing.T) {
	result, err := GridSearch(context.Background(), testConfig(), depthEvaluator(),
		[]GridParam{
			{Name: "max_depth", Values: []any{3, 5, 10, nil}},
			{Name: "min_samples_split", Values: []any{2, 5, 10}},
		},
	)
	require.NoError(t, err)

	v, _ := result.Best.Get("max_depth")
	assert.Equal(t, 10, v)

	// Generator errors surface as configuration errors before any round.
	_, err = GridSearch(context.Background(), testConfig(), depthEvaluator(),
		[]GridParam{{Name: "max_depth", Values: nil}},
	)

	var confErr *ConfigurationError
	assert.ErrorAs(t, err, &confErr)
}

func TestRandomSearchEndToEnd(t *testing.T) {
	config := testConfig()
	config.Seed = 7

	result, err := RandomSearch(context.Background(), config, depthEvaluator(),
		[]RandomParam{
			{Name: "max_depth", Dist: Uniform[int]{Min: 1, Max: 20}},
		},
		10,
	)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Rounds)
	assert.Equal(t, 10, result.Rounds[0].CandidateCount)

	// A non-positive sample count is rejected up front.
	_, err = RandomSearch(context.Background(), config, depthEvaluator(),
		[]RandomParam{{Name: "max_depth", Dist: Uniform[int]{Min: 1, Max: 20}}},
		0,
	)

	var confErr *ConfigurationError
	assert.ErrorAs(t, err, &confErr)
}
