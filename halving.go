package halving

import (
	"context"
	"math"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"
)

//////
// Exported functionalities.
//////

// DefaultSearchConfig returns a default configuration.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		MinResource:           1,
		MaxResource:           81,
		HalvingFactor:         3,
		AggressiveElimination: false,
		Seed:                  time.Now().UnixNano(),
		MaxConcurrency:        runtime.NumCPU(),
		ProgressChan:          nil, // Default to no progress updates.
	}
}

// Search runs the successive-halving elimination tournament over an explicit
// candidate population and returns the single best candidate.
//
// Parameters:
// - ctx: Cancels in-flight evaluations; the search returns ctx's error with the history so far
// - config: SearchConfig controlling the resource schedule and concurrency
// - evaluator: The external scoring collaborator (higher scores win)
// - candidates: The initial population, in generation order
//
// Returns:
// - Result: Best candidate, its final-round score, and the per-round history
// - error: *ConfigurationError, *AllCandidatesFailedError, or a context error
//
// How it works:
//  1. Round 0 evaluates the full population at MinResource.
//  2. Each round scores every surviving candidate at the round's budget,
//     ranks them (score descending, earliest generation order breaking
//     ties), and keeps the top ceil(n / HalvingFactor), minimum 1.
//  3. The budget is multiplied by HalvingFactor between rounds, clamped to
//     MaxResource. With AggressiveElimination, oversized populations first
//     burn extra elimination rounds at MinResource (see SearchConfig).
//  4. The search stops after a round that started with a single candidate,
//     or after a round executed at MaxResource; the top-ranked survivor of
//     that final round wins.
//
// Important notes:
// - Evaluations within a round run in parallel, bounded by MaxConcurrency,
//   with a full barrier before elimination: no candidate is ever scored at
//   the next budget until the whole round settles.
// - A failed evaluation ranks its candidate at -Inf (eliminated) without
//   aborting the search; a round where every candidate fails aborts with
//   *AllCandidatesFailedError.
// - Eliminated candidates are never resurrected, and scores are never reused
//   across resource levels.
// - Each round's survivor list is a fresh slice; the caller's candidates
//   slice is not mutated.
func Search(ctx context.Context, config SearchConfig, evaluator Evaluator, candidates []Candidate) (Result, error) {
	if err := validateSearchConfig(config); err != nil {
		return Result{}, err
	}

	if evaluator == nil {
		return Result{}, &ConfigurationError{Field: "evaluator", Reason: "must not be nil"}
	}

	if len(candidates) == 0 {
		return Result{}, &ConfigurationError{Field: "candidates", Reason: "initial population is empty"}
	}

	// The population slice is replaced wholesale at every round boundary.
	// Snapshotting here keeps the caller's slice untouched.
	population := make([]Candidate, len(candidates))
	copy(population, candidates)

	resource := config.MinResource

	// Number of leading rounds that hold the budget at MinResource. Zero
	// unless AggressiveElimination is on and the population outnumbers the
	// resource schedule.
	holdRounds := 0
	if config.AggressiveElimination {
		holdRounds = extraEliminationRounds(len(population), config)
	}

	var history []RoundSummary

	for round := 0; ; round++ {
		scores, evalErrs := evaluateRound(ctx, config, evaluator, population, resource)

		if err := ctx.Err(); err != nil {
			return Result{Rounds: history}, err
		}

		if len(evalErrs) == len(population) {
			return Result{Rounds: history}, &AllCandidatesFailedError{
				Round:          round,
				Resource:       resource,
				CandidateCount: len(population),
				Errors:         evalErrs,
			}
		}

		ranked := rankRound(population, scores)
		keep := survivorCount(len(population), config.HalvingFactor)

		history = append(history, RoundSummary{
			Round:          round,
			Resource:       resource,
			CandidateCount: len(population),
			SurvivorCount:  keep,
			BestScore:      ranked[0].score,
		})

		sendProgress(config, ProgressUpdate{
			Round:          round,
			Resource:       resource,
			CandidateCount: len(population),
			SurvivorCount:  keep,
			BestScore:      ranked[0].score,
			BestParams:     ranked[0].candidate.Params(),
		})

		// Final round: either this round already ran the last survivor, or
		// it ran at the resource ceiling. Either way one last ranking pass
		// has now happened, so the leader is the winner.
		if len(population) == 1 || resource >= config.MaxResource {
			return Result{
				Best:      ranked[0].candidate,
				BestScore: ranked[0].score,
				Rounds:    history,
			}, nil
		}

		survivors := make([]Candidate, keep)
		for i := 0; i < keep; i++ {
			survivors[i] = ranked[i].candidate
		}

		population = survivors

		if holdRounds > 0 {
			holdRounds--
		} else {
			resource = math.Min(resource*config.HalvingFactor, config.MaxResource)
		}
	}
}

// GridSearch runs a successive-halving search over the full Cartesian product
// of the declared parameter grid. It differs from RandomSearch only in how
// the initial population is produced; the elimination tournament is identical.
//
// Usage example:
//
//	result, err := halving.GridSearch(ctx, halving.DefaultSearchConfig(), evaluator,
//	    []halving.GridParam{
//	        {Name: "max_depth", Values: []any{3, 5, 10, nil}},
//	        {Name: "min_samples_split", Values: []any{2, 5, 10}},
//	    },
//	)
func GridSearch(ctx context.Context, config SearchConfig, evaluator Evaluator, params []GridParam) (Result, error) {
	candidates, err := GenerateGrid(params)
	if err != nil {
		return Result{}, err
	}

	return Search(ctx, config, evaluator, candidates)
}

// RandomSearch runs a successive-halving search over count candidates sampled
// from the declared per-parameter distributions, seeded by config.Seed for
// reproducibility. It differs from GridSearch only in how the initial
// population is produced; the elimination tournament is identical.
//
// Usage example:
//
//	config := halving.DefaultSearchConfig()
//	config.Seed = 42
//
//	result, err := halving.RandomSearch(ctx, config, evaluator,
//	    []halving.RandomParam{
//	        {Name: "max_depth", Dist: halving.Uniform[int]{Min: 2, Max: 12}},
//	        {Name: "criterion", Dist: halving.Choice{Values: []any{"gini", "entropy"}}},
//	    },
//	    20,
//	)
func RandomSearch(ctx context.Context, config SearchConfig, evaluator Evaluator, params []RandomParam, count int) (Result, error) {
	candidates, err := GenerateRandom(params, count, config.Seed)
	if err != nil {
		return Result{}, err
	}

	return Search(ctx, config, evaluator, candidates)
}

//////
// Unexported functionalities.
//////

// evaluateRound scores every candidate in population at the given resource
// budget, running at most config.MaxConcurrency Evaluator calls in parallel.
// It returns the scores aligned with population (failed or NaN evaluations
// mapped to -Inf) and the per-candidate evaluation errors.
//
// All goroutines have joined by the time evaluateRound returns: this is the
// between-rounds synchronization barrier. Cancellation is cooperative; a
// canceled ctx stops new evaluations from starting and the caller discards
// the round by checking ctx.Err() afterwards.
func evaluateRound(
	ctx context.Context,
	config SearchConfig,
	evaluator Evaluator,
	population []Candidate,
	resource float64,
) ([]float64, []error) {
	scores := make([]float64, len(population))
	failures := make([]error, len(population))

	// Each goroutine writes only its own slot, so no mutex is needed; the
	// pool's Wait() is the memory barrier.
	p := pool.New().WithMaxGoroutines(config.MaxConcurrency)

	for i := range population {
		p.Go(func() {
			if err := ctx.Err(); err != nil {
				scores[i] = math.Inf(-1)
				failures[i] = err

				return
			}

			score, err := evaluator.Score(ctx, population[i], resource)
			if err != nil {
				scores[i] = math.Inf(-1)
				failures[i] = &EvaluationError{
					CandidateIndex: population[i].Index(),
					Resource:       resource,
					Err:            err,
				}

				return
			}

			// NaN cannot be ranked; treat it as a failed evaluation score.
			if math.IsNaN(score) {
				score = math.Inf(-1)
			}

			scores[i] = score
		})
	}

	p.Wait()

	evalErrs := make([]error, 0, len(population))

	for _, err := range failures {
		if err != nil {
			evalErrs = append(evalErrs, err)
		}
	}

	return scores, evalErrs
}

// sendProgress delivers a progress update without ever blocking the search.
func sendProgress(config SearchConfig, update ProgressUpdate) {
	if config.ProgressChan == nil {
		return
	}

	select {
	case config.ProgressChan <- update:
	default:
		// Skip update if channel is full.
	}
}
