// Package halving provides hyperparameter search via successive halving: an
// elimination tournament that evaluates a shrinking population of candidate
// configurations at a growing resource budget, spending most of the
// evaluation budget on the candidates that earn it.
//
// # Features
//
// The package includes the following key features:
//
//   - Successive Halving: Iterative elimination under a multiplicatively
//     growing resource budget, with a deterministic survivor schedule
//   - Two Population Sources: Exhaustive grid enumeration (GridSearch) and
//     seeded random sampling from per-parameter distributions (RandomSearch)
//   - Pluggable Evaluator: All model fitting and scoring is delegated to an
//     injected Evaluator; the search owns only the tournament
//   - Bounded Parallelism: Evaluations within a round run concurrently up to
//     a configured limit, with a full barrier between rounds
//   - Cancellation: Context-aware; in-flight rounds stop cleanly without
//     corrupting the history of completed rounds
//   - Deterministic Results: Fixed seed + deterministic Evaluator reproduces
//     the exact round-by-round survivor sets and winner
//   - Progress Monitoring: Per-round updates via a non-blocking channel
//   - Robust Error Handling: A failed evaluation eliminates one candidate,
//     never the whole search; an all-failed round aborts with full context
//
// # Installation
//
// To install the package, use:
//
//	go get github.com/thalesfsp/halving
//
// # Quick Start
//
// Define the search space, supply an Evaluator, run a variant:
//
//	evaluator := halving.EvaluatorFunc(
//	    func(ctx context.Context, c halving.Candidate, resource float64) (float64, error) {
//	        // Fit your model on int(resource) samples and return its score.
//	        return trainAndScore(ctx, c.Params(), int(resource))
//	    },
//	)
//
//	config := halving.DefaultSearchConfig()
//	config.MinResource = 20
//	config.MaxResource = 1000
//
//	result, err := halving.GridSearch(ctx, config, evaluator,
//	    []halving.GridParam{
//	        {Name: "max_depth", Values: []any{3, 5, 10, nil}},
//	        {Name: "min_samples_split", Values: []any{2, 5, 10}},
//	    },
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("best:", result.Best, "score:", result.BestScore)
//
// The randomized variant swaps the grid for distributions:
//
//	config.Seed = 42
//
//	result, err := halving.RandomSearch(ctx, config, evaluator,
//	    []halving.RandomParam{
//	        {Name: "max_depth", Dist: halving.Uniform[int]{Min: 2, Max: 12}},
//	        {Name: "learning_rate", Dist: halving.LogUniform{Min: 1e-4, Max: 1e-1}},
//	        {Name: "criterion", Dist: halving.Choice{Values: []any{"gini", "entropy"}}},
//	    },
//	    30,
//	)
//
// # How It Works
//
// 1. Round 0 evaluates every candidate at MinResource.
//
// 2. Each round ranks the survivors by score (descending, ties to the
// earliest-generated candidate) and keeps the top ceil(n / HalvingFactor).
//
// 3. The budget is multiplied by HalvingFactor between rounds, clamped to
// MaxResource.
//
// 4. The search ends after a round that began with one candidate, or after a
// round executed at MaxResource; the leader of that final round wins.
//
// With AggressiveElimination enabled, populations too large for the resource
// schedule burn their surplus elimination rounds at MinResource first, so the
// top resource tier is contested by a small field.
//
// # Configuration
//
// The SearchConfig struct allows customization of the search:
//
//	type SearchConfig struct {
//	    MinResource           float64 // Round 0 budget
//	    MaxResource           float64 // Budget ceiling
//	    HalvingFactor         float64 // Budget multiplier / survivor divisor
//	    AggressiveElimination bool    // Extra low-budget elimination rounds
//	    Seed                  int64   // Random-population seed
//	    MaxConcurrency        int     // Parallel evaluations per round
//	    ProgressChan          chan<- ProgressUpdate // For progress monitoring
//	}
//
// Recommended settings:
//   - HalvingFactor: 2-3 (3 eliminates faster, 2 gives candidates more chances)
//   - MinResource: large enough that round-0 scores are better than noise
//   - MaxConcurrency: number of cores, or fewer if the Evaluator is itself parallel
//
// # Thread Safety
//
// All components are designed to be thread-safe:
//   - Safe for concurrent searches with different configs
//   - Within a round, each evaluation writes only its own result slot
//   - Rounds are separated by a full synchronization barrier
//   - Progress channel sends never block the search
//
// # Contributing
//
// To contribute to the project:
//  1. Fork the repository
//  2. Clone your fork
//  3. Create a feature branch
//  4. Make your changes
//  5. Run tests
//  6. Create a pull request
package halving
