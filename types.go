package halving

import "context"

// Evaluator is the external collaborator that scores a candidate at a given
// resource budget. The search treats it as a black box: it may block for an
// arbitrary, resource-dependent amount of time, and it may be called
// concurrently for different candidates within the same round.
//
// Contract:
//   - Higher scores are better.
//   - Each call is independent. The same candidate is re-evaluated from
//     scratch at every resource level it survives to; implementations must
//     not assume residual state between calls.
//   - An error return marks that candidate's score as -Inf for the round
//     (guaranteed elimination) without aborting the search, unless every
//     candidate in the round errors.
//   - Implementations should honor ctx cancellation for expensive work.
//
// Usage example:
//
//	type cvEvaluator struct{ data *Dataset }
//
//	func (e *cvEvaluator) Score(ctx context.Context, c halving.Candidate, resource float64) (float64, error) {
//	    subset := e.data.Sample(int(resource))
//	    return crossValidate(ctx, c.Params(), subset)
//	}
type Evaluator interface {
	// Score evaluates candidate at the given resource budget and returns its
	// fitness (higher is better).
	Score(ctx context.Context, candidate Candidate, resource float64) (float64, error)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, candidate Candidate, resource float64) (float64, error)

// Score implements Evaluator.
func (f EvaluatorFunc) Score(ctx context.Context, candidate Candidate, resource float64) (float64, error) {
	return f(ctx, candidate, resource)
}

// SearchConfig holds all knobs of the successive-halving search. Start from
// DefaultSearchConfig() and adjust; every field is validated before the first
// Evaluator call, and invalid combinations fail fast with a
// *ConfigurationError.
type SearchConfig struct {
	// MinResource is the resource budget of round 0. Must be positive.
	// The unit is whatever the Evaluator interprets it as: a sample count,
	// a training-iteration count, an epoch budget.
	MinResource float64

	// MaxResource is the resource ceiling. Must be >= MinResource. The
	// schedule never exceeds it: the budget grows by HalvingFactor each
	// round and clamps to MaxResource on the final step.
	MaxResource float64

	// HalvingFactor controls both sides of the tournament: the resource
	// budget is multiplied by it between rounds, and the surviving
	// population is divided by it. Must be > 1. 2 and 3 are the usual
	// choices; 3 is the default.
	HalvingFactor float64

	// AggressiveElimination, when set, runs extra elimination rounds at
	// MinResource before the budget starts growing, whenever the initial
	// population is too large for the resource schedule to whittle down to
	// a single candidate. This avoids spending the top resource tier on a
	// crowd. The rule is deterministic: with f = HalvingFactor, n initial
	// candidates, and s = floor(log_f(MaxResource/MinResource)) + 1
	// schedulable resource levels, the first max(0, ceil(log_f(n)) - s)
	// rounds reuse MinResource instead of advancing the budget.
	AggressiveElimination bool

	// Seed feeds the candidate generator of RandomSearch. Searches over an
	// explicit candidate list ignore it. A fixed seed plus a deterministic
	// Evaluator reproduces the run exactly, round by round.
	Seed int64

	// MaxConcurrency bounds how many Evaluator calls run in parallel within
	// a round. Must be >= 1; 1 means strictly sequential evaluation.
	// Rounds are always separated by a full barrier regardless of this
	// setting.
	MaxConcurrency int

	// ProgressChan receives one update per completed round. If nil, no
	// updates are sent. Sends are non-blocking: when the channel is full
	// the update is dropped, so a slow consumer can never stall the search.
	ProgressChan chan<- ProgressUpdate
}

// ProgressUpdate describes one completed round, sent on
// SearchConfig.ProgressChan as the search runs.
type ProgressUpdate struct {
	// Round is the zero-based round index.
	Round int

	// Resource is the budget every candidate was evaluated at this round.
	Resource float64

	// CandidateCount is how many candidates entered the round.
	CandidateCount int

	// SurvivorCount is how many candidates the round's elimination kept.
	SurvivorCount int

	// BestScore is the highest score observed this round.
	BestScore float64

	// BestParams holds the round leader's parameter assignment.
	BestParams map[string]any
}

// RoundSummary is the per-round history entry kept in the Result: enough to
// reconstruct the elimination trajectory for reporting or debugging, without
// retaining every eliminated candidate.
type RoundSummary struct {
	// Round is the zero-based round index.
	Round int

	// Resource is the budget of this round.
	Resource float64

	// CandidateCount is the population size entering the round.
	CandidateCount int

	// SurvivorCount is the population size after elimination.
	SurvivorCount int

	// BestScore is the highest score observed in the round.
	BestScore float64
}

// Result is what a completed search returns: the winning candidate, its
// last-observed score, and the full round-by-round history.
type Result struct {
	// Best is the single highest-ranked surviving candidate.
	Best Candidate

	// BestScore is Best's score from the final round. Scores at lower
	// resource levels are never reused across rounds, so this is always a
	// fresh observation at the final round's budget.
	BestScore float64

	// Rounds is the complete elimination history, one entry per round in
	// execution order.
	Rounds []RoundSummary
}
