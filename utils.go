package halving

import (
	"fmt"
	"math"
	"sort"
)

//////
// Helper functions.
//////

// scored pairs a candidate with its score for one round. Rounds rank scored
// values; the candidate list itself never carries scores, because a score is
// only meaningful at the resource level it was observed at.
type scored struct {
	candidate Candidate
	score     float64
}

// rankRound orders one round's candidates best-first: score descending, ties
// broken by earliest generation order. The sort is stable and keys on
// Candidate.Index(), so a fixed seed and deterministic evaluator yield the
// exact same ranking on every run.
//
// Parameters:
// - population: The round's candidates
// - scores: Scores aligned with population (failures already mapped to -Inf)
//
// Returns:
// - []scored: A new best-first slice; population itself is not reordered.
func rankRound(population []Candidate, scores []float64) []scored {
	ranked := make([]scored, len(population))

	for i, c := range population {
		ranked[i] = scored{candidate: c, score: scores[i]}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}

		// Earlier-generated candidate wins ties.
		return ranked[i].candidate.Index() < ranked[j].candidate.Index()
	})

	return ranked
}

// survivorCount returns how many candidates a round of size n keeps:
// ceil(n / factor), never below 1.
func survivorCount(n int, factor float64) int {
	keep := int(math.Ceil(float64(n) / factor))

	if keep < 1 {
		return 1
	}

	return keep
}

// extraEliminationRounds computes how many leading rounds must reuse
// MinResource when AggressiveElimination is on.
//
// With f = HalvingFactor there are s = floor(log_f(MaxResource/MinResource))+1
// distinct budget levels available, and collapsing n candidates to one takes
// ceil(log_f(n)) elimination rounds. When the population needs more rounds
// than there are budget levels, the surplus rounds run at MinResource so the
// top tier is reached by a population small enough to be worth it. The rule
// is a pure function of (n, config): deterministic and independent of scores.
func extraEliminationRounds(n int, config SearchConfig) int {
	if n <= 1 {
		return 0
	}

	logf := math.Log(config.HalvingFactor)

	budgetLevels := int(math.Floor(math.Log(config.MaxResource/config.MinResource)/logf)) + 1
	eliminationRounds := int(math.Ceil(math.Log(float64(n)) / logf))

	if extra := eliminationRounds - budgetLevels; extra > 0 {
		return extra
	}

	return 0
}

// validateSearchConfig fail-fasts on invalid configurations, before any
// Evaluator call is made.
func validateSearchConfig(config SearchConfig) error {
	if config.MinResource <= 0 {
		return &ConfigurationError{
			Field:  "MinResource",
			Reason: fmt.Sprintf("must be positive, got %g", config.MinResource),
		}
	}

	if config.MaxResource < config.MinResource {
		return &ConfigurationError{
			Field: "MaxResource",
			Reason: fmt.Sprintf(
				"must be >= MinResource, got min %g > max %g",
				config.MinResource, config.MaxResource,
			),
		}
	}

	if config.HalvingFactor <= 1 {
		return &ConfigurationError{
			Field:  "HalvingFactor",
			Reason: fmt.Sprintf("must be > 1, got %g", config.HalvingFactor),
		}
	}

	if config.MaxConcurrency < 1 {
		return &ConfigurationError{
			Field:  "MaxConcurrency",
			Reason: fmt.Sprintf("must be >= 1, got %d", config.MaxConcurrency),
		}
	}

	return nil
}
