package halving

import (
	"errors"
	"fmt"
)

//////
// Error taxonomy.
//
// Three failure classes, with different blast radii:
//   - ConfigurationError: bad inputs, detected before any evaluation runs.
//     Always fatal to the call.
//   - EvaluationError: one candidate failed at one resource level. Recovered
//     locally by ranking that candidate at -Inf; never fatal on its own.
//   - AllCandidatesFailedError: an entire round failed. Fatal, carries the
//     round context and the underlying per-candidate errors.
//
// The search never retries; retry policy, if any, belongs inside the
// Evaluator implementation.
//////

// ConfigurationError reports invalid search or generator inputs. It is
// returned before any Evaluator call is made.
type ConfigurationError struct {
	// Field names the offending configuration field or parameter group.
	Field string

	// Reason describes what is wrong with it.
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("halving: invalid configuration: %s: %s", e.Field, e.Reason)
}

// EvaluationError wraps a single failed Evaluator call. The search recovers
// from these locally (the candidate is ranked at -Inf and eliminated), but
// they are preserved so that an AllCandidatesFailedError can expose them.
type EvaluationError struct {
	// CandidateIndex is the failed candidate's generation-order index.
	CandidateIndex int

	// Resource is the budget the candidate was being evaluated at.
	Resource float64

	// Err is the underlying Evaluator error.
	Err error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf(
		"halving: evaluation of candidate %d at resource %g failed: %v",
		e.CandidateIndex, e.Resource, e.Err,
	)
}

// Unwrap exposes the underlying Evaluator error to errors.Is/As.
func (e *EvaluationError) Unwrap() error { return e.Err }

// AllCandidatesFailedError reports a round in which every surviving
// candidate's evaluation failed. The search cannot rank an all-failed round,
// so the call aborts with the round's full context attached.
type AllCandidatesFailedError struct {
	// Round is the zero-based index of the failed round.
	Round int

	// Resource is the budget the round ran at.
	Resource float64

	// CandidateCount is how many candidates were evaluated (and failed).
	CandidateCount int

	// Errors holds one *EvaluationError per failed candidate.
	Errors []error
}

// Error implements the error interface.
func (e *AllCandidatesFailedError) Error() string {
	return fmt.Sprintf(
		"halving: all %d candidates failed in round %d at resource %g",
		e.CandidateCount, e.Round, e.Resource,
	)
}

// Unwrap exposes the joined per-candidate errors to errors.Is/As.
func (e *AllCandidatesFailedError) Unwrap() error { return errors.Join(e.Errors...) }
