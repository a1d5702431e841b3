package halving

import (
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"sort"
	"strings"

	"golang.org/x/exp/constraints"
)

//////
// Const, vars, types.
//////

// Candidate is one concrete assignment of values to all hyperparameters under
// search. A Candidate is created once, by a generator, and is immutable from
// then on: the search never rewrites a candidate's values, it only evaluates
// and eventually drops it.
//
// Identity vs equality:
//   - Identity is positional: Index() returns the candidate's position in
//     generation order. The search uses it as the deterministic tie-break
//     (earlier-generated candidate wins ties).
//   - Equality is value-based: Equal() compares the parameter mappings, not
//     the indices.
//
// Usage example:
//
//	c := candidates[0]
//	depth, ok := c.Get("max_depth")
//	if ok {
//	    fmt.Println("max_depth:", depth)
//	}
type Candidate struct {
	// index is the generation-order position. Assigned by the generator,
	// never changed afterwards.
	index int

	// params maps hyperparameter name to its concrete value. Treated as
	// read-only after construction; Params() hands out copies.
	params map[string]any
}

// GridParam declares one hyperparameter of a grid search: a name and the
// discrete list of values to enumerate. Declaration order matters: the first
// declared parameter varies slowest in the generated Cartesian product, the
// last varies fastest, which keeps the enumeration order deterministic.
type GridParam struct {
	// Name is the hyperparameter name, e.g. "max_depth".
	Name string

	// Values is the discrete list of values to try. Must be non-empty.
	Values []any
}

// RandomParam declares one hyperparameter of a randomized search: a name and
// the distribution its values are drawn from.
type RandomParam struct {
	// Name is the hyperparameter name, e.g. "learning_rate".
	Name string

	// Dist is the distribution to sample from. See Fixed, Choice, Uniform
	// and LogUniform for the built-in options.
	Dist Distribution
}

// Distribution is the sampling capability consumed by GenerateRandom. Each
// call draws one value using the provided pseudo-random source; the source is
// passed in explicitly so that a fixed seed reproduces the exact same
// candidate population (no ambient global randomness).
type Distribution interface {
	// Sample draws one value from the distribution.
	Sample(rng *rand.Rand) any

	// Validate reports whether the distribution is well-formed. Called once
	// by the generator before any sampling happens.
	Validate() error
}

// Fixed is a degenerate distribution that always yields the same value.
// Useful for pinning a hyperparameter while others vary.
type Fixed struct {
	Value any
}

// Choice draws uniformly from a discrete list of values.
type Choice struct {
	Values []any
}

// Uniform draws uniformly from a numeric range, inclusive of both bounds for
// integer types.
//
// Type Parameter:
//   - T: The numeric type for the range (e.g. int, int64, float64)
type Uniform[T constraints.Integer | constraints.Float] struct {
	Min T
	Max T
}

// LogUniform draws from a range whose logarithm is uniformly distributed.
// The common choice for scale-free hyperparameters such as learning rates or
// regularization strengths. Both bounds must be positive.
type LogUniform struct {
	Min float64
	Max float64
}

//////
// Exported functionalities.
//////

// Index returns the candidate's generation-order position. Earlier indices
// win score ties during elimination.
func (c Candidate) Index() int {
	return c.index
}

// Get returns the value assigned to the named hyperparameter and whether the
// hyperparameter exists in this candidate.
func (c Candidate) Get(name string) (any, bool) {
	v, ok := c.params[name]

	return v, ok
}

// Params returns a copy of the candidate's full parameter mapping. The copy
// keeps Candidate effectively immutable: mutating the returned map does not
// affect the candidate.
func (c Candidate) Params() map[string]any {
	out := make(map[string]any, len(c.params))

	for k, v := range c.params {
		out[k] = v
	}

	return out
}

// Equal reports whether two candidates assign the same values to the same
// hyperparameters. Indices are deliberately ignored: equality is value-based.
func (c Candidate) Equal(other Candidate) bool {
	return reflect.DeepEqual(c.params, other.params)
}

// String renders the candidate as "{name=value, ...}" with names in sorted
// order, for logs and test failure messages.
func (c Candidate) String() string {
	names := make([]string, 0, len(c.params))
	for name := range c.params {
		names = append(names, name)
	}

	sort.Strings(names)

	var b strings.Builder

	b.WriteByte('{')

	for i, name := range names {
		if i > 0 {
			b.WriteString(", ")
		}

		fmt.Fprintf(&b, "%s=%v", name, c.params[name])
	}

	b.WriteByte('}')

	return b.String()
}

// NewCandidate builds a candidate directly from a parameter mapping. Intended
// for callers that already have concrete configurations (or for tests); the
// mapping is copied, so later mutation of params does not leak in.
func NewCandidate(index int, params map[string]any) Candidate {
	copied := make(map[string]any, len(params))

	for k, v := range params {
		copied[k] = v
	}

	return Candidate{index: index, params: copied}
}

// GenerateGrid returns the full Cartesian product of the declared per-parameter
// value lists as an ordered candidate population.
//
// The enumeration order is deterministic and follows declaration order: the
// first declared parameter varies slowest, the last varies fastest. Candidate
// indices follow that enumeration order, which is what the search's tie-break
// rule keys on.
//
// Returns:
// - []Candidate: One candidate per value combination.
// - error: A *ConfigurationError if no parameters are declared or any value list is empty.
//
// Usage example:
//
//	candidates, err := halving.GenerateGrid([]halving.GridParam{
//	    {Name: "max_depth", Values: []any{3, 5, 10}},
//	    {Name: "criterion", Values: []any{"gini", "entropy"}},
//	})
//	// 6 candidates: (3,gini), (3,entropy), (5,gini), ...
func GenerateGrid(params []GridParam) ([]Candidate, error) {
	if len(params) == 0 {
		return nil, &ConfigurationError{Field: "params", Reason: "no grid parameters declared"}
	}

	total := 1

	for _, p := range params {
		if len(p.Values) == 0 {
			return nil, &ConfigurationError{
				Field:  "params",
				Reason: fmt.Sprintf("parameter %q has an empty value list", p.Name),
			}
		}

		total *= len(p.Values)
	}

	candidates := make([]Candidate, 0, total)

	// Odometer enumeration: counters[i] indexes into params[i].Values, with
	// the last counter incremented first so the last declared parameter
	// varies fastest.
	counters := make([]int, len(params))

	for i := 0; i < total; i++ {
		assignment := make(map[string]any, len(params))

		for j, p := range params {
			assignment[p.Name] = p.Values[counters[j]]
		}

		candidates = append(candidates, Candidate{index: i, params: assignment})

		for j := len(counters) - 1; j >= 0; j-- {
			counters[j]++

			if counters[j] < len(params[j].Values) {
				break
			}

			counters[j] = 0
		}
	}

	return candidates, nil
}

// GenerateRandom returns count candidates, each parameter value drawn
// independently from its declared distribution using a pseudo-random source
// seeded with seed. The same seed always reproduces the same population.
//
// Returns:
// - []Candidate: Exactly count candidates, indexed in generation order.
// - error: A *ConfigurationError if count <= 0, no parameters are declared, or any distribution is malformed.
//
// Usage example:
//
//	candidates, err := halving.GenerateRandom([]halving.RandomParam{
//	    {Name: "max_depth", Dist: halving.Uniform[int]{Min: 2, Max: 12}},
//	    {Name: "learning_rate", Dist: halving.LogUniform{Min: 1e-4, Max: 1e-1}},
//	    {Name: "criterion", Dist: halving.Choice{Values: []any{"gini", "entropy"}}},
//	}, 20, 42)
func GenerateRandom(params []RandomParam, count int, seed int64) ([]Candidate, error) {
	if count <= 0 {
		return nil, &ConfigurationError{
			Field:  "count",
			Reason: fmt.Sprintf("must be positive, got %d", count),
		}
	}

	if len(params) == 0 {
		return nil, &ConfigurationError{Field: "params", Reason: "no random parameters declared"}
	}

	for _, p := range params {
		if p.Dist == nil {
			return nil, &ConfigurationError{
				Field:  "params",
				Reason: fmt.Sprintf("parameter %q has a nil distribution", p.Name),
			}
		}

		if err := p.Dist.Validate(); err != nil {
			return nil, &ConfigurationError{
				Field:  "params",
				Reason: fmt.Sprintf("parameter %q: %v", p.Name, err),
			}
		}
	}

	// Explicit, locally-owned source. The seed fully determines the
	// population; no ambient global seeding is consulted.
	rng := rand.New(rand.NewSource(seed))

	candidates := make([]Candidate, 0, count)

	for i := 0; i < count; i++ {
		assignment := make(map[string]any, len(params))

		for _, p := range params {
			assignment[p.Name] = p.Dist.Sample(rng)
		}

		candidates = append(candidates, Candidate{index: i, params: assignment})
	}

	return candidates, nil
}

//////
// Distribution implementations.
//////

// Sample always returns the fixed value.
func (f Fixed) Sample(_ *rand.Rand) any { return f.Value }

// Validate always succeeds; any value, including nil, is a legal constant.
func (f Fixed) Validate() error { return nil }

// Sample draws one value uniformly from the list.
func (c Choice) Sample(rng *rand.Rand) any {
	return c.Values[rng.Intn(len(c.Values))]
}

// Validate fails on an empty value list.
func (c Choice) Validate() error {
	if len(c.Values) == 0 {
		return fmt.Errorf("choice distribution has no values")
	}

	return nil
}

// Sample draws uniformly from [Min, Max]. Integer types sample inclusively on
// both ends; float types sample from the half-open interval [Min, Max).
func (u Uniform[T]) Sample(rng *rand.Rand) any {
	switch any(u.Min).(type) {
	case float32, float64:
		min := float64(u.Min)
		max := float64(u.Max)

		return T(min + rng.Float64()*(max-min))
	default:
		min := int64(u.Min)
		max := int64(u.Max)

		return T(min + rng.Int63n(max-min+1))
	}
}

// Validate fails when the range is inverted.
func (u Uniform[T]) Validate() error {
	if u.Min > u.Max {
		return fmt.Errorf("uniform range inverted: min %v > max %v", u.Min, u.Max)
	}

	return nil
}

// Sample draws a value whose logarithm is uniform over [log Min, log Max).
func (l LogUniform) Sample(rng *rand.Rand) any {
	lo := math.Log(l.Min)
	hi := math.Log(l.Max)

	return math.Exp(lo + rng.Float64()*(hi-lo))
}

// Validate fails on non-positive or inverted bounds.
func (l LogUniform) Validate() error {
	if l.Min <= 0 || l.Max <= 0 {
		return fmt.Errorf("log-uniform bounds must be positive, got [%v, %v]", l.Min, l.Max)
	}

	if l.Min > l.Max {
		return fmt.Errorf("log-uniform range inverted: min %v > max %v", l.Min, l.Max)
	}

	return nil
}
