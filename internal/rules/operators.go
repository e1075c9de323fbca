// internal/rules/operators.go
package rules

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/solatis/quotekeeper/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Implements the closed operator set in four families:
 *   - Equality: eq/neq/gt/gte/lt/lte, in/nin (set membership)
 *   - String: like/notlike (case-sensitive substring), ilike/nilike
 *     (case-insensitive substring), regex
 *   - Date: before/after, between (inclusive [start, end])
 *   - Existence: exists/notexists
 *
 * Absent actual values (nil) short-circuit: only notexists holds. Every
 * other operator yields false. Incompatible operand types yield false, never
 * a panic. Unknown operators yield false plus ErrUnknownOperator so callers
 * can surface a diagnostic.
 *
 * Ordering: numbers compare numerically (float64/int mixing allowed), strings
 * lexically, time.Time chronologically. Mixed kinds are incomparable.
 */

// Operator is a condition operator as persisted in rule JSON.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNeq Operator = "neq"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpIn  Operator = "in"
	OpNin Operator = "nin"

	OpLike     Operator = "like"
	OpNotLike  Operator = "notlike"
	OpILike    Operator = "ilike"
	OpNotILike Operator = "nilike"
	OpRegex    Operator = "regex"

	OpBefore  Operator = "before"
	OpAfter   Operator = "after"
	OpBetween Operator = "between"

	OpExists    Operator = "exists"
	OpNotExists Operator = "notexists"
)

// Family groups operators by operand expectations.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyEquality
	FamilyString
	FamilyDate
	FamilyExistence
)

// Family returns the operator family, FamilyUnknown for operators outside
// the closed set.
func (op Operator) Family() Family {
	switch op {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte, OpIn, OpNin:
		return FamilyEquality
	case OpLike, OpNotLike, OpILike, OpNotILike, OpRegex:
		return FamilyString
	case OpBefore, OpAfter, OpBetween:
		return FamilyDate
	case OpExists, OpNotExists:
		return FamilyExistence
	default:
		return FamilyUnknown
	}
}

// Valid reports whether op belongs to the closed operator set.
func (op Operator) Valid() bool {
	return op.Family() != FamilyUnknown
}

// EvaluateOperator applies op to the actual value from the quote and the
// comparison value from the condition. Never panics; unknown operators and
// incompatible operands evaluate to false.
func EvaluateOperator(op Operator, actual, compare any) bool {
	matched, _ := evaluateOperator(op, actual, compare, nil)
	return matched
}

// evaluateOperator is EvaluateOperator with a diagnostic error and an
// optional pre-compiled pattern for regex. The error never changes the
// verdict; it only explains a false.
func evaluateOperator(op Operator, actual, compare any, pattern *regexp.Regexp) (bool, error) {
	if !op.Valid() {
		return false, fmt.Errorf("%w: %q", types.ErrUnknownOperator, string(op))
	}
	if actual == nil {
		return op == OpNotExists, nil
	}

	switch op {
	case OpEq:
		return valuesEqual(actual, compare), nil
	case OpNeq:
		return !valuesEqual(actual, compare), nil
	case OpLt:
		c, ok := compareOrdered(actual, compare)
		return ok && c < 0, nil
	case OpLte:
		c, ok := compareOrdered(actual, compare)
		return ok && c <= 0, nil
	case OpGt:
		c, ok := compareOrdered(actual, compare)
		return ok && c > 0, nil
	case OpGte:
		c, ok := compareOrdered(actual, compare)
		return ok && c >= 0, nil
	case OpIn:
		set, ok := asSlice(compare)
		return ok && containsValue(set, actual), nil
	case OpNin:
		set, ok := asSlice(compare)
		return ok && !containsValue(set, actual), nil

	case OpLike:
		return substring(actual, compare, false, false), nil
	case OpNotLike:
		return substring(actual, compare, false, true), nil
	case OpILike:
		return substring(actual, compare, true, false), nil
	case OpNotILike:
		return substring(actual, compare, true, true), nil
	case OpRegex:
		return matchPattern(actual, compare, pattern)

	case OpBefore:
		a, b, ok := asDates(actual, compare)
		return ok && a.Before(b), nil
	case OpAfter:
		a, b, ok := asDates(actual, compare)
		return ok && a.After(b), nil
	case OpBetween:
		return dateBetween(actual, compare), nil

	case OpExists:
		return true, nil
	case OpNotExists:
		return false, nil
	}
	return false, nil
}

// valuesEqual compares with numeric tolerance across int/float kinds.
// Only scalar kinds compare equal; slices and maps never do.
func valuesEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	default:
		return false
	}
}

// compareOrdered performs three-way comparison (-1/0/1).
// Second return is false for incomparable operands.
func compareOrdered(a, b any) (int, bool) {
	if na, nb, ok := asNumbers(a, b); ok {
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		default:
			return 0, true
		}
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	default:
		return 0, false
	}
}

// asNumbers converts both values to float64 when both are numeric.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts numeric kinds produced by JSON decoding or Go callers.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case types.Amount:
		return n.Float64(), true
	default:
		return 0, false
	}
}

// asSlice accepts the slice shapes a comparison value arrives in.
func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	default:
		return nil, false
	}
}

// containsValue checks membership using equality semantics.
func containsValue(set []any, v any) bool {
	for _, elem := range set {
		if valuesEqual(v, elem) {
			return true
		}
	}
	return false
}

// substring implements like/ilike and their negations.
// Both operands must be strings; otherwise the condition fails (negations
// included).
func substring(actual, compare any, fold, negate bool) bool {
	as, ok1 := actual.(string)
	cs, ok2 := compare.(string)
	if !ok1 || !ok2 {
		return false
	}
	if fold {
		as, cs = strings.ToLower(as), strings.ToLower(cs)
	}
	return strings.Contains(as, cs) != negate
}

// matchPattern tests actual against a regex. A pre-compiled pattern is used
// when available; otherwise compare is compiled on the spot.
func matchPattern(actual, compare any, pattern *regexp.Regexp) (bool, error) {
	as, ok := actual.(string)
	if !ok {
		return false, nil
	}
	if pattern == nil {
		ps, ok := compare.(string)
		if !ok {
			return false, fmt.Errorf("%w: regex pattern must be a string", types.ErrInvalidCondition)
		}
		re, err := regexp.Compile(ps)
		if err != nil {
			return false, fmt.Errorf("%w: bad regex %q: %v", types.ErrInvalidCondition, ps, err)
		}
		pattern = re
	}
	return pattern.MatchString(as), nil
}

// asDates parses both operands as dates.
func asDates(a, b any) (time.Time, time.Time, bool) {
	ta, ok1 := parseDate(a)
	tb, ok2 := parseDate(b)
	return ta, tb, ok1 && ok2
}

// dateBetween requires compare to be exactly [start, end]; inclusive.
func dateBetween(actual, compare any) bool {
	bounds, ok := asSlice(compare)
	if !ok || len(bounds) != 2 {
		return false
	}
	t, ok := parseDate(actual)
	if !ok {
		return false
	}
	start, ok1 := parseDate(bounds[0])
	end, ok2 := parseDate(bounds[1])
	if !ok1 || !ok2 {
		return false
	}
	return !t.Before(start) && !t.After(end)
}
