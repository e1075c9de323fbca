// internal/rules/operators_test.go
package rules

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEvaluateOperator(t *testing.T) {
	july := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		op      Operator
		actual  any
		compare any
		want    bool
	}{
		// Equality
		{name: "eq: equal numbers", op: OpEq, actual: 26.0, compare: 26.0, want: true},
		{name: "eq: int vs float", op: OpEq, actual: 26, compare: 26.0, want: true},
		{name: "eq: equal strings", op: OpEq, actual: "VET", compare: "VET", want: true},
		{name: "eq: string vs number", op: OpEq, actual: "26", compare: 26.0, want: false},
		{name: "eq: bools", op: OpEq, actual: true, compare: true, want: true},
		{name: "eq: slices never equal", op: OpEq, actual: []any{1.0}, compare: []any{1.0}, want: false},
		{name: "neq: different strings", op: OpNeq, actual: "VET", compare: "ELICOS", want: true},
		{name: "neq: mixed kinds", op: OpNeq, actual: true, compare: "true", want: true},
		{name: "gt: greater", op: OpGt, actual: 52.0, compare: 26.0, want: true},
		{name: "gt: equal", op: OpGt, actual: 26.0, compare: 26.0, want: false},
		{name: "gte: equal", op: OpGte, actual: 26.0, compare: 26.0, want: true},
		{name: "lt: less", op: OpLt, actual: 12.0, compare: 26.0, want: true},
		{name: "lte: greater", op: OpLte, actual: 30.0, compare: 26.0, want: false},
		{name: "gt: strings lexical", op: OpGt, actual: "b", compare: "a", want: true},
		{name: "gt: incomparable kinds", op: OpGt, actual: "b", compare: 1.0, want: false},
		{name: "lt: times", op: OpLt, actual: july, compare: july.AddDate(0, 0, 1), want: true},
		{name: "in: member", op: OpIn, actual: "VET", compare: []any{"ELICOS", "VET"}, want: true},
		{name: "in: not member", op: OpIn, actual: "HE", compare: []any{"ELICOS", "VET"}, want: false},
		{name: "in: numeric member", op: OpIn, actual: 12, compare: []any{12.0, 24.0}, want: true},
		{name: "in: non-list", op: OpIn, actual: "VET", compare: "VET", want: false},
		{name: "nin: not member", op: OpNin, actual: "HE", compare: []string{"ELICOS", "VET"}, want: true},
		{name: "nin: non-list", op: OpNin, actual: "HE", compare: "VET", want: false},

		// String
		{name: "like: contains", op: OpLike, actual: "Australia", compare: "stral", want: true},
		{name: "like: case sensitive", op: OpLike, actual: "Australia", compare: "AUS", want: false},
		{name: "like: non-string actual", op: OpLike, actual: 12.0, compare: "1", want: false},
		{name: "notlike: absent substring", op: OpNotLike, actual: "Australia", compare: "xyz", want: true},
		{name: "notlike: non-string actual", op: OpNotLike, actual: 12.0, compare: "x", want: false},
		{name: "ilike: case insensitive", op: OpILike, actual: "Australia", compare: "AUS", want: true},
		{name: "nilike: case insensitive", op: OpNotILike, actual: "Australia", compare: "AUS", want: false},
		{name: "regex: match", op: OpRegex, actual: "VN-123", compare: `^VN-\d+$`, want: true},
		{name: "regex: no match", op: OpRegex, actual: "AU-123", compare: `^VN-\d+$`, want: false},
		{name: "regex: bad pattern", op: OpRegex, actual: "x", compare: `(`, want: false},

		// Date
		{name: "before: earlier", op: OpBefore, actual: "2024-05-01", compare: "2024-07-01", want: true},
		{name: "before: same day", op: OpBefore, actual: "2024-07-01", compare: "2024-07-01", want: false},
		{name: "after: later", op: OpAfter, actual: "2024-09-01", compare: july, want: true},
		{name: "after: unparseable", op: OpAfter, actual: "soon", compare: "2024-07-01", want: false},
		{name: "between: inside", op: OpBetween, actual: "2024-07-15", compare: []any{"2024-07-01", "2024-07-31"}, want: true},
		{name: "between: start inclusive", op: OpBetween, actual: "2024-07-01", compare: []any{"2024-07-01", "2024-07-31"}, want: true},
		{name: "between: end inclusive", op: OpBetween, actual: "2024-07-31", compare: []any{"2024-07-01", "2024-07-31"}, want: true},
		{name: "between: outside", op: OpBetween, actual: "2024-08-01", compare: []any{"2024-07-01", "2024-07-31"}, want: false},
		{name: "between: three bounds", op: OpBetween, actual: "2024-07-15", compare: []any{"2024-07-01", "2024-07-31", "2024-08-31"}, want: false},
		{name: "between: one bound", op: OpBetween, actual: "2024-07-15", compare: []any{"2024-07-01"}, want: false},

		// Existence
		{name: "exists: present", op: OpExists, actual: "x", want: true},
		{name: "exists: zero value present", op: OpExists, actual: 0.0, want: true},
		{name: "notexists: present", op: OpNotExists, actual: false, want: false},

		// Unknown
		{name: "unknown operator", op: Operator("startswith"), actual: "x", compare: "x", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateOperator(tt.op, tt.actual, tt.compare)
			if got != tt.want {
				t.Errorf("EvaluateOperator(%q, %v, %v) = %v, want %v", tt.op, tt.actual, tt.compare, got, tt.want)
			}
		})
	}
}

func TestEvaluateOperator_UnknownReportsError(t *testing.T) {
	matched, err := evaluateOperator(Operator("contains"), "abc", "a", nil)
	if matched {
		t.Errorf("matched = true, want false")
	}
	if err == nil {
		t.Fatalf("evaluateOperator() error = nil, want ErrUnknownOperator")
	}
}

var allOperators = []Operator{
	OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte, OpIn, OpNin,
	OpLike, OpNotLike, OpILike, OpNotILike, OpRegex,
	OpBefore, OpAfter, OpBetween,
	OpExists, OpNotExists,
}

// Property: an absent actual value satisfies notexists and nothing else.
func TestEvaluateOperator_PropertyAbsentValue(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	compares := []any{nil, 1.0, "x", true, []any{"a", "b"}, "2024-07-01"}

	properties.Property("nil actual is true only for notexists", prop.ForAll(
		func(opIdx int, cmpIdx int) bool {
			op := allOperators[opIdx]
			got := EvaluateOperator(op, nil, compares[cmpIdx])
			return got == (op == OpNotExists)
		},
		gen.IntRange(0, len(allOperators)-1),
		gen.IntRange(0, len(compares)-1),
	))

	properties.TestingRun(t)
}

// Property: operators never panic on arbitrary operand kinds.
func TestEvaluateOperator_PropertyNeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	values := []any{
		nil, 0.0, -1.5, "", "abc", "2024-01-01", true,
		[]any{}, []any{1.0, "x"}, map[string]any{"a": 1.0}, []string{"x"},
	}

	properties.Property("evaluation never panics", prop.ForAll(
		func(op string, a int, b int) bool {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("EvaluateOperator() panicked: %v", r)
				}
			}()
			_ = EvaluateOperator(Operator(op), values[a], values[b])
			for _, known := range allOperators {
				_ = EvaluateOperator(known, values[a], values[b])
			}
			return true
		},
		gen.AlphaString(),
		gen.IntRange(0, len(values)-1),
		gen.IntRange(0, len(values)-1),
	))

	properties.TestingRun(t)
}

func TestOperatorFamily(t *testing.T) {
	tests := []struct {
		op   Operator
		want Family
	}{
		{OpEq, FamilyEquality},
		{OpNin, FamilyEquality},
		{OpILike, FamilyString},
		{OpRegex, FamilyString},
		{OpBetween, FamilyDate},
		{OpNotExists, FamilyExistence},
		{Operator("EQ"), FamilyUnknown},
	}
	for _, tt := range tests {
		if got := tt.op.Family(); got != tt.want {
			t.Errorf("%q.Family() = %v, want %v", tt.op, got, tt.want)
		}
	}
}
