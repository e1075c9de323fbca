// internal/rules/cost.go
package rules

/*
 * Cost model for condition evaluation.
 *
 * Cheap conditions are evaluated first so AND groups fail fast and OR groups
 * succeed fast. Ordering never changes a verdict: every condition is pure
 * and side-effect free, so short-circuiting only skips work.
 *
 * Cost formula: lookup_cost + operator_cost * type_multiplier
 * Group cost: sum of child costs.
 *
 * Invalid nodes cost zero. They evaluate to false without touching the
 * record, which makes them the cheapest possible short-circuit in AND.
 */

const (
	// Operator base costs
	CostExists  = 1
	CostEq      = 5
	CostCompare = 7
	CostIn      = 8
	CostDate    = 9
	CostLike    = 10
	CostRegex   = 40

	// Flat keys are a single map lookup; each extra dot segment is another.
	CostLookupPerSegment = 2

	// Field type multipliers
	MultiplierBool   = 1
	MultiplierNumber = 2
	MultiplierDate   = 4
	MultiplierString = 6
	MultiplierAny    = 8
)

// CalculateConditionCost computes cost for a single condition.
func CalculateConditionCost(path []PathSegment, op Operator, fieldType FieldType) int {
	lookupCost := CostLookupPerSegment * max(len(path), 1)
	return lookupCost + operatorCost(op)*typeMultiplier(fieldType)
}

// operatorCost returns base cost for operator execution.
func operatorCost(op Operator) int {
	switch op {
	case OpExists, OpNotExists:
		return CostExists
	case OpEq, OpNeq:
		return CostEq
	case OpLt, OpLte, OpGt, OpGte:
		return CostCompare
	case OpIn, OpNin:
		return CostIn
	case OpBefore, OpAfter, OpBetween:
		return CostDate
	case OpLike, OpNotLike, OpILike, OpNotILike:
		return CostLike
	case OpRegex:
		return CostRegex
	default:
		return CostEq
	}
}

// typeMultiplier returns cost multiplier based on field type complexity.
func typeMultiplier(ft FieldType) int {
	switch {
	case ft == FieldTypeBoolean:
		return MultiplierBool
	case ft == FieldTypeNumber:
		return MultiplierNumber
	case ft == FieldTypeDate:
		return MultiplierDate
	case ft.Textual():
		return MultiplierString
	default:
		return MultiplierAny
	}
}
