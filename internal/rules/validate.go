// internal/rules/validate.go
package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/solatis/quotekeeper/internal/types"
)

// IsValidRuleValueCombo reports whether value makes sense for the value type
// and stage. Discounts must be negative; percentages lie in [-100, 100].
func IsValidRuleValueCombo(vt types.ValueType, appliesTo types.AppliesTo, value types.Amount) bool {
	if appliesTo.IsDiscount() && !value.IsNegative() {
		return false
	}
	if vt == types.ValuePercent {
		hundred := types.NewAmountFromInt(100)
		if value.Abs().Cmp(hundred) > 0 {
			return false
		}
	}
	return true
}

// ValidateRule checks a rule before it is saved. All problems are reported
// together via errors.Join; each wraps ErrInvalidRule.
func ValidateRule(rule types.Rule) error {
	var errs []error

	if strings.TrimSpace(rule.Name) == "" {
		errs = append(errs, types.RuleError("name", "name is required"))
	}
	if !rule.AppliesTo.Valid() {
		errs = append(errs, types.RuleError("applies_to", fmt.Sprintf("unknown stage %q", string(rule.AppliesTo))))
	}
	if !rule.ValueType.Valid() {
		errs = append(errs, types.RuleError("value_type", fmt.Sprintf("unknown value type %q", string(rule.ValueType))))
	}
	if rule.AppliesTo.Valid() && rule.ValueType.Valid() && !IsValidRuleValueCombo(rule.ValueType, rule.AppliesTo, rule.Value) {
		errs = append(errs, types.RuleError("value", comboReason(rule)))
	}
	if rule.StartDate == nil {
		errs = append(errs, types.RuleError("start_date", "start date is required"))
	}
	if rule.StartDate != nil && rule.EndDate != nil && rule.EndDate.Before(*rule.StartDate) {
		errs = append(errs, types.RuleError("end_date", "end date is before start date"))
	}

	if !rule.Conditions.GroupOperator.OrDefault().Valid() {
		errs = append(errs, types.RuleError("conditions", fmt.Sprintf("unknown group operator %q", string(rule.Conditions.GroupOperator))))
	}
	if len(rule.Conditions.Conditions) == 0 {
		errs = append(errs, types.RuleError("conditions", "at least one condition is required"))
	}
	for i, n := range rule.Conditions.Conditions {
		errs = validateNode(n, fmt.Sprintf("conditions[%d]", i), 1, errs)
	}

	return errors.Join(errs...)
}

func comboReason(rule types.Rule) string {
	if rule.AppliesTo.IsDiscount() && !rule.Value.IsNegative() {
		return "discount values must be negative"
	}
	return "percentage must be between -100 and 100"
}

// validateNode reports authoring problems that would make a node evaluate
// to false unconditionally.
func validateNode(n types.Node, at string, depth int, errs []error) []error {
	switch n.Kind {
	case types.NodeGroup:
		if depth > types.MaxGroupDepth {
			return append(errs, types.RuleError(at, "groups nested too deeply"))
		}
		if n.Group == nil || len(n.Group.Conditions) == 0 {
			return append(errs, types.RuleError(at, "group has no conditions"))
		}
		if !n.Group.GroupOperator.OrDefault().Valid() {
			errs = append(errs, types.RuleError(at, fmt.Sprintf("unknown group operator %q", string(n.Group.GroupOperator))))
		}
		for i, c := range n.Group.Conditions {
			errs = validateNode(c, fmt.Sprintf("%s.conditions[%d]", at, i), depth+1, errs)
		}
		return errs

	case types.NodeCondition:
		return validateCondition(n.Condition, at, errs)

	default:
		return append(errs, types.RuleError(at, n.Reason))
	}
}

func validateCondition(c types.Condition, at string, errs []error) []error {
	if _, err := ParsePath(c.Field); err != nil {
		return append(errs, types.RuleError(at+".field", fmt.Sprintf("invalid field %q", c.Field)))
	}
	op := Operator(c.Operator)
	if !op.Valid() {
		return append(errs, types.RuleError(at+".operator", fmt.Sprintf("unknown operator %q", c.Operator)))
	}
	ft := FieldTypeOf(c.Field)
	if !OperatorAllowed(op, ft) {
		return append(errs, types.RuleError(at+".operator", fmt.Sprintf("%s is not allowed on %s field %q", op, ft, c.Field)))
	}

	// Compile the leaf to surface value problems (bad regex, wrong shape,
	// uncoercible comparison value).
	if node := compileCondition(c); node.Invalid != nil {
		errs = append(errs, types.RuleError(at+".value", node.Invalid.Error()))
	}
	return errs
}

// Status derives a rule's lifecycle state at now.
func Status(rule types.Rule, now time.Time) types.RuleStatus {
	switch {
	case rule.StartDate == nil:
		return types.RuleDraft
	case rule.StartDate.After(now):
		return types.RuleUpcoming
	case rule.EndDate != nil && rule.EndDate.Before(now):
		return types.RuleExpired
	default:
		return types.RuleActive
	}
}

// IsActive reports whether the rule is in force at now.
func IsActive(rule types.Rule, now time.Time) bool {
	return Status(rule, now) == types.RuleActive
}
