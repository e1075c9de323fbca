// internal/rules/format.go
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/quotekeeper/internal/types"
)

// FormatCondition renders a leaf as "Duration (weeks) greater than 12".
func FormatCondition(c types.Condition) string {
	label := c.Field
	ft := FieldTypeAny
	if d, ok := LookupField(c.Field); ok {
		if d.Key == c.Field {
			label = d.Label
		}
		ft = d.Type
	}
	out := fmt.Sprintf("%s %s %s", label, OperatorLabel(Operator(c.Operator), ft), FormatConditionValue(c.Value))
	return strings.TrimSpace(out)
}

// FormatConditionValue renders a comparison value for display.
func FormatConditionValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = FormatConditionValue(e)
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(val, ", ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

// FormatConditions renders a whole condition tree. Nested groups are
// parenthesised.
func FormatConditions(group types.ConditionGroup) string {
	if len(group.Conditions) == 0 {
		return "No conditions set"
	}
	return formatGroup(group, false)
}

func formatGroup(group types.ConditionGroup, nested bool) string {
	parts := make([]string, 0, len(group.Conditions))
	for _, n := range group.Conditions {
		switch n.Kind {
		case types.NodeCondition:
			parts = append(parts, FormatCondition(n.Condition))
		case types.NodeGroup:
			if n.Group != nil && len(n.Group.Conditions) > 0 {
				parts = append(parts, formatGroup(*n.Group, true))
			}
		default:
			parts = append(parts, "<invalid: "+n.Reason+">")
		}
	}
	out := strings.Join(parts, " "+string(group.GroupOperator.OrDefault())+" ")
	if nested && len(parts) > 1 {
		return "(" + out + ")"
	}
	return out
}

// FormatRuleValue renders the rule value as "10%" or "$50".
func FormatRuleValue(rule types.Rule) string {
	if rule.ValueType == types.ValuePercent {
		return rule.Value.String() + "%"
	}
	return "$" + rule.Value.String()
}

// FormatRuleAction describes what applying the rule does to a quote.
func FormatRuleAction(rule types.Rule) string {
	abs := rule.Value.Abs().String()
	percent := rule.ValueType == types.ValuePercent

	switch rule.AppliesTo.Stage() {
	case types.StageCoursePrice, types.StageAccommodationPrice:
		switch {
		case percent && rule.Value.IsNegative():
			return fmt.Sprintf("Apply %s%% decrease to the price", abs)
		case percent:
			return fmt.Sprintf("Apply %s%% increase to the price", abs)
		case rule.Value.IsNegative():
			return fmt.Sprintf("Subtract $%s from the price", abs)
		default:
			return fmt.Sprintf("Add $%s to the price", abs)
		}
	case types.StageFee:
		if percent {
			return fmt.Sprintf("Add a fee of %s%% of the subtotal", rule.Value.String())
		}
		return fmt.Sprintf("Add a fee of $%s", rule.Value.String())
	case types.StageDiscount:
		if percent {
			return fmt.Sprintf("Apply %s%% discount", abs)
		}
		return fmt.Sprintf("Subtract $%s from the total", abs)
	default:
		return "Unknown action"
	}
}
