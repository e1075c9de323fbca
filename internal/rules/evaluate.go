// internal/rules/evaluate.go
package rules

import (
	"errors"
	"fmt"

	"github.com/solatis/quotekeeper/internal/types"
)

/*
 * Rule evaluation.
 *
 * Evaluates a compiled condition tree against a quote record:
 *   - AND: every child must hold; an empty AND holds
 *   - OR: some child must hold; an empty OR does not
 *   - leaf: resolve field -> coerce to registered type -> apply operator
 *   - invalid node: false, with its reason as a diagnostic
 *
 * Children are visited in cost order and short-circuit. Evaluation is total:
 * it never panics and never returns an error. Anything that prevents a leaf
 * from being evaluated (missing field, failed coercion, bad regex, unknown
 * operator) makes that leaf false and is reported in MatchResult.Diagnostics
 * for the caller to log.
 */

// Diagnostic explains why a condition evaluated to false without being a
// genuine mismatch.
type Diagnostic struct {
	RuleID   types.RuleID
	Field    string
	Operator Operator
	Err      error
}

func (d Diagnostic) String() string {
	switch {
	case d.Field != "" && d.Operator != "":
		return fmt.Sprintf("%s %s: %v", d.Field, d.Operator, d.Err)
	case d.Field != "":
		return fmt.Sprintf("%s: %v", d.Field, d.Err)
	default:
		return d.Err.Error()
	}
}

// Missing reports whether the diagnostic only records an absent field.
// Absent fields are routine (a quote without accommodation) and callers log
// them below warning level.
func (d Diagnostic) Missing() bool {
	return errors.Is(d.Err, types.ErrFieldNotFound)
}

// MatchResult contains the outcome of rule evaluation.
type MatchResult struct {
	Matched     bool
	RuleID      types.RuleID
	RuleName    string
	Diagnostics []Diagnostic
}

// Evaluate checks whether the rule's conditions hold for record.
func Evaluate(rule *CompiledRule, record types.Record) MatchResult {
	result := MatchResult{
		RuleID:   rule.Rule.ID,
		RuleName: rule.Rule.Label(),
	}
	var diags []Diagnostic
	result.Matched = evaluateNode(rule.Root, record, &diags)
	for i := range diags {
		diags[i].RuleID = rule.Rule.ID
	}
	result.Diagnostics = diags
	return result
}

// EvaluateConditionGroup evaluates an uncompiled condition tree. Convenience
// for one-off checks; repeated evaluation should compile once.
func EvaluateConditionGroup(node types.Node, record types.Record) bool {
	return evaluateNode(CompileNode(node), record, nil)
}

// EvaluateNode evaluates a compiled tree and returns its diagnostics.
func EvaluateNode(node CompiledNode, record types.Record) (bool, []Diagnostic) {
	var diags []Diagnostic
	matched := evaluateNode(node, record, &diags)
	return matched, diags
}

// evaluateNode dispatches on node kind. diags may be nil.
func evaluateNode(node CompiledNode, record types.Record, diags *[]Diagnostic) bool {
	if node.Invalid != nil {
		report(diags, Diagnostic{Field: node.Field, Err: node.Invalid})
		return false
	}

	switch node.Kind {
	case types.NodeCondition:
		return evaluateCondition(node.Condition, record, diags)
	case types.NodeGroup:
		return evaluateGroup(node.Group, record, diags)
	default:
		report(diags, Diagnostic{Err: types.ErrInvalidCondition})
		return false
	}
}

// evaluateGroup short-circuits on the first decisive child.
func evaluateGroup(group *CompiledGroup, record types.Record, diags *[]Diagnostic) bool {
	switch group.Operator {
	case types.GroupAnd:
		for _, child := range group.Children {
			if !evaluateNode(child, record, diags) {
				return false
			}
		}
		return true
	case types.GroupOr:
		for _, child := range group.Children {
			if evaluateNode(child, record, diags) {
				return true
			}
		}
		return false
	default:
		report(diags, Diagnostic{Err: fmt.Errorf("%w: group operator %q", types.ErrInvalidCondition, string(group.Operator))})
		return false
	}
}

// evaluateCondition orchestrates resolve path -> coerce type -> compare.
func evaluateCondition(cond *CompiledCondition, record types.Record, diags *[]Diagnostic) bool {
	if cond == nil {
		report(diags, Diagnostic{Err: types.ErrInvalidCondition})
		return false
	}

	resolved, err := ResolveField(cond.Field, cond.Path, record)
	if err != nil || !resolved.Found {
		if cond.Operator != OpNotExists {
			report(diags, Diagnostic{Field: cond.Field, Operator: cond.Operator, Err: types.ErrFieldNotFound})
		}
		return cond.Operator == OpNotExists
	}

	actual := resolved.Value
	if fam := cond.Operator.Family(); fam != FamilyString && fam != FamilyExistence {
		coerced, err := Coerce(actual, cond.FieldType)
		if err != nil {
			report(diags, Diagnostic{Field: cond.Field, Operator: cond.Operator, Err: fmt.Errorf("%w: %v", err, actual)})
			return false
		}
		actual = coerced.Value
	}

	matched, err := evaluateOperator(cond.Operator, actual, cond.Value, cond.Pattern)
	if err != nil {
		report(diags, Diagnostic{Field: cond.Field, Operator: cond.Operator, Err: err})
	}
	return matched
}

func report(diags *[]Diagnostic, d Diagnostic) {
	if diags != nil {
		*diags = append(*diags, d)
	}
}
