// internal/rules/compile.go
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/solatis/quotekeeper/internal/types"
)

/*
 * Rule compilation.
 *
 * Compiles a normalized types.Rule into a CompiledRule:
 *   1. Parse each leaf's field into a path and look up its registered type
 *   2. Coerce the comparison value to that type and pre-compile regexes
 *   3. Turn anything that cannot be evaluated into an invalid marker
 *   4. Order each group's children by ascending cost (stable sort)
 *
 * Compile never fails. A malformed leaf or group becomes a node that
 * evaluates to false and reports its reason as a diagnostic, so one bad
 * condition disables its own branch and nothing else.
 *
 * Stable sort keeps equal-cost children in authored order, which keeps
 * diagnostics deterministic across identical inputs.
 */

// CompiledCondition is a pre-processed leaf ready for evaluation.
type CompiledCondition struct {
	Field     string
	Path      []PathSegment
	Operator  Operator
	FieldType FieldType
	Value     any            // coerced comparison value
	Pattern   *regexp.Regexp // regex operator only
	Cost      int
}

// CompiledGroup is a pre-processed AND/OR group.
type CompiledGroup struct {
	Operator types.GroupOperator
	Children []CompiledNode // ordered by ascending cost
}

// CompiledNode is one element of a compiled condition tree.
// Invalid is non-nil for nodes that always evaluate to false.
type CompiledNode struct {
	Kind      types.NodeKind
	Condition *CompiledCondition
	Group     *CompiledGroup
	Invalid   error
	Field     string // leaf field, kept for diagnostics on invalid leaves
	Cost      int
}

// CompiledRule is a rule ready for repeated evaluation.
type CompiledRule struct {
	Rule types.Rule
	Root CompiledNode
	// TopLevel holds the root's children in authored order.
	TopLevel []CompiledNode
}

// Compile pre-processes a rule for evaluation.
func Compile(rule types.Rule) *CompiledRule {
	topLevel := make([]CompiledNode, 0, len(rule.Conditions.Conditions))
	for _, child := range rule.Conditions.Conditions {
		topLevel = append(topLevel, compileNode(child, 1))
	}

	op := rule.Conditions.GroupOperator.OrDefault()
	root := newGroupNode(op, topLevel)
	if !op.Valid() {
		root = CompiledNode{
			Kind:    types.NodeGroup,
			Invalid: fmt.Errorf("%w: group operator %q", types.ErrInvalidCondition, string(op)),
		}
	}

	return &CompiledRule{Rule: rule, Root: root, TopLevel: topLevel}
}

// CompileNode pre-processes a single condition tree.
func CompileNode(node types.Node) CompiledNode {
	return compileNode(node, 0)
}

// Problems lists every invalid node in the rule, in authored order.
func (r *CompiledRule) Problems() []Diagnostic {
	var out []Diagnostic
	if r.Root.Invalid != nil {
		out = append(out, Diagnostic{RuleID: r.Rule.ID, Err: r.Root.Invalid})
	}
	for _, n := range r.TopLevel {
		out = collectProblems(r.Rule.ID, n, out)
	}
	return out
}

func collectProblems(id types.RuleID, n CompiledNode, out []Diagnostic) []Diagnostic {
	if n.Invalid != nil {
		d := Diagnostic{RuleID: id, Field: n.Field, Err: n.Invalid}
		return append(out, d)
	}
	if n.Group != nil {
		for _, c := range n.Group.Children {
			out = collectProblems(id, c, out)
		}
	}
	return out
}

func compileNode(node types.Node, depth int) CompiledNode {
	switch node.Kind {
	case types.NodeCondition:
		return compileCondition(node.Condition)

	case types.NodeGroup:
		if depth > types.MaxGroupDepth {
			return invalidNode("", fmt.Errorf("%w: groups nested deeper than %d", types.ErrInvalidCondition, types.MaxGroupDepth))
		}
		if node.Group == nil {
			return invalidNode("", fmt.Errorf("%w: empty group", types.ErrInvalidCondition))
		}
		op := node.Group.GroupOperator.OrDefault()
		if !op.Valid() {
			return invalidNode("", fmt.Errorf("%w: group operator %q", types.ErrInvalidCondition, string(op)))
		}
		children := make([]CompiledNode, 0, len(node.Group.Conditions))
		for _, child := range node.Group.Conditions {
			children = append(children, compileNode(child, depth+1))
		}
		return newGroupNode(op, children)

	default:
		reason := node.Reason
		if reason == "" {
			reason = "unrecognized condition"
		}
		return invalidNode("", fmt.Errorf("%w: %s", types.ErrInvalidCondition, reason))
	}
}

// newGroupNode orders a copy of children by cost and sums the group cost.
func newGroupNode(op types.GroupOperator, children []CompiledNode) CompiledNode {
	ordered := make([]CompiledNode, len(children))
	copy(ordered, children)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Cost < ordered[j].Cost
	})

	total := 0
	for _, c := range ordered {
		total += c.Cost
	}
	return CompiledNode{
		Kind:  types.NodeGroup,
		Group: &CompiledGroup{Operator: op, Children: ordered},
		Cost:  total,
	}
}

func invalidNode(field string, err error) CompiledNode {
	return CompiledNode{Kind: types.NodeInvalid, Invalid: err, Field: field}
}

// compileCondition validates a leaf and pre-processes its comparison value.
func compileCondition(cond types.Condition) CompiledNode {
	path, err := ParsePath(cond.Field)
	if err != nil {
		if errors.Is(err, types.ErrPathTooDeep) {
			return invalidNode(cond.Field, err)
		}
		return invalidNode(cond.Field, fmt.Errorf("%w: field %q", types.ErrInvalidCondition, cond.Field))
	}

	op := Operator(cond.Operator)
	if !op.Valid() {
		return invalidNode(cond.Field, fmt.Errorf("%w: %q", types.ErrUnknownOperator, cond.Operator))
	}

	ft := FieldTypeOf(cond.Field)
	if err := checkOperand(op, cond.Value); err != nil {
		return invalidNode(cond.Field, err)
	}

	value, err := CoerceCompare(op, cond.Value, ft)
	if err != nil {
		return invalidNode(cond.Field, fmt.Errorf("%w: comparison value %v for %s field", err, cond.Value, ft))
	}

	compiled := &CompiledCondition{
		Field:     cond.Field,
		Path:      path,
		Operator:  op,
		FieldType: ft,
		Value:     value,
		Cost:      CalculateConditionCost(path, op, ft),
	}

	if op == OpRegex {
		ps, _ := cond.Value.(string)
		re, err := regexp.Compile(ps)
		if err != nil {
			return invalidNode(cond.Field, fmt.Errorf("%w: bad regex %q: %v", types.ErrInvalidCondition, ps, err))
		}
		compiled.Pattern = re
	}

	return CompiledNode{
		Kind:      types.NodeCondition,
		Condition: compiled,
		Field:     cond.Field,
		Cost:      compiled.Cost,
	}
}

// checkOperand enforces the comparison value shape each operator needs.
func checkOperand(op Operator, value any) error {
	switch op {
	case OpIn, OpNin:
		if _, ok := asSlice(value); !ok {
			return fmt.Errorf("%w: %s requires a list value", types.ErrInvalidCondition, op)
		}
	case OpBetween:
		bounds, ok := asSlice(value)
		if !ok || len(bounds) != 2 {
			return fmt.Errorf("%w: between requires exactly two dates", types.ErrInvalidCondition)
		}
	case OpRegex, OpLike, OpNotLike, OpILike, OpNotILike:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%w: %s requires a string value", types.ErrInvalidCondition, op)
		}
	}
	return nil
}
