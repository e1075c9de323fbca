// internal/rules/trace.go
package rules

import "github.com/solatis/quotekeeper/internal/types"

// RuleTrace is the per-condition breakdown shown when testing a rule
// against a sample quote.
type RuleTrace struct {
	RuleID      types.RuleID `json:"rule_id,omitempty"`
	RuleName    string       `json:"rule_name,omitempty"`
	Conditions  []bool       `json:"conditions"`
	Applies     bool         `json:"applies"`
	Diagnostics []string     `json:"diagnostics,omitempty"`
}

// EvaluateRule evaluates each top-level condition of rule independently and
// reports whether all of them hold.
//
// The verdict is a shallow AND over the top-level entries even when the
// root group is OR; it answers "which conditions does this quote satisfy",
// not "does the calculator apply this rule". Use Evaluate for the latter.
func EvaluateRule(rule types.Rule, record types.Record) RuleTrace {
	return TraceCompiled(Compile(rule), record)
}

// TraceCompiled is EvaluateRule for an already compiled rule.
func TraceCompiled(compiled *CompiledRule, record types.Record) RuleTrace {
	trace := RuleTrace{
		RuleID:     compiled.Rule.ID,
		RuleName:   compiled.Rule.Label(),
		Conditions: make([]bool, 0, len(compiled.TopLevel)),
		Applies:    true,
	}
	for _, node := range compiled.TopLevel {
		matched, diags := EvaluateNode(node, record)
		trace.Conditions = append(trace.Conditions, matched)
		trace.Applies = trace.Applies && matched
		for _, d := range diags {
			trace.Diagnostics = append(trace.Diagnostics, d.String())
		}
	}
	return trace
}
