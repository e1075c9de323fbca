// internal/rules/engine.go
package rules

import (
	"log/slog"

	"github.com/solatis/quotekeeper/internal/types"
)

// Engine compiles and evaluates rules, logging diagnostics. Pure functions
// in this package do the work; Engine adds the logger the service and
// calculator share.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a rules engine. A nil logger uses slog.Default().
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// CompileAll compiles rules in order and logs invalid conditions once per
// rule, so a bad rule is visible even if it never gets evaluated.
func (e *Engine) CompileAll(rs []types.Rule) []*CompiledRule {
	out := make([]*CompiledRule, 0, len(rs))
	for _, r := range rs {
		c := Compile(r)
		for _, d := range c.Problems() {
			e.logger.Warn("rule has invalid condition",
				"rule_id", r.ID, "rule_name", r.Label(), "problem", d.String())
		}
		out = append(out, c)
	}
	return out
}

// Applies evaluates one compiled rule against record. Missing fields log at
// debug, every other diagnostic at warn.
func (e *Engine) Applies(rule *CompiledRule, record types.Record) bool {
	res := Evaluate(rule, record)
	for _, d := range res.Diagnostics {
		if d.Missing() {
			e.logger.Debug("rule condition field absent",
				"rule_id", res.RuleID, "field", d.Field, "operator", string(d.Operator))
			continue
		}
		e.logger.Warn("rule condition not evaluable",
			"rule_id", res.RuleID, "rule_name", res.RuleName, "problem", d.String())
	}
	return res.Matched
}

// Trace runs the per-condition breakdown of rule against each record.
func (e *Engine) Trace(rule types.Rule, records []types.Record) []RuleTrace {
	compiled := Compile(rule)
	traces := make([]RuleTrace, 0, len(records))
	for _, rec := range records {
		traces = append(traces, TraceCompiled(compiled, rec))
	}
	e.logger.Debug("traced rule", "rule_id", rule.ID, "records", len(records))
	return traces
}
