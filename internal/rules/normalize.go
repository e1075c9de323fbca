// internal/rules/normalize.go
package rules

import (
	"encoding/json"
	"fmt"

	"github.com/solatis/quotekeeper/internal/types"
)

// NormalizeConditions parses raw condition JSON into a root group.
// See types.DecodeConditions for the accepted shapes; the evaluator works on
// the resulting Node tree exclusively.
func NormalizeConditions(raw json.RawMessage) types.ConditionGroup {
	return types.DecodeConditions(raw)
}

// FromRecord builds a normalized Rule from its persisted shape, resolving
// field aliases and normalizing conditions.
func FromRecord(rec types.RuleRecord) types.Rule {
	rule := types.Rule{
		ID:          types.RuleID(rec.ID),
		Name:        rec.DisplayName(),
		Description: rec.DisplayDescription(),
		AppliesTo:   types.AppliesTo(rec.AppliesTo),
		ValueType:   rec.ResolvedValueType(),
		Value:       rec.Value,
		Conditions:  NormalizeConditions(rec.Conditions),
		StartDate:   rec.StartDate,
		EndDate:     rec.EndDate,
	}
	return rule
}

// FromRecords converts a batch of records, preserving order.
func FromRecords(recs []types.RuleRecord) []types.Rule {
	out := make([]types.Rule, 0, len(recs))
	for _, r := range recs {
		out = append(out, FromRecord(r))
	}
	return out
}

// ToRecord renders a Rule in its persisted shape with canonical field names.
func ToRecord(rule types.Rule) (types.RuleRecord, error) {
	conds, err := json.Marshal(rule.Conditions)
	if err != nil {
		return types.RuleRecord{}, fmt.Errorf("marshal conditions: %w", err)
	}
	return types.RuleRecord{
		ID:          string(rule.ID),
		Name:        rule.Name,
		Description: rule.Description,
		AppliesTo:   string(rule.AppliesTo),
		ValueType:   string(rule.ValueType),
		Value:       rule.Value,
		Conditions:  conds,
		StartDate:   rule.StartDate,
		EndDate:     rule.EndDate,
	}, nil
}
