// internal/rules/format_test.go
package rules

import (
	"testing"

	"github.com/solatis/quotekeeper/internal/types"
)

func TestFormatCondition(t *testing.T) {
	tests := []struct {
		cond types.Condition
		want string
	}{
		{types.Condition{Field: "duration_weeks", Operator: "gte", Value: 26.0}, "Duration (weeks) greater than or equal to 26"},
		{types.Condition{Field: "intake_date", Operator: "gte", Value: "2024-07-01"}, "Intake Date on or after 2024-07-01"},
		{types.Condition{Field: "student_visa", Operator: "eq", Value: true}, "Student Visa equals Yes"},
		{types.Condition{Field: "course_type", Operator: "in", Value: []any{"VET", "ELICOS"}}, "Course Type is one of VET, ELICOS"},
		{types.Condition{Field: "custom.path", Operator: "exists"}, "custom.path is set"},
	}
	for _, tt := range tests {
		if got := FormatCondition(tt.cond); got != tt.want {
			t.Errorf("FormatCondition(%+v) = %q, want %q", tt.cond, got, tt.want)
		}
	}
}

func TestFormatConditions(t *testing.T) {
	group := types.ConditionGroup{
		GroupOperator: types.GroupAnd,
		Conditions: []types.Node{
			types.Leaf("course_type", "eq", "VET"),
			types.Group(types.GroupOr,
				types.Leaf("student_visa", "eq", true),
				types.Leaf("duration_weeks", "gt", 20.0),
			),
		},
	}
	want := "Course Type equals VET AND (Student Visa equals Yes OR Duration (weeks) greater than 20)"
	if got := FormatConditions(group); got != want {
		t.Errorf("FormatConditions() = %q, want %q", got, want)
	}

	if got := FormatConditions(types.ConditionGroup{GroupOperator: types.GroupAnd}); got != "No conditions set" {
		t.Errorf("FormatConditions(empty) = %q, want No conditions set", got)
	}
}

func TestFormatRuleValueAndAction(t *testing.T) {
	tests := []struct {
		name       string
		rule       types.Rule
		wantValue  string
		wantAction string
	}{
		{
			name:       "percent price increase",
			rule:       types.Rule{AppliesTo: types.AppliesToCoursePrice, ValueType: types.ValuePercent, Value: types.NewAmountFromInt(10)},
			wantValue:  "10%",
			wantAction: "Apply 10% increase to the price",
		},
		{
			name:       "fixed price reduction",
			rule:       types.Rule{AppliesTo: types.AppliesToAccommodationPrice, ValueType: types.ValueFixed, Value: types.NewAmountFromInt(-40)},
			wantValue:  "$-40",
			wantAction: "Subtract $40 from the price",
		},
		{
			name:       "fixed fee",
			rule:       types.Rule{AppliesTo: types.AppliesToEnrollmentFee, ValueType: types.ValueFixed, Value: types.NewAmountFromInt(50)},
			wantValue:  "$50",
			wantAction: "Add a fee of $50",
		},
		{
			name:       "percent discount",
			rule:       types.Rule{AppliesTo: types.AppliesToTotalDiscount, ValueType: types.ValuePercent, Value: types.NewAmountFromInt(-10)},
			wantValue:  "-10%",
			wantAction: "Apply 10% discount",
		},
		{
			name:       "unknown stage",
			rule:       types.Rule{AppliesTo: "shipping", ValueType: types.ValueFixed, Value: types.NewAmountFromInt(1)},
			wantValue:  "$1",
			wantAction: "Unknown action",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatRuleValue(tt.rule); got != tt.wantValue {
				t.Errorf("FormatRuleValue() = %q, want %q", got, tt.wantValue)
			}
			if got := FormatRuleAction(tt.rule); got != tt.wantAction {
				t.Errorf("FormatRuleAction() = %q, want %q", got, tt.wantAction)
			}
		})
	}
}
