// internal/types/rules.go
package types

import (
	"encoding/json"
	"strings"
	"time"
)

/*
 * Domain types for rule conditions and pricing rules.
 *
 * The condition tree is a tagged variant: every Node is exactly one of a
 * leaf Condition, a nested ConditionGroup, or an invalid marker carrying the
 * reason the input could not be understood. internal/rules builds Nodes from
 * persisted JSON (NormalizeConditions) and never inspects raw shapes after
 * that point.
 *
 * Key types:
 *   - Condition: field / operator / value leaf
 *   - ConditionGroup: AND/OR combinator over child Nodes
 *   - Rule: normalized pricing, fee or discount directive
 *   - RuleRecord: the shape rules are persisted and transported in
 *   - AppliesTo: pipeline stage selector
 */

// GroupOperator combines the children of a ConditionGroup.
type GroupOperator string

const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
)

// Valid reports whether op is AND or OR.
func (op GroupOperator) Valid() bool {
	return op == GroupAnd || op == GroupOr
}

// OrDefault returns GroupAnd for an unset operator and op otherwise.
// Groups without an explicit operator are an implicit AND.
func (op GroupOperator) OrDefault() GroupOperator {
	if op == "" {
		return GroupAnd
	}
	return op
}

// Condition is a single field/operator/value test against a quote record.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// NodeKind discriminates the Node variant.
type NodeKind int

const (
	NodeInvalid NodeKind = iota
	NodeCondition
	NodeGroup
)

func (k NodeKind) String() string {
	switch k {
	case NodeCondition:
		return "condition"
	case NodeGroup:
		return "group"
	default:
		return "invalid"
	}
}

// Node is one element of a condition tree.
// Exactly one of Condition (NodeCondition), Group (NodeGroup) or
// Reason/Raw (NodeInvalid) is meaningful.
type Node struct {
	Kind      NodeKind
	Condition Condition
	Group     *ConditionGroup
	Reason    string          // NodeInvalid: why the input was rejected
	Raw       json.RawMessage // NodeInvalid: original bytes, preserved for round-trips
}

// Leaf builds a condition node.
func Leaf(field, operator string, value any) Node {
	return Node{
		Kind:      NodeCondition,
		Condition: Condition{Field: field, Operator: operator, Value: value},
	}
}

// Group builds a group node.
func Group(op GroupOperator, children ...Node) Node {
	if children == nil {
		children = []Node{}
	}
	return Node{
		Kind:  NodeGroup,
		Group: &ConditionGroup{GroupOperator: op, Conditions: children},
	}
}

// Invalid builds an invalid marker. Invalid nodes always evaluate to false.
func Invalid(reason string, raw json.RawMessage) Node {
	return Node{Kind: NodeInvalid, Reason: reason, Raw: raw}
}

// MarshalJSON implements json.Marshaler.
// Leaves and groups serialise in the persisted shape; invalid nodes
// serialise their original bytes (or null).
func (n Node) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case NodeCondition:
		return json.Marshal(n.Condition)
	case NodeGroup:
		if n.Group == nil {
			return []byte("null"), nil
		}
		return json.Marshal(n.Group)
	default:
		if len(n.Raw) == 0 {
			return []byte("null"), nil
		}
		return n.Raw, nil
	}
}

// ConditionGroup combines child nodes with AND or OR.
// The root group of a rule must keep at least one member; nested groups with
// no members are pruned by the authoring layer.
type ConditionGroup struct {
	GroupOperator GroupOperator `json:"group_operator"`
	Conditions    []Node        `json:"conditions"`
}

// AppliesTo selects the pipeline stage that consumes a rule.
type AppliesTo string

const (
	AppliesToCoursePrice           AppliesTo = "course_price"
	AppliesToCourseDiscount        AppliesTo = "course_discount"
	AppliesToAccommodationPrice    AppliesTo = "accommodation_price"
	AppliesToAccommodationDiscount AppliesTo = "accommodation_discount"
	AppliesToEnrollmentFee         AppliesTo = "enrollment_fee"
	AppliesToMaterialFee           AppliesTo = "material_fee"
	AppliesToTotalFee              AppliesTo = "total_fee"
	AppliesToTotalPrice            AppliesTo = "total_price"
	AppliesToTotalDiscount         AppliesTo = "total_discount"

	// AppliesToLegacyAccommodation is the pre-split spelling of
	// accommodation_price still present in older rule rows.
	AppliesToLegacyAccommodation AppliesTo = "accommodation"
)

// CalculationOrder lists every stage in the order rules are applied.
var CalculationOrder = []AppliesTo{
	AppliesToCoursePrice,
	AppliesToAccommodationPrice,
	AppliesToCourseDiscount,
	AppliesToAccommodationDiscount,
	AppliesToEnrollmentFee,
	AppliesToMaterialFee,
	AppliesToTotalFee,
	AppliesToTotalPrice,
	AppliesToTotalDiscount,
}

var calculationRank = func() map[AppliesTo]int {
	m := make(map[AppliesTo]int, len(CalculationOrder)+1)
	for i, a := range CalculationOrder {
		m[a] = i
	}
	m[AppliesToLegacyAccommodation] = m[AppliesToAccommodationPrice]
	return m
}()

// Rank is a's position in CalculationOrder. The legacy accommodation
// spelling ranks with accommodation_price; unknown values rank last.
func (a AppliesTo) Rank() int {
	if r, ok := calculationRank[a]; ok {
		return r
	}
	return len(CalculationOrder)
}

var appliesToLabels = map[AppliesTo]string{
	AppliesToCoursePrice:           "Course Price",
	AppliesToCourseDiscount:        "Course Discount",
	AppliesToAccommodationPrice:    "Accommodation Price",
	AppliesToAccommodationDiscount: "Accommodation Discount",
	AppliesToEnrollmentFee:         "Enrollment Fee",
	AppliesToMaterialFee:           "Material Fee",
	AppliesToTotalFee:              "Total Fees",
	AppliesToTotalPrice:            "Total Price",
	AppliesToTotalDiscount:         "Total Discount",
	AppliesToLegacyAccommodation:   "Accommodation Price",
}

// Valid reports whether a is a known stage (legacy spelling included).
func (a AppliesTo) Valid() bool {
	_, ok := appliesToLabels[a]
	return ok
}

// Label returns the display label, or the raw value when unknown.
func (a AppliesTo) Label() string {
	if l, ok := appliesToLabels[a]; ok {
		return l
	}
	return string(a)
}

// IsDiscount reports whether the stage is a discount. Discount rules must
// carry negative values.
func (a AppliesTo) IsDiscount() bool {
	return strings.Contains(string(a), "discount")
}

// Stage groups applies_to values into the calculator's pipeline stages.
type Stage int

const (
	StageUnknown Stage = iota
	StageCoursePrice
	StageAccommodationPrice
	StageFee
	StageDiscount
)

func (s Stage) String() string {
	switch s {
	case StageCoursePrice:
		return "course_price"
	case StageAccommodationPrice:
		return "accommodation_price"
	case StageFee:
		return "fee"
	case StageDiscount:
		return "discount"
	default:
		return "unknown"
	}
}

// Stage maps the applies_to value to its pipeline stage.
// total_price rules are folded into the fee stage: they adjust the running
// total before discounts are taken.
func (a AppliesTo) Stage() Stage {
	switch a {
	case AppliesToCoursePrice:
		return StageCoursePrice
	case AppliesToAccommodationPrice, AppliesToLegacyAccommodation:
		return StageAccommodationPrice
	case AppliesToEnrollmentFee, AppliesToMaterialFee, AppliesToTotalFee, AppliesToTotalPrice:
		return StageFee
	case AppliesToCourseDiscount, AppliesToAccommodationDiscount, AppliesToTotalDiscount:
		return StageDiscount
	default:
		return StageUnknown
	}
}

// ValueType says how a rule's value is applied.
type ValueType string

const (
	ValueFixed   ValueType = "fixed"
	ValuePercent ValueType = "percent"
)

// Valid reports whether v is fixed or percent.
func (v ValueType) Valid() bool {
	return v == ValueFixed || v == ValuePercent
}

// Rule is a normalized pricing, fee or discount directive.
// Built from a RuleRecord by rules.FromRecord; never mutated during
// evaluation.
type Rule struct {
	ID          RuleID         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	AppliesTo   AppliesTo      `json:"applies_to"`
	ValueType   ValueType      `json:"value_type"`
	Value       Amount         `json:"value"`
	Conditions  ConditionGroup `json:"conditions"`
	StartDate   *time.Time     `json:"start_date,omitempty"`
	EndDate     *time.Time     `json:"end_date,omitempty"`
}

// Label is the human label recorded in quote breakdowns.
func (r Rule) Label() string {
	switch {
	case r.Name != "":
		return r.Name
	case r.Description != "":
		return r.Description
	default:
		return string(r.ID)
	}
}

// RuleRecord is the persisted/transported rule shape.
// Older rows use rule_name/rule_description/type; newer payloads use
// name/description/value_type. Conditions stay raw until normalized.
type RuleRecord struct {
	ID              string          `json:"id,omitempty"`
	RuleName        string          `json:"rule_name,omitempty"`
	Name            string          `json:"name,omitempty"`
	RuleDescription string          `json:"rule_description,omitempty"`
	Description     string          `json:"description,omitempty"`
	AppliesTo       string          `json:"applies_to"`
	ValueType       string          `json:"value_type,omitempty"`
	Type            string          `json:"type,omitempty"`
	Value           Amount          `json:"value"`
	Conditions      json.RawMessage `json:"conditions,omitempty"`
	StartDate       *time.Time      `json:"start_date,omitempty"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	CreatedAt       *time.Time      `json:"created_at,omitempty"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
}

// DisplayName resolves the rule_name/name alias.
func (r RuleRecord) DisplayName() string {
	if r.RuleName != "" {
		return r.RuleName
	}
	return r.Name
}

// DisplayDescription resolves the rule_description/description alias.
func (r RuleRecord) DisplayDescription() string {
	if r.RuleDescription != "" {
		return r.RuleDescription
	}
	return r.Description
}

// ResolvedValueType resolves the value_type/type alias.
func (r RuleRecord) ResolvedValueType() ValueType {
	if r.ValueType != "" {
		return ValueType(r.ValueType)
	}
	return ValueType(r.Type)
}

// RuleStatus is derived from a rule's start and end dates.
type RuleStatus string

const (
	RuleDraft    RuleStatus = "draft"
	RuleUpcoming RuleStatus = "upcoming"
	RuleActive   RuleStatus = "active"
	RuleExpired  RuleStatus = "expired"
)
