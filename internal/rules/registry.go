// internal/rules/registry.go
package rules

import "slices"

/*
 * Field and operator registry.
 *
 * Declares the quote attributes rules can condition on, their value types,
 * and which operators each type admits. Built once at package init and never
 * mutated. Both the validator and the coercion step read it; the HTTP and
 * gRPC layers expose it so authoring tools render the same options.
 *
 * Operators with an empty type list (in, nin, exists, notexists) are
 * evaluator-level operators: valid for any field, not offered by default in
 * authoring pick lists.
 */

// FieldType is the declared value type of a rule field.
type FieldType string

const (
	FieldTypeAny               FieldType = ""
	FieldTypeNumber            FieldType = "number"
	FieldTypeBoolean           FieldType = "boolean"
	FieldTypeString            FieldType = "string"
	FieldTypeStringOption      FieldType = "string_option"
	FieldTypeDate              FieldType = "date"
	FieldTypeCampus            FieldType = "campus"
	FieldTypeFaculty           FieldType = "faculty"
	FieldTypeCourseType        FieldType = "course_type"
	FieldTypeRegion            FieldType = "region"
	FieldTypeAccommodationType FieldType = "accommodation_type"
	FieldTypeRoomSize          FieldType = "room_size"
)

// Dynamic reports whether options for the type come from a lookup table.
func (ft FieldType) Dynamic() bool {
	switch ft {
	case FieldTypeCampus, FieldTypeFaculty, FieldTypeRegion,
		FieldTypeAccommodationType, FieldTypeRoomSize:
		return true
	default:
		return false
	}
}

// DynamicFieldTypes lists the field types whose options come from lookup
// tables.
func DynamicFieldTypes() []FieldType {
	return []FieldType{
		FieldTypeCampus,
		FieldTypeFaculty,
		FieldTypeRegion,
		FieldTypeAccommodationType,
		FieldTypeRoomSize,
	}
}

// Textual reports whether values of this type compare as strings.
func (ft FieldType) Textual() bool {
	switch ft {
	case FieldTypeString, FieldTypeStringOption, FieldTypeCourseType:
		return true
	default:
		return ft.Dynamic()
	}
}

// Option is a fixed choice for string_option and course_type fields.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldDefinition describes one conditionable quote attribute.
type FieldDefinition struct {
	Key     string    `json:"key"`
	Label   string    `json:"label"`
	Type    FieldType `json:"type"`
	Options []Option  `json:"options,omitempty"`
}

// OperatorInfo describes one operator in the registry.
type OperatorInfo struct {
	Operator   Operator    `json:"operator"`
	Label      string      `json:"label"`
	FieldTypes []FieldType `json:"field_types"`
}

var courseTypeOptions = []Option{
	{Value: "VET", Label: "VET"},
	{Value: "ELICOS", Label: "ELICOS"},
}

var fieldDefinitions = []FieldDefinition{
	{Key: "region_id", Label: "Region", Type: FieldTypeRegion},
	{Key: "onshore_offshore", Label: "Onshore/Offshore", Type: FieldTypeStringOption, Options: []Option{
		{Value: "onshore", Label: "Onshore"},
		{Value: "offshore", Label: "Offshore"},
	}},
	{Key: "student_visa", Label: "Student Visa", Type: FieldTypeBoolean},
	{Key: "previous_student", Label: "Previous Student", Type: FieldTypeBoolean},
	{Key: "nationality", Label: "Nationality", Type: FieldTypeString},
	{Key: "course_type", Label: "Course Type", Type: FieldTypeCourseType, Options: courseTypeOptions},
	{Key: "faculty_id", Label: "Faculty", Type: FieldTypeFaculty},
	{Key: "campus_id", Label: "Campus", Type: FieldTypeCampus},
	{Key: "duration_weeks", Label: "Duration (weeks)", Type: FieldTypeNumber},
	{Key: "study_load", Label: "Study Load", Type: FieldTypeStringOption, Options: []Option{
		{Value: "full_time", Label: "Full Time"},
		{Value: "part_time", Label: "Part Time"},
	}},
	{Key: "day_night_classes", Label: "Day/Night Classes", Type: FieldTypeStringOption, Options: []Option{
		{Value: "day", Label: "Day"},
		{Value: "night", Label: "Night"},
	}},
	{Key: "intake_date", Label: "Intake Date", Type: FieldTypeDate},
	{Key: "accommodation_type_id", Label: "Accommodation Type", Type: FieldTypeAccommodationType},
	{Key: "room_size_id", Label: "Room Size", Type: FieldTypeRoomSize},
	{Key: "accommodation_price_per_week", Label: "Accommodation Price per Week", Type: FieldTypeNumber},
	{Key: "needs_transport", Label: "Needs Transport", Type: FieldTypeBoolean},
}

var equalityTypes = []FieldType{
	FieldTypeNumber, FieldTypeBoolean, FieldTypeCampus, FieldTypeFaculty,
	FieldTypeCourseType, FieldTypeAccommodationType, FieldTypeRoomSize,
	FieldTypeRegion, FieldTypeStringOption, FieldTypeDate,
}

var operatorRegistry = []OperatorInfo{
	{Operator: OpEq, Label: "equals", FieldTypes: equalityTypes},
	{Operator: OpNeq, Label: "not equals", FieldTypes: equalityTypes},
	{Operator: OpGt, Label: "greater than", FieldTypes: []FieldType{FieldTypeNumber, FieldTypeDate}},
	{Operator: OpGte, Label: "greater than or equal to", FieldTypes: []FieldType{FieldTypeNumber, FieldTypeDate}},
	{Operator: OpLt, Label: "less than", FieldTypes: []FieldType{FieldTypeNumber, FieldTypeDate}},
	{Operator: OpLte, Label: "less than or equal to", FieldTypes: []FieldType{FieldTypeNumber, FieldTypeDate}},
	{Operator: OpIn, Label: "is one of"},
	{Operator: OpNin, Label: "is not one of"},
	{Operator: OpLike, Label: "contains", FieldTypes: []FieldType{FieldTypeString}},
	{Operator: OpNotLike, Label: "does not contain", FieldTypes: []FieldType{FieldTypeString}},
	{Operator: OpILike, Label: "contains (case insensitive)", FieldTypes: []FieldType{FieldTypeString}},
	{Operator: OpNotILike, Label: "does not contain (case insensitive)", FieldTypes: []FieldType{FieldTypeString}},
	{Operator: OpRegex, Label: "matches pattern", FieldTypes: []FieldType{FieldTypeString}},
	{Operator: OpBefore, Label: "before", FieldTypes: []FieldType{FieldTypeDate}},
	{Operator: OpAfter, Label: "after", FieldTypes: []FieldType{FieldTypeDate}},
	{Operator: OpBetween, Label: "between", FieldTypes: []FieldType{FieldTypeDate}},
	{Operator: OpExists, Label: "is set"},
	{Operator: OpNotExists, Label: "is not set"},
}

// Date fields read comparisons as calendar positions.
var dateOperatorLabels = map[Operator]string{
	OpEq:  "on",
	OpNeq: "not on",
	OpGt:  "after",
	OpGte: "on or after",
	OpLt:  "before",
	OpLte: "on or before",
}

var (
	fieldsByKey    = indexFields(fieldDefinitions)
	operatorsByKey = indexOperators(operatorRegistry)
)

func indexFields(defs []FieldDefinition) map[string]FieldDefinition {
	m := make(map[string]FieldDefinition, len(defs))
	for _, d := range defs {
		m[d.Key] = d
	}
	return m
}

func indexOperators(ops []OperatorInfo) map[Operator]OperatorInfo {
	m := make(map[Operator]OperatorInfo, len(ops))
	for _, o := range ops {
		m[o.Operator] = o
	}
	return m
}

// Fields returns the field registry in display order.
func Fields() []FieldDefinition {
	return slices.Clone(fieldDefinitions)
}

// LookupField returns the definition for a field key. Dot paths fall back to
// their last named segment, so "course_details.0.duration_weeks" is typed
// like duration_weeks.
func LookupField(key string) (FieldDefinition, bool) {
	if d, ok := fieldsByKey[key]; ok {
		return d, true
	}
	path, err := ParsePath(key)
	if err != nil || len(path) < 2 {
		return FieldDefinition{}, false
	}
	for i := len(path) - 1; i >= 0; i-- {
		if path[i].IsIndex {
			continue
		}
		d, ok := fieldsByKey[path[i].Key]
		return d, ok
	}
	return FieldDefinition{}, false
}

// FieldTypeOf returns the declared type of a field, FieldTypeAny when the
// field is not registered.
func FieldTypeOf(key string) FieldType {
	if d, ok := LookupField(key); ok {
		return d.Type
	}
	return FieldTypeAny
}

// Operators returns the operator registry.
func Operators() []OperatorInfo {
	return slices.Clone(operatorRegistry)
}

// OperatorsForFieldType lists the operators authoring tools offer for a
// field type, with labels adjusted for dates.
func OperatorsForFieldType(ft FieldType) []OperatorInfo {
	var out []OperatorInfo
	for _, info := range operatorRegistry {
		if !slices.Contains(info.FieldTypes, ft) {
			continue
		}
		info.Label = OperatorLabel(info.Operator, ft)
		out = append(out, info)
	}
	return out
}

// OperatorsForField lists the operators offered for a registered field.
func OperatorsForField(key string) []OperatorInfo {
	d, ok := LookupField(key)
	if !ok {
		return nil
	}
	return OperatorsForFieldType(d.Type)
}

// OperatorAllowed reports whether op may be used on a field of type ft.
// Unregistered fields (FieldTypeAny) accept every known operator.
func OperatorAllowed(op Operator, ft FieldType) bool {
	info, ok := operatorsByKey[op]
	if !ok {
		return false
	}
	if ft == FieldTypeAny || len(info.FieldTypes) == 0 {
		return true
	}
	return slices.Contains(info.FieldTypes, ft)
}

// OperatorLabel returns the display label for op in the context of ft.
func OperatorLabel(op Operator, ft FieldType) string {
	if ft == FieldTypeDate {
		if l, ok := dateOperatorLabels[op]; ok {
			return l
		}
	}
	if info, ok := operatorsByKey[op]; ok {
		return info.Label
	}
	return string(op)
}
