// internal/rules/coercion.go
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/quotekeeper/internal/types"
)

/*
 * Type coercion for rule evaluation.
 *
 * Both sides of a condition are normalized to the field's registered type
 * before the operator runs:
 *   - number: strict; float64 and ints pass, numeric strings parse, booleans fail
 *   - boolean: strict; bool only, no "true"/1 guessing
 *   - date: time.Time, or a string in one of dateLayouts
 *   - textual types (string, string_option, course_type, lookup ids): lenient,
 *     scalars are rendered as strings
 *   - unregistered fields: value passes through untouched
 *
 * Slice comparison values (in/nin/between) are coerced element by element.
 *
 * Null values are not coercion failures: Coerce reports IsNull and the
 * evaluator applies absent-value semantics instead.
 */

// dateLayouts are the accepted date spellings, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// CoercionResult holds the coerced value or indicates null.
type CoercionResult struct {
	Value  any  // coerced value (valid only if !IsNull)
	IsNull bool // true if input was nil/null
}

// Coerce attempts to convert value to the expected field type.
// Returns CoercionResult with IsNull=true for nil input.
// Returns ErrCoercionFailed for impossible coercions.
func Coerce(value any, fieldType FieldType) (CoercionResult, error) {
	if value == nil {
		return CoercionResult{IsNull: true}, nil
	}

	switch {
	case fieldType == FieldTypeNumber:
		return coerceNumeric(value)
	case fieldType == FieldTypeBoolean:
		return coerceBoolean(value)
	case fieldType == FieldTypeDate:
		return coerceDate(value)
	case fieldType.Textual():
		return coerceText(value)
	case fieldType == FieldTypeAny:
		return CoercionResult{Value: value}, nil
	default:
		return CoercionResult{}, fmt.Errorf("%w: %q", types.ErrUnknownFieldType, string(fieldType))
	}
}

// CoerceCompare coerces a condition's comparison value. Slices are coerced
// element by element; existence operators carry no comparison value.
func CoerceCompare(op Operator, value any, fieldType FieldType) (any, error) {
	if op.Family() == FamilyExistence || fieldType == FieldTypeAny {
		return value, nil
	}
	// String operators compare text regardless of the field's declared type.
	if op.Family() == FamilyString {
		return value, nil
	}
	if elems, ok := asSlice(value); ok {
		out := make([]any, len(elems))
		for i, e := range elems {
			r, err := Coerce(e, fieldType)
			if err != nil {
				return nil, err
			}
			out[i] = r.Value
		}
		return out, nil
	}
	r, err := Coerce(value, fieldType)
	if err != nil {
		return nil, err
	}
	return r.Value, nil
}

// coerceNumeric converts value to float64 for numeric comparison.
// Accepts float64, ints and numeric strings. Rejects booleans per strict mode.
// Whitespace-only strings return ErrCoercionFailed.
func coerceNumeric(value any) (CoercionResult, error) {
	if f, ok := toFloat64(value); ok {
		return CoercionResult{Value: f}, nil
	}
	switch v := value.(type) {
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		return CoercionResult{Value: f}, nil
	default:
		return CoercionResult{}, types.ErrCoercionFailed
	}
}

// coerceText converts scalars to their string representation.
func coerceText(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case string:
		return CoercionResult{Value: v}, nil
	case float64:
		return CoercionResult{Value: strconv.FormatFloat(v, 'f', -1, 64)}, nil
	case int:
		return CoercionResult{Value: strconv.Itoa(v)}, nil
	case int64:
		return CoercionResult{Value: strconv.FormatInt(v, 10)}, nil
	case bool:
		return CoercionResult{Value: strconv.FormatBool(v)}, nil
	case []any, map[string]any:
		return CoercionResult{}, types.ErrCoercionFailed
	default:
		return CoercionResult{Value: fmt.Sprintf("%v", v)}, nil
	}
}

// coerceBoolean validates value is boolean type for boolean comparison.
func coerceBoolean(value any) (CoercionResult, error) {
	if v, ok := value.(bool); ok {
		return CoercionResult{Value: v}, nil
	}
	return CoercionResult{}, types.ErrCoercionFailed
}

// coerceDate parses strings into time.Time.
func coerceDate(value any) (CoercionResult, error) {
	t, ok := parseDate(value)
	if !ok {
		return CoercionResult{}, types.ErrCoercionFailed
	}
	return CoercionResult{Value: t}, nil
}

// parseDate accepts time.Time values and strings in dateLayouts.
func parseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case *time.Time:
		if d == nil {
			return time.Time{}, false
		}
		return *d, true
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
