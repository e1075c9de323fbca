package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for quotekeeper operations.
var (
	// ErrInvalidQuoteInput indicates the quote input is missing or malformed.
	// Calculation is rejected before any pricing work.
	ErrInvalidQuoteInput = errors.New("invalid quote input")

	// ErrMissingStudentDetails indicates student_details is absent.
	ErrMissingStudentDetails = errors.New("missing student_details")

	// ErrMissingCourseDetails indicates course_details is absent.
	ErrMissingCourseDetails = errors.New("missing course_details")

	// ErrInvalidRule indicates a rule failed authoring validation.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrRuleNotFound indicates no rule exists with the requested id.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrQuoteNotFound indicates no saved quote exists with the requested id.
	ErrQuoteNotFound = errors.New("quote not found")

	// ErrUnknownOperator indicates an operator outside the closed set.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrInvalidCondition indicates a condition leaf or group is malformed.
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrCoercionFailed indicates a value could not be converted to the
	// field's declared type.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrFieldNotFound indicates a field path could not be resolved.
	ErrFieldNotFound = errors.New("field not found")

	// ErrPathTooDeep indicates a field path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("field path exceeds maximum depth")

	// ErrUnknownFieldType indicates a lookup for a field type with no options.
	ErrUnknownFieldType = errors.New("unknown field type")

	// ErrInvalidReferenceData indicates an import row is missing its key.
	ErrInvalidReferenceData = errors.New("invalid reference data")
)

// ValidationError reports one invalid field.
// Unwraps to ErrInvalidQuoteInput or ErrInvalidRule depending on what was
// being validated, so callers can branch with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
	Kind   error // ErrInvalidQuoteInput or ErrInvalidRule
	Cause  error // optional, more specific sentinel
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Field, e.Reason)
}

// Unwrap returns the validation kind sentinel and the cause, if any.
func (e *ValidationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// InputError builds a quote-input ValidationError.
func InputError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason, Kind: ErrInvalidQuoteInput}
}

// RuleError builds a rule ValidationError.
func RuleError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason, Kind: ErrInvalidRule}
}

// IsValidation reports whether err is a ValidationError of any kind.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
