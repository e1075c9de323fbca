// Package quote prices a QuoteInput against pricing, fee and discount rules.
//
// The calculator is synchronous and pure: rules and price tables are supplied
// already loaded, nothing is fetched or cached here, and identical inputs
// always produce identical output. Callers (internal/core/api, the CLI) own
// I/O, caching and logging of soft-failure diagnostics beyond what the
// calculator logs itself.
package quote

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/solatis/quotekeeper/internal/types"
)

// DecodeInput parses a QuoteInput and validates its required structure.
// Malformed JSON and missing required sections are both reported as
// ErrInvalidQuoteInput.
func DecodeInput(data []byte) (types.QuoteInput, error) {
	var in types.QuoteInput
	if len(bytes.TrimSpace(data)) == 0 {
		return in, types.InputError("", "quote input is required")
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, &types.ValidationError{
			Reason: "malformed quote input",
			Kind:   types.ErrInvalidQuoteInput,
			Cause:  err,
		}
	}
	if err := ValidateInput(&in); err != nil {
		return in, err
	}
	return in, nil
}

// ValidateInput rejects quotes that cannot be priced at all. An empty
// course list is allowed; an absent one is not.
func ValidateInput(in *types.QuoteInput) error {
	if in == nil {
		return types.InputError("", "quote input is required")
	}
	if in.StudentDetails == nil {
		return &types.ValidationError{
			Field:  "student_details",
			Reason: "is required",
			Kind:   types.ErrInvalidQuoteInput,
			Cause:  types.ErrMissingStudentDetails,
		}
	}
	if in.CourseDetails == nil {
		return &types.ValidationError{
			Field:  "course_details",
			Reason: "is required",
			Kind:   types.ErrInvalidQuoteInput,
			Cause:  types.ErrMissingCourseDetails,
		}
	}
	for i, c := range in.CourseDetails {
		if c.CourseID == "" {
			return types.InputError(fmt.Sprintf("course_details[%d].course_id", i), "is required")
		}
		if c.DurationWeeks < 0 {
			return types.InputError(fmt.Sprintf("course_details[%d].duration_weeks", i), "must not be negative")
		}
	}
	if a := in.Accommodation; a != nil && a.DurationWeeks < 0 {
		return types.InputError("accommodation.duration_weeks", "must not be negative")
	}
	return nil
}
