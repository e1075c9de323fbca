// internal/rules/samples.go
package rules

import (
	"maps"

	"github.com/solatis/quotekeeper/internal/types"
)

// SampleQuote is a canned flat quote record for testing rules without a
// real quote at hand.
type SampleQuote struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Quote types.Record `json:"quote"`
}

var sampleQuotes = []SampleQuote{
	{
		ID:   "sample_1",
		Name: "International Student - VET Course",
		Quote: types.Record{
			"student_visa":                 true,
			"onshore_offshore":             "offshore",
			"region_id":                    "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa",
			"course_type":                  "VET",
			"faculty_id":                   "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb",
			"campus_id":                    "cccccccc-cccc-cccc-cccc-cccccccccccc",
			"duration_weeks":               float64(52),
			"study_load":                   "full_time",
			"day_night_classes":            "day",
			"intake_date":                  "2024-07-01",
			"accommodation_type_id":        "cccccccc-cccc-cccc-cccc-cccccccccccc",
			"room_size_id":                 "eeeeeeee-eeee-eeee-eeee-eeeeeeeeeeee",
			"accommodation_price_per_week": float64(350),
			"needs_transport":              true,
			"previous_student":             false,
		},
	},
	{
		ID:   "sample_2",
		Name: "Local Student - ELICOS Course",
		Quote: types.Record{
			"student_visa":                 false,
			"onshore_offshore":             "onshore",
			"region_id":                    "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb",
			"course_type":                  "ELICOS",
			"faculty_id":                   "cccccccc-cccc-cccc-cccc-cccccccccccc",
			"campus_id":                    "dddddddd-dddd-dddd-dddd-dddddddddddd",
			"duration_weeks":               float64(12),
			"study_load":                   "part_time",
			"day_night_classes":            "night",
			"intake_date":                  "2024-05-01",
			"accommodation_type_id":        "dddddddd-dddd-dddd-dddd-dddddddddddd",
			"room_size_id":                 "ffffffff-ffff-ffff-ffff-ffffffffffff",
			"accommodation_price_per_week": float64(250),
			"needs_transport":              false,
			"previous_student":             true,
		},
	},
	{
		ID:   "sample_3",
		Name: "Returning Student - VET Course",
		Quote: types.Record{
			"student_visa":                 true,
			"onshore_offshore":             "onshore",
			"region_id":                    "cccccccc-cccc-cccc-cccc-cccccccccccc",
			"course_type":                  "VET",
			"faculty_id":                   "dddddddd-dddd-dddd-dddd-dddddddddddd",
			"campus_id":                    "cccccccc-cccc-cccc-cccc-cccccccccccc",
			"duration_weeks":               float64(26),
			"study_load":                   "full_time",
			"day_night_classes":            "day",
			"intake_date":                  "2024-09-01",
			"accommodation_type_id":        nil,
			"room_size_id":                 nil,
			"accommodation_price_per_week": float64(0),
			"needs_transport":              false,
			"previous_student":             true,
		},
	},
}

// SampleQuotes returns copies of the canned sample quotes.
func SampleQuotes() []SampleQuote {
	out := make([]SampleQuote, len(sampleQuotes))
	for i, s := range sampleQuotes {
		s.Quote = maps.Clone(s.Quote)
		out[i] = s
	}
	return out
}

// SampleRecords returns just the records of SampleQuotes.
func SampleRecords() []types.Record {
	samples := SampleQuotes()
	out := make([]types.Record, len(samples))
	for i, s := range samples {
		out[i] = s.Quote
	}
	return out
}
