package quote

import (
	"encoding/json"
	"maps"

	"github.com/solatis/quotekeeper/internal/types"
)

// Record building.
//
// Conditions see one flat record per evaluation: the registry's attribute
// names (student_visa, course_type, accommodation_price_per_week, ...) at the
// top level, plus the nested input sections so dot paths such as
// "student_details.nationality" or "course_details.1.campus_id" resolve.
// Empty strings are left out so exists/notexists describe what the student
// actually supplied.

// recordBuilder holds the parts of the record shared by every stage.
type recordBuilder struct {
	base types.Record
}

func newRecordBuilder(in types.QuoteInput, room *types.AccommodationRoom) recordBuilder {
	base := nestedSections(in)

	if s := in.StudentDetails; s != nil {
		base["student_visa"] = s.IsStudentVisa
		base["previous_student"] = s.PreviousStudent
		base["onshore_offshore"] = "onshore"
		if s.IsOffshore {
			base["onshore_offshore"] = "offshore"
		}
		putString(base, "nationality", s.Nationality)
		putString(base, "region_id", s.RegionID)
	}

	if a := in.Accommodation; a != nil {
		putString(base, "accommodation_type_id", a.AccommodationTypeID)
		putString(base, "room_size_id", a.RoomSizeID)
		putString(base, "check_in_date", a.CheckInDate)
		base["accommodation_duration_weeks"] = float64(a.DurationWeeks)
		base["needs_transport"] = a.NeedsTransport
		if room != nil {
			base["accommodation_price_per_week"] = room.PricePerWeek.Float64()
		}
	}

	return recordBuilder{base: base}
}

// forCourse returns the record used for a course's own pricing rules.
// A nil course yields the quote-level record.
func (b recordBuilder) forCourse(c *types.CourseSelection) types.Record {
	rec := maps.Clone(b.base)
	if c == nil {
		return rec
	}
	putString(rec, "course_id", c.CourseID)
	putString(rec, "campus_id", c.CampusID)
	putString(rec, "intake_date", c.IntakeDate)
	putString(rec, "course_type", c.CourseType)
	putString(rec, "faculty_id", c.FacultyID)
	putString(rec, "study_load", c.StudyLoad)
	putString(rec, "day_night_classes", c.DayNightClasses)
	rec["duration_weeks"] = float64(c.DurationWeeks)
	return rec
}

// quoteLevel returns the record used by accommodation, fee and discount
// rules: quote attributes plus the first course's attributes.
func (b recordBuilder) quoteLevel(in types.QuoteInput) types.Record {
	if len(in.CourseDetails) == 0 {
		return b.forCourse(nil)
	}
	return b.forCourse(&in.CourseDetails[0])
}

// BuildRecord returns the quote-level evaluation record for in. Exposed for
// rule testing against real quotes.
func BuildRecord(in types.QuoteInput, prices types.PriceTables) types.Record {
	var room *types.AccommodationRoom
	if in.Accommodation != nil {
		if r, ok := FindAccommodationRoom(prices.AccommodationRooms, *in.Accommodation); ok {
			room = &r
		}
	}
	return newRecordBuilder(in, room).quoteLevel(in)
}

// nestedSections renders the input through its JSON shape so nested keys
// match what rule authors see in saved quotes.
func nestedSections(in types.QuoteInput) types.Record {
	rec := types.Record{}
	data, err := json.Marshal(in)
	if err != nil {
		return rec
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return rec
	}
	for k, v := range m {
		rec[k] = v
	}
	return rec
}

func putString(rec types.Record, key, value string) {
	if value != "" {
		rec[key] = value
	}
}
