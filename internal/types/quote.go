// internal/types/quote.go
package types

import "time"

/*
 * Quote input, price lookup tables and quote output.
 *
 * QuoteInput JSON keys follow the shape the quoting UI submits
 * (student_details uses camelCase, everything else snake_case).
 * QuoteOutput is freshly built on every calculation and never mutated
 * after it is returned.
 */

// StudentDetails describes the prospective student.
type StudentDetails struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	DateOfBirth     string `json:"dateOfBirth,omitempty"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	Nationality     string `json:"nationality"`
	IsOffshore      bool   `json:"isOffshore"`
	IsStudentVisa   bool   `json:"isStudentVisa"`
	PreviousStudent bool   `json:"previous_student,omitempty"`
	RegionID        string `json:"region_id,omitempty"`
}

// FullName joins first and last name.
func (s StudentDetails) FullName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	default:
		return s.FirstName + " " + s.LastName
	}
}

// CourseSelection is one requested course.
type CourseSelection struct {
	CourseID        string `json:"course_id"`
	CampusID        string `json:"campus_id"`
	IntakeDate      string `json:"intake_date"`
	DurationWeeks   int    `json:"duration_weeks"`
	CourseType      string `json:"course_type"`
	FacultyID       string `json:"faculty_id,omitempty"`
	StudyLoad       string `json:"study_load,omitempty"`
	DayNightClasses string `json:"day_night_classes,omitempty"`
}

// AccommodationSelection is the optional accommodation request.
type AccommodationSelection struct {
	AccommodationTypeID string `json:"accommodation_type_id"`
	RoomSizeID          string `json:"room_size_id"`
	CheckInDate         string `json:"check_in_date,omitempty"`
	DurationWeeks       int    `json:"duration_weeks"`
	NeedsTransport      bool   `json:"needs_transport,omitempty"`
}

// QuoteInput describes one prospective enrollment.
// StudentDetails and CourseDetails are required; a nil value for either
// rejects the calculation before any pricing work.
type QuoteInput struct {
	StudentDetails *StudentDetails         `json:"student_details"`
	CourseDetails  []CourseSelection       `json:"course_details"`
	Accommodation  *AccommodationSelection `json:"accommodation,omitempty"`
}

// CoursePrice is a course price lookup record. BasePrice wins over
// PricePerWeek when both are present.
type CoursePrice struct {
	ID              string  `json:"id"`
	CourseDetailsID string  `json:"course_details_id"`
	RegionID        string  `json:"region_id,omitempty"`
	BasePrice       *Amount `json:"base_price"`
	PricePerWeek    *Amount `json:"price_per_week"`
}

// AccommodationRoom is a weekly rate keyed by accommodation type and room size.
type AccommodationRoom struct {
	AccommodationTypeID string `json:"accommodation_type_id"`
	RoomSizeID          string `json:"room_size_id"`
	PricePerWeek        Amount `json:"price_per_week"`
}

// PriceTables bundles the lookup tables the calculator prices against.
type PriceTables struct {
	CoursePrices       []CoursePrice       `json:"course_prices"`
	AccommodationRooms []AccommodationRoom `json:"accommodation_rooms"`
}

// ReferenceData is a bulk load of price tables and lookup options, keyed by
// dynamic field type (campus, faculty, region, accommodation_type,
// room_size). Course prices are stored in list order.
type ReferenceData struct {
	CoursePrices       []CoursePrice             `json:"course_prices"`
	AccommodationRooms []AccommodationRoom       `json:"accommodation_rooms"`
	LookupOptions      map[string][]LookupOption `json:"lookup_options"`
}

// Adjustment records one applied rule: which rule, how much, and how the
// amount was derived. Every adjustment, fee and discount is kept so staff can
// trace a price from base to total.
type Adjustment struct {
	RuleID    RuleID    `json:"rule_id"`
	RuleName  string    `json:"rule_name"`
	AppliesTo AppliesTo `json:"applies_to"`
	Amount    Amount    `json:"amount"`
	Type      ValueType `json:"type"`
}

// CourseLine is the priced breakdown of one course.
type CourseLine struct {
	CourseID      string       `json:"course_id"`
	BasePrice     Amount       `json:"base_price"`
	AdjustedPrice Amount       `json:"adjusted_price"`
	Adjustments   []Adjustment `json:"adjustments"`
}

// AccommodationLine is the priced breakdown of the accommodation selection.
type AccommodationLine struct {
	AccommodationTypeID string       `json:"accommodation_type_id"`
	RoomSizeID          string       `json:"room_size_id"`
	BasePrice           Amount       `json:"base_price"`
	AdjustedPrice       Amount       `json:"adjusted_price"`
	Adjustments         []Adjustment `json:"adjustments"`
}

// Breakdown itemises a quote.
type Breakdown struct {
	Courses       []CourseLine       `json:"courses"`
	Accommodation *AccommodationLine `json:"accommodation,omitempty"`
	Fees          []Adjustment       `json:"fees"`
	Discounts     []Adjustment       `json:"discounts"`
}

// QuoteOutput is the priced quote.
// TotalPrice may be negative when discounts exceed the running total.
type QuoteOutput struct {
	TotalPrice    Amount    `json:"total_price"`
	Subtotal      Amount    `json:"subtotal"`
	TotalWithFees Amount    `json:"total_with_fees"`
	Breakdown     Breakdown `json:"breakdown"`
	Warnings      []string  `json:"warnings,omitempty"`
}

// QuoteRecord is a saved quote.
type QuoteRecord struct {
	ID           QuoteID     `json:"id"`
	QuoteInput   QuoteInput  `json:"quote_input"`
	QuoteOutput  QuoteOutput `json:"quote_output"`
	TotalPrice   Amount      `json:"total_price"`
	StudentName  string      `json:"student_name"`
	StudentEmail string      `json:"student_email"`
	CreatedAt    time.Time   `json:"created_at"`
}

// LookupOption is one candidate value for a dynamic-option field
// (a campus, faculty, region, accommodation type or room size).
type LookupOption struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
