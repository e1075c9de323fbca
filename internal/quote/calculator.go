package quote

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/solatis/quotekeeper/internal/rules"
	"github.com/solatis/quotekeeper/internal/types"
)

/*
 * Quote calculation pipeline.
 *
 * Stages run in a fixed order; later stages read totals from earlier ones:
 *   1. course base price per course (BasePrice, else weekly * weeks)
 *   2. course_price rules per course; percent uses that course's base price
 *   3. accommodation base price and accommodation_price rules
 *   4. subtotal = adjusted courses + adjusted accommodation
 *   5. fees; percent uses subtotal
 *   6. discounts; percent uses totalWithFees, not subtotal
 *   7. total = totalWithFees + discount amounts (amounts are negative)
 *
 * Matching rules apply in the order they were supplied; nothing is re-sorted.
 * Every applied rule is recorded in the breakdown.
 *
 * Soft failures (no price record, invalid conditions, unknown stage) never
 * abort: the item or rule contributes nothing, a warning is added to the
 * output and logged. Only a structurally invalid QuoteInput is an error.
 *
 * The total has no floor; discounts larger than the running total produce a
 * negative quote.
 */

// Options tunes a single calculation.
type Options struct {
	// AsOf, when set, skips rules not active at that instant. The zero value
	// trusts the caller to have supplied active rules only.
	AsOf time.Time
}

// Calculator prices quotes.
type Calculator struct {
	engine *rules.Engine
	logger *slog.Logger
}

// NewCalculator builds a calculator. Nil arguments fall back to a default
// engine and slog.Default().
func NewCalculator(engine *rules.Engine, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = rules.NewEngine(logger)
	}
	return &Calculator{engine: engine, logger: logger}
}

// Partition groups compiled rules by pipeline stage, preserving order.
type Partition struct {
	Course        []*rules.CompiledRule
	Accommodation []*rules.CompiledRule
	Fees          []*rules.CompiledRule
	Discounts     []*rules.CompiledRule
	Unknown       []*rules.CompiledRule
}

// PartitionRules splits rules by applies_to stage. Within a stage rules
// follow types.CalculationOrder; rules of the same applies_to keep their
// input order.
func PartitionRules(compiled []*rules.CompiledRule) Partition {
	ordered := slices.Clone(compiled)
	slices.SortStableFunc(ordered, func(a, b *rules.CompiledRule) int {
		return cmp.Compare(a.Rule.AppliesTo.Rank(), b.Rule.AppliesTo.Rank())
	})

	var p Partition
	for _, r := range ordered {
		switch r.Rule.AppliesTo.Stage() {
		case types.StageCoursePrice:
			p.Course = append(p.Course, r)
		case types.StageAccommodationPrice:
			p.Accommodation = append(p.Accommodation, r)
		case types.StageFee:
			p.Fees = append(p.Fees, r)
		case types.StageDiscount:
			p.Discounts = append(p.Discounts, r)
		default:
			p.Unknown = append(p.Unknown, r)
		}
	}
	return p
}

// CalculateFinalQuote prices in with a default calculator.
func CalculateFinalQuote(in types.QuoteInput, rs []types.Rule, prices types.PriceTables) (types.QuoteOutput, error) {
	return NewCalculator(nil, nil).Calculate(in, rs, prices, Options{})
}

// Calculate prices a quote.
// Returns ErrInvalidQuoteInput (wrapped in a ValidationError) when the input
// is missing student or course details; nothing is priced in that case.
func (c *Calculator) Calculate(in types.QuoteInput, rs []types.Rule, prices types.PriceTables, opts Options) (types.QuoteOutput, error) {
	if err := ValidateInput(&in); err != nil {
		return types.QuoteOutput{}, err
	}

	run := &calculation{
		calc: c,
		out: types.QuoteOutput{
			Breakdown: types.Breakdown{
				Courses:   []types.CourseLine{},
				Fees:      []types.Adjustment{},
				Discounts: []types.Adjustment{},
			},
		},
	}

	active := rs
	if !opts.AsOf.IsZero() {
		active = make([]types.Rule, 0, len(rs))
		for _, r := range rs {
			if rules.IsActive(r, opts.AsOf) {
				active = append(active, r)
			}
		}
	}
	part := PartitionRules(c.engine.CompileAll(active))
	for _, r := range part.Unknown {
		run.warn("rule skipped: unknown applies_to",
			fmt.Sprintf("rule %s skipped: unknown applies_to %q", r.Rule.Label(), string(r.Rule.AppliesTo)),
			"rule_id", r.Rule.ID)
	}

	var room *types.AccommodationRoom
	if in.Accommodation != nil {
		if r, ok := FindAccommodationRoom(prices.AccommodationRooms, *in.Accommodation); ok {
			room = &r
		}
	}
	records := newRecordBuilder(in, room)

	subtotal := run.courses(in, prices.CoursePrices, part.Course, records)
	subtotal = subtotal.Add(run.accommodation(in, room, part.Accommodation, records))

	quoteRecord := records.quoteLevel(in)
	fees := run.adjustments(part.Fees, quoteRecord, subtotal)
	totalWithFees := subtotal.Add(sum(fees))

	discounts := run.adjustments(part.Discounts, quoteRecord, totalWithFees)
	total := totalWithFees.Add(sum(discounts))

	run.out.Subtotal = subtotal
	run.out.TotalWithFees = totalWithFees
	run.out.TotalPrice = total
	run.out.Breakdown.Fees = fees
	run.out.Breakdown.Discounts = discounts

	c.logger.Debug("quote calculated",
		"courses", len(run.out.Breakdown.Courses),
		"fees", len(fees),
		"discounts", len(discounts),
		"total", total.String(),
		"warnings", len(run.out.Warnings))

	return run.out, nil
}

// calculation is the mutable state of one Calculate call.
type calculation struct {
	calc *Calculator
	out  types.QuoteOutput
}

func (r *calculation) warn(msg, warning string, args ...any) {
	r.calc.logger.Warn(msg, args...)
	r.out.Warnings = append(r.out.Warnings, warning)
}

// courses runs stages 1 and 2 and returns the sum of adjusted prices.
func (r *calculation) courses(in types.QuoteInput, prices []types.CoursePrice, rs []*rules.CompiledRule, records recordBuilder) types.Amount {
	total := types.Zero
	region := in.StudentDetails.RegionID

	for i := range in.CourseDetails {
		course := in.CourseDetails[i]
		price, ok := FindCoursePrice(prices, course.CourseID, region)
		if !ok {
			r.warn("no price for course",
				fmt.Sprintf("no price found for course %s", course.CourseID),
				"course_id", course.CourseID)
			continue
		}
		base, ok := CourseBasePrice(course, price)
		if !ok {
			r.warn("course price has no amount",
				fmt.Sprintf("price record %s for course %s has neither base_price nor price_per_week", price.ID, course.CourseID),
				"course_id", course.CourseID, "price_id", price.ID)
		}

		adjustments := r.adjustments(rs, records.forCourse(&course), base)
		adjusted := base.Add(sum(adjustments))

		r.out.Breakdown.Courses = append(r.out.Breakdown.Courses, types.CourseLine{
			CourseID:      course.CourseID,
			BasePrice:     base,
			AdjustedPrice: adjusted,
			Adjustments:   adjustments,
		})
		total = total.Add(adjusted)
	}
	return total
}

// accommodation runs stage 3 and returns the adjusted accommodation price.
func (r *calculation) accommodation(in types.QuoteInput, room *types.AccommodationRoom, rs []*rules.CompiledRule, records recordBuilder) types.Amount {
	sel := in.Accommodation
	if sel == nil {
		return types.Zero
	}
	if room == nil {
		r.warn("no rate for accommodation",
			fmt.Sprintf("no price found for accommodation %s / room size %s", sel.AccommodationTypeID, sel.RoomSizeID),
			"accommodation_type_id", sel.AccommodationTypeID, "room_size_id", sel.RoomSizeID)
		return types.Zero
	}

	base := room.PricePerWeek.MulInt(int64(sel.DurationWeeks))
	adjustments := r.adjustments(rs, records.quoteLevel(in), base)
	adjusted := base.Add(sum(adjustments))

	r.out.Breakdown.Accommodation = &types.AccommodationLine{
		AccommodationTypeID: sel.AccommodationTypeID,
		RoomSizeID:          sel.RoomSizeID,
		BasePrice:           base,
		AdjustedPrice:       adjusted,
		Adjustments:         adjustments,
	}
	return adjusted
}

// adjustments evaluates rs against record in order and prices each match
// against base.
func (r *calculation) adjustments(rs []*rules.CompiledRule, record types.Record, base types.Amount) []types.Adjustment {
	out := []types.Adjustment{}
	for _, cr := range rs {
		if !r.calc.engine.Applies(cr, record) {
			continue
		}
		amount, ok := RuleAmount(cr.Rule, base)
		if !ok {
			r.warn("rule skipped: unknown value type",
				fmt.Sprintf("rule %s skipped: unknown value type %q", cr.Rule.Label(), string(cr.Rule.ValueType)),
				"rule_id", cr.Rule.ID)
			continue
		}
		out = append(out, types.Adjustment{
			RuleID:    cr.Rule.ID,
			RuleName:  cr.Rule.Label(),
			AppliesTo: cr.Rule.AppliesTo,
			Amount:    amount,
			Type:      cr.Rule.ValueType,
		})
	}
	return out
}

// RuleAmount prices one rule: fixed adds its value, percent takes value
// percent of base.
func RuleAmount(rule types.Rule, base types.Amount) (types.Amount, bool) {
	switch rule.ValueType {
	case types.ValueFixed:
		return rule.Value, true
	case types.ValuePercent:
		return base.Percent(rule.Value), true
	default:
		return types.Zero, false
	}
}

func sum(adjs []types.Adjustment) types.Amount {
	total := types.Zero
	for _, a := range adjs {
		total = total.Add(a.Amount)
	}
	return total
}
