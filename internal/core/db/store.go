package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/solatis/quotekeeper/internal/tracing"
	"github.com/solatis/quotekeeper/internal/types"
)

// Quote listing bounds.
const (
	DefaultQuoteLimit = 50
	MaxQuoteLimit     = 500
)

// emptyConditions is stored for rules saved without a condition tree.
const emptyConditions = `{"group_operator":"AND","conditions":[]}`

// Store persists rules, price tables, lookup options and saved quotes.
type Store struct {
	db *sqlx.DB
	q  *Queries
}

// NewStore loads the named queries for db.
func NewStore(db *sqlx.DB) (*Store, error) {
	q, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, q: q}, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type ruleRow struct {
	ID          string       `db:"id"`
	Name        string       `db:"name"`
	Description string       `db:"description"`
	AppliesTo   string       `db:"applies_to"`
	ValueType   string       `db:"value_type"`
	Value       types.Amount `db:"value"`
	Conditions  string       `db:"conditions"`
	StartDate   sql.NullTime `db:"start_date"`
	EndDate     sql.NullTime `db:"end_date"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
}

func (r ruleRow) record() types.RuleRecord {
	rec := types.RuleRecord{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		AppliesTo:   r.AppliesTo,
		ValueType:   r.ValueType,
		Value:       r.Value,
		Conditions:  json.RawMessage(r.Conditions),
		StartDate:   nullTime(r.StartDate),
		EndDate:     nullTime(r.EndDate),
	}
	created, updated := r.CreatedAt, r.UpdatedAt
	rec.CreatedAt, rec.UpdatedAt = &created, &updated
	return rec
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func rowsToRecords(rows []ruleRow) []types.RuleRecord {
	out := make([]types.RuleRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out
}

// ListRules returns every rule, oldest first.
func (s *Store) ListRules(ctx context.Context) (recs []types.RuleRecord, err error) {
	ctx, span := tracing.Start(ctx, "store.ListRules")
	defer func() { tracing.End(span, err) }()

	var rows []ruleRow
	if err := s.q.Select(ctx, "list-rules", &rows); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rowsToRecords(rows), nil
}

// ActiveRules returns rules in force at now: a start date on or before now
// and no end date or one on or after now. Order is creation order.
func (s *Store) ActiveRules(ctx context.Context, now time.Time) (recs []types.RuleRecord, err error) {
	ctx, span := tracing.Start(ctx, "store.ActiveRules")
	defer func() { tracing.End(span, err) }()

	now = now.UTC()
	var rows []ruleRow
	if err := s.q.Select(ctx, "list-active-rules", &rows, now, now); err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	span.SetAttributes(attribute.Int("rules.count", len(rows)))
	return rowsToRecords(rows), nil
}

// GetRule returns one rule or ErrRuleNotFound.
func (s *Store) GetRule(ctx context.Context, id string) (rec types.RuleRecord, err error) {
	ctx, span := tracing.Start(ctx, "store.GetRule", attribute.String("rule.id", id))
	defer func() { tracing.End(span, err) }()

	var row ruleRow
	err = s.q.Get(ctx, "get-rule", &row, id)
	if errors.Is(err, sql.ErrNoRows) {
		return types.RuleRecord{}, fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	if err != nil {
		return types.RuleRecord{}, fmt.Errorf("get rule %s: %w", id, err)
	}
	return row.record(), nil
}

// SaveRule inserts or updates a rule. Records without an id get a new
// UUIDv7; records with an unknown id are inserted under that id. Legacy
// aliases (rule_name, type, ...) are resolved before writing. The stored
// record is returned.
func (s *Store) SaveRule(ctx context.Context, rec types.RuleRecord) (saved types.RuleRecord, err error) {
	ctx, span := tracing.Start(ctx, "store.SaveRule")
	defer func() { tracing.End(span, err) }()

	now := time.Now().UTC()
	conditions := string(rec.Conditions)
	if len(rec.Conditions) == 0 || string(rec.Conditions) == "null" {
		conditions = emptyConditions
	}
	row := ruleRow{
		ID:          rec.ID,
		Name:        rec.DisplayName(),
		Description: rec.DisplayDescription(),
		AppliesTo:   rec.AppliesTo,
		ValueType:   string(rec.ResolvedValueType()),
		Value:       rec.Value,
		Conditions:  conditions,
	}
	start, end := utc(rec.StartDate), utc(rec.EndDate)

	if row.ID != "" {
		res, err := s.q.Exec(ctx, "update-rule",
			row.Name, row.Description, row.AppliesTo, row.ValueType, row.Value,
			row.Conditions, start, end, now, row.ID)
		if err != nil {
			return types.RuleRecord{}, fmt.Errorf("update rule %s: %w", row.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return s.GetRule(ctx, row.ID)
		}
	} else {
		row.ID = string(types.NewRuleID())
	}

	if _, err := s.q.Exec(ctx, "insert-rule",
		row.ID, row.Name, row.Description, row.AppliesTo, row.ValueType, row.Value,
		row.Conditions, start, end, now, now); err != nil {
		return types.RuleRecord{}, fmt.Errorf("insert rule %s: %w", row.ID, err)
	}
	return s.GetRule(ctx, row.ID)
}

// DeleteRule removes a rule or returns ErrRuleNotFound.
func (s *Store) DeleteRule(ctx context.Context, id string) (err error) {
	ctx, span := tracing.Start(ctx, "store.DeleteRule", attribute.String("rule.id", id))
	defer func() { tracing.End(span, err) }()

	res, err := s.q.Exec(ctx, "delete-rule", id)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	return nil
}

type coursePriceRow struct {
	ID              string        `db:"id"`
	CourseDetailsID string        `db:"course_details_id"`
	RegionID        string        `db:"region_id"`
	BasePrice       *types.Amount `db:"base_price"`
	PricePerWeek    *types.Amount `db:"price_per_week"`
}

type accommodationRoomRow struct {
	AccommodationTypeID string       `db:"accommodation_type_id"`
	RoomSizeID          string       `db:"room_size_id"`
	PricePerWeek        types.Amount `db:"price_per_week"`
}

// PriceTables loads course prices for courseIDs (all courses when nil) and
// every accommodation room rate.
func (s *Store) PriceTables(ctx context.Context, courseIDs []string) (pt types.PriceTables, err error) {
	ctx, span := tracing.Start(ctx, "store.PriceTables", attribute.Int("courses.count", len(courseIDs)))
	defer func() { tracing.End(span, err) }()

	var prices []coursePriceRow
	switch {
	case courseIDs == nil:
		err = s.q.Select(ctx, "list-course-prices", &prices)
	case len(courseIDs) > 0:
		err = s.q.SelectIn(ctx, "list-course-prices-for", &prices, courseIDs)
	}
	if err != nil {
		return types.PriceTables{}, fmt.Errorf("load course prices: %w", err)
	}

	var rooms []accommodationRoomRow
	if err = s.q.Select(ctx, "list-accommodation-rooms", &rooms); err != nil {
		return types.PriceTables{}, fmt.Errorf("load accommodation rooms: %w", err)
	}

	pt = types.PriceTables{
		CoursePrices:       make([]types.CoursePrice, 0, len(prices)),
		AccommodationRooms: make([]types.AccommodationRoom, 0, len(rooms)),
	}
	for _, p := range prices {
		pt.CoursePrices = append(pt.CoursePrices, types.CoursePrice(p))
	}
	for _, r := range rooms {
		pt.AccommodationRooms = append(pt.AccommodationRooms, types.AccommodationRoom(r))
	}
	return pt, nil
}

// SaveCoursePrice upserts a course price. sortOrder breaks ties when a
// course has several records for the same region.
func (s *Store) SaveCoursePrice(ctx context.Context, p types.CoursePrice, sortOrder int) (err error) {
	ctx, span := tracing.Start(ctx, "store.SaveCoursePrice", attribute.String("course.id", p.CourseDetailsID))
	defer func() { tracing.End(span, err) }()

	if p.ID == "" {
		p.ID = string(types.NewRuleID())
	}
	if _, err := s.q.Exec(ctx, "upsert-course-price",
		p.ID, p.CourseDetailsID, p.RegionID, p.BasePrice, p.PricePerWeek, sortOrder); err != nil {
		return fmt.Errorf("save course price %s: %w", p.ID, err)
	}
	return nil
}

// SaveAccommodationRoom upserts a weekly room rate.
func (s *Store) SaveAccommodationRoom(ctx context.Context, r types.AccommodationRoom) (err error) {
	ctx, span := tracing.Start(ctx, "store.SaveAccommodationRoom")
	defer func() { tracing.End(span, err) }()

	if _, err := s.q.Exec(ctx, "upsert-accommodation-room",
		r.AccommodationTypeID, r.RoomSizeID, r.PricePerWeek); err != nil {
		return fmt.Errorf("save accommodation room %s/%s: %w", r.AccommodationTypeID, r.RoomSizeID, err)
	}
	return nil
}

// LookupOptions lists the options stored for a dynamic field type
// (campus, faculty, region, accommodation_type, room_size).
func (s *Store) LookupOptions(ctx context.Context, fieldType string) (opts []types.LookupOption, err error) {
	ctx, span := tracing.Start(ctx, "store.LookupOptions", attribute.String("field_type", fieldType))
	defer func() { tracing.End(span, err) }()

	opts = []types.LookupOption{}
	if err := s.q.Select(ctx, "list-lookup-options", &opts, fieldType); err != nil {
		return nil, fmt.Errorf("list %s options: %w", fieldType, err)
	}
	return opts, nil
}

// SaveLookupOption upserts one option for a field type.
func (s *Store) SaveLookupOption(ctx context.Context, fieldType string, opt types.LookupOption) (err error) {
	ctx, span := tracing.Start(ctx, "store.SaveLookupOption", attribute.String("field_type", fieldType))
	defer func() { tracing.End(span, err) }()

	if _, err := s.q.Exec(ctx, "upsert-lookup-option", fieldType, opt.ID, opt.Name); err != nil {
		return fmt.Errorf("save %s option %s: %w", fieldType, opt.ID, err)
	}
	return nil
}

type quoteRow struct {
	ID           string       `db:"id"`
	QuoteInput   string       `db:"quote_input"`
	QuoteOutput  string       `db:"quote_output"`
	TotalPrice   types.Amount `db:"total_price"`
	StudentName  string       `db:"student_name"`
	StudentEmail string       `db:"student_email"`
	CreatedAt    time.Time    `db:"created_at"`
}

func (r quoteRow) record() (types.QuoteRecord, error) {
	rec := types.QuoteRecord{
		ID:           types.QuoteID(r.ID),
		TotalPrice:   r.TotalPrice,
		StudentName:  r.StudentName,
		StudentEmail: r.StudentEmail,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(r.QuoteInput), &rec.QuoteInput); err != nil {
		return types.QuoteRecord{}, fmt.Errorf("decode quote %s input: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.QuoteOutput), &rec.QuoteOutput); err != nil {
		return types.QuoteRecord{}, fmt.Errorf("decode quote %s output: %w", r.ID, err)
	}
	return rec, nil
}

// SaveQuote persists a calculated quote. A missing id or creation time is
// filled in; the stored record is returned.
func (s *Store) SaveQuote(ctx context.Context, rec types.QuoteRecord) (saved types.QuoteRecord, err error) {
	ctx, span := tracing.Start(ctx, "store.SaveQuote")
	defer func() { tracing.End(span, err) }()

	if rec.ID == "" {
		rec.ID = types.NewQuoteID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	input, err := json.Marshal(rec.QuoteInput)
	if err != nil {
		return types.QuoteRecord{}, fmt.Errorf("encode quote input: %w", err)
	}
	output, err := json.Marshal(rec.QuoteOutput)
	if err != nil {
		return types.QuoteRecord{}, fmt.Errorf("encode quote output: %w", err)
	}

	if _, err = s.q.Exec(ctx, "insert-quote",
		string(rec.ID), string(input), string(output), rec.TotalPrice,
		rec.StudentName, rec.StudentEmail, rec.CreatedAt); err != nil {
		return types.QuoteRecord{}, fmt.Errorf("insert quote %s: %w", rec.ID, err)
	}
	return rec, nil
}

// GetQuote returns a saved quote or ErrQuoteNotFound.
func (s *Store) GetQuote(ctx context.Context, id string) (rec types.QuoteRecord, err error) {
	ctx, span := tracing.Start(ctx, "store.GetQuote", attribute.String("quote.id", id))
	defer func() { tracing.End(span, err) }()

	var row quoteRow
	err = s.q.Get(ctx, "get-quote", &row, id)
	if errors.Is(err, sql.ErrNoRows) {
		return types.QuoteRecord{}, fmt.Errorf("%w: %s", types.ErrQuoteNotFound, id)
	}
	if err != nil {
		return types.QuoteRecord{}, fmt.Errorf("get quote %s: %w", id, err)
	}
	return row.record()
}

// ListQuotes returns saved quotes, newest first. limit is clamped to
// [1, MaxQuoteLimit]; zero means DefaultQuoteLimit.
func (s *Store) ListQuotes(ctx context.Context, limit, offset int) (out []types.QuoteRecord, err error) {
	ctx, span := tracing.Start(ctx, "store.ListQuotes")
	defer func() { tracing.End(span, err) }()

	switch {
	case limit <= 0:
		limit = DefaultQuoteLimit
	case limit > MaxQuoteLimit:
		limit = MaxQuoteLimit
	}
	if offset < 0 {
		offset = 0
	}

	var rows []quoteRow
	if err := s.q.Select(ctx, "list-quotes", &rows, limit, offset); err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	span.SetAttributes(attribute.Int("quotes.count", len(rows)))
	out = make([]types.QuoteRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
