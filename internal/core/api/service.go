// Package api provides the transport-agnostic QuoteService and its gRPC
// binding.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/solatis/quotekeeper/internal/cache"
	"github.com/solatis/quotekeeper/internal/core/config"
	"github.com/solatis/quotekeeper/internal/events"
	"github.com/solatis/quotekeeper/internal/quote"
	"github.com/solatis/quotekeeper/internal/rules"
	"github.com/solatis/quotekeeper/internal/tracing"
	"github.com/solatis/quotekeeper/internal/types"
)

// Store is the persistence the service needs. *db.Store implements it.
type Store interface {
	ActiveRules(ctx context.Context, now time.Time) ([]types.RuleRecord, error)
	ListRules(ctx context.Context) ([]types.RuleRecord, error)
	GetRule(ctx context.Context, id string) (types.RuleRecord, error)
	SaveRule(ctx context.Context, rec types.RuleRecord) (types.RuleRecord, error)
	DeleteRule(ctx context.Context, id string) error
	PriceTables(ctx context.Context, courseIDs []string) (types.PriceTables, error)
	SaveCoursePrice(ctx context.Context, p types.CoursePrice, sortOrder int) error
	SaveAccommodationRoom(ctx context.Context, r types.AccommodationRoom) error
	LookupOptions(ctx context.Context, fieldType string) ([]types.LookupOption, error)
	SaveLookupOption(ctx context.Context, fieldType string, opt types.LookupOption) error
	SaveQuote(ctx context.Context, rec types.QuoteRecord) (types.QuoteRecord, error)
	GetQuote(ctx context.Context, id string) (types.QuoteRecord, error)
	ListQuotes(ctx context.Context, limit, offset int) ([]types.QuoteRecord, error)
}

// QuoteService orchestrates store -> rules -> calculator -> events.
// Thin layer: pricing lives in internal/quote, evaluation in internal/rules.
type QuoteService struct {
	store     Store
	engine    *rules.Engine
	calc      *quote.Calculator
	options   *cache.OptionsCache
	publisher events.Publisher
	cfg       config.QuotesConfig
	logger    *slog.Logger
	now       func() time.Time
}

// Deps bundles QuoteService collaborators. Store and Options are required.
type Deps struct {
	Store     Store
	Options   *cache.OptionsCache
	Publisher events.Publisher
	Config    config.QuotesConfig
	Logger    *slog.Logger
}

// NewQuoteService creates service instance with dependencies.
func NewQuoteService(d Deps) (*QuoteService, error) {
	if d.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if d.Options == nil {
		return nil, fmt.Errorf("options cache cannot be nil")
	}
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	engine := rules.NewEngine(d.Logger)
	return &QuoteService{
		store:     d.Store,
		engine:    engine,
		calc:      quote.NewCalculator(engine, d.Logger),
		options:   d.Options,
		publisher: d.Publisher,
		cfg:       d.Config,
		logger:    d.Logger,
		now:       time.Now,
	}, nil
}

// StoreOptionsLoader adapts Store.LookupOptions to the options cache.
func StoreOptionsLoader(s Store) cache.OptionsLoader {
	return func(ctx context.Context, ft rules.FieldType) ([]types.LookupOption, error) {
		return s.LookupOptions(ctx, string(ft))
	}
}

// ErrUnavailable marks failures of the backing store.
var ErrUnavailable = errors.New("store unavailable")

// storeErr tags err as a store failure unless it is a not-found or a
// context error, which map to their own transport codes.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, types.ErrRuleNotFound), errors.Is(err, types.ErrQuoteNotFound),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
}

// CalculateResult is a priced quote and, when saved, its id.
type CalculateResult struct {
	QuoteID types.QuoteID     `json:"quote_id,omitempty"`
	Quote   types.QuoteOutput `json:"quote"`
}

// CalculateQuote validates in, loads active rules and price tables, prices
// the quote, saves it when configured and publishes quote.calculated.
// Invalid input is rejected before anything is fetched.
func (s *QuoteService) CalculateQuote(ctx context.Context, in types.QuoteInput) (res CalculateResult, err error) {
	ctx, span := tracing.Start(ctx, "QuoteService.CalculateQuote")
	defer func() { tracing.End(span, err) }()

	if err := quote.ValidateInput(&in); err != nil {
		return CalculateResult{}, err
	}

	now := s.now()
	recs, err := s.store.ActiveRules(ctx, now)
	if err != nil {
		return CalculateResult{}, storeErr("load active rules", err)
	}

	courseIDs := make([]string, 0, len(in.CourseDetails))
	for _, c := range in.CourseDetails {
		courseIDs = append(courseIDs, c.CourseID)
	}
	prices, err := s.store.PriceTables(ctx, courseIDs)
	if err != nil {
		return CalculateResult{}, storeErr("load price tables", err)
	}

	opts := quote.Options{}
	if s.cfg.EnforceRuleDates {
		opts.AsOf = now
	}
	out, err := s.calc.Calculate(in, rules.FromRecords(recs), prices, opts)
	if err != nil {
		return CalculateResult{}, err
	}
	span.SetAttributes(
		attribute.Int("rules.active", len(recs)),
		attribute.String("quote.total", out.TotalPrice.String()),
	)

	res = CalculateResult{Quote: out}
	if s.cfg.Save {
		saved, err := s.store.SaveQuote(ctx, types.QuoteRecord{
			QuoteInput:   in,
			QuoteOutput:  out,
			TotalPrice:   out.TotalPrice,
			StudentName:  in.StudentDetails.FullName(),
			StudentEmail: in.StudentDetails.Email,
			CreatedAt:    now,
		})
		if err != nil {
			return CalculateResult{}, storeErr("save quote", err)
		}
		res.QuoteID = saved.ID
	}

	s.publish(ctx, events.QuoteCalculated, events.QuoteCalculatedData{
		QuoteID:      res.QuoteID,
		StudentEmail: in.StudentDetails.Email,
		TotalPrice:   out.TotalPrice,
		Warnings:     len(out.Warnings),
	})

	s.logger.Info("quote calculated",
		"quote_id", res.QuoteID,
		"total", out.TotalPrice.String(),
		"warnings", len(out.Warnings))
	return res, nil
}

// TestRule traces rec against each record; the built-in sample quotes are
// used when records is empty. The rule is not validated or saved.
func (s *QuoteService) TestRule(ctx context.Context, rec types.RuleRecord, records []types.Record) ([]rules.RuleTrace, error) {
	if len(records) == 0 {
		records = rules.SampleRecords()
	}
	return s.engine.Trace(rules.FromRecord(rec), records), nil
}

// RuleView is a stored rule plus its derived status and display strings.
type RuleView struct {
	types.RuleRecord
	Status  types.RuleStatus `json:"status"`
	Summary string           `json:"summary"`
	Action  string           `json:"action"`
}

func (s *QuoteService) view(rec types.RuleRecord) RuleView {
	rule := rules.FromRecord(rec)
	return RuleView{
		RuleRecord: rec,
		Status:     rules.Status(rule, s.now()),
		Summary:    rules.FormatConditions(rule.Conditions),
		Action:     rules.FormatRuleAction(rule),
	}
}

// ListRules returns every rule with its status.
func (s *QuoteService) ListRules(ctx context.Context) ([]RuleView, error) {
	recs, err := s.store.ListRules(ctx)
	if err != nil {
		return nil, storeErr("list rules", err)
	}
	out := make([]RuleView, 0, len(recs))
	for _, r := range recs {
		out = append(out, s.view(r))
	}
	return out, nil
}

// GetRule returns one rule.
func (s *QuoteService) GetRule(ctx context.Context, id string) (RuleView, error) {
	rec, err := s.store.GetRule(ctx, id)
	if err != nil {
		return RuleView{}, storeErr("get rule", err)
	}
	return s.view(rec), nil
}

// SaveRule validates and stores a rule, assigning an id to new rules.
// Conditions are stored in canonical group form whatever shape they
// arrived in.
func (s *QuoteService) SaveRule(ctx context.Context, rec types.RuleRecord) (RuleView, error) {
	rule := rules.FromRecord(rec)
	if err := rules.ValidateRule(rule); err != nil {
		return RuleView{}, err
	}
	canonical, err := rules.ToRecord(rule)
	if err != nil {
		return RuleView{}, err
	}

	saved, err := s.store.SaveRule(ctx, canonical)
	if err != nil {
		return RuleView{}, storeErr("save rule", err)
	}

	s.publish(ctx, events.RuleSaved, events.RuleChangedData{
		RuleID:    types.RuleID(saved.ID),
		Name:      saved.DisplayName(),
		AppliesTo: types.AppliesTo(saved.AppliesTo),
	})
	s.logger.Info("rule saved", "rule_id", saved.ID, "name", saved.DisplayName())
	return s.view(saved), nil
}

// DeleteRule removes a rule.
func (s *QuoteService) DeleteRule(ctx context.Context, id string) error {
	if err := s.store.DeleteRule(ctx, id); err != nil {
		return storeErr("delete rule", err)
	}
	s.publish(ctx, events.RuleDeleted, events.RuleChangedData{RuleID: types.RuleID(id)})
	s.logger.Info("rule deleted", "rule_id", id)
	return nil
}

// FieldCatalog lists the rule fields and operators for authoring UIs.
type FieldCatalog struct {
	Fields    []rules.FieldDefinition `json:"fields"`
	Operators []rules.OperatorInfo    `json:"operators"`
}

// Fields returns the field and operator registries.
func (s *QuoteService) Fields() FieldCatalog {
	return FieldCatalog{Fields: rules.Fields(), Operators: rules.Operators()}
}

// FieldOptions returns the lookup options for a dynamic field type.
func (s *QuoteService) FieldOptions(ctx context.Context, fieldType string) ([]types.LookupOption, error) {
	ft := rules.FieldType(fieldType)
	if !ft.Dynamic() {
		return nil, fmt.Errorf("%w: %q has no lookup options", types.ErrUnknownFieldType, fieldType)
	}
	opts, err := s.options.Get(ctx, ft)
	if err != nil {
		return nil, storeErr("field options", err)
	}
	return opts, nil
}

// ImportSummary counts the rows written by ImportReferenceData.
type ImportSummary struct {
	CoursePrices       int `json:"course_prices"`
	AccommodationRooms int `json:"accommodation_rooms"`
	LookupOptions      int `json:"lookup_options"`
}

// ImportReferenceData upserts price tables and lookup options, then drops
// every cached option list. The whole payload is checked before the first
// write; a store failure part way leaves earlier rows written.
func (s *QuoteService) ImportReferenceData(ctx context.Context, data types.ReferenceData) (sum ImportSummary, err error) {
	ctx, span := tracing.Start(ctx, "QuoteService.ImportReferenceData")
	defer func() { tracing.End(span, err) }()

	if err := checkReferenceData(data); err != nil {
		return ImportSummary{}, err
	}

	for i, p := range data.CoursePrices {
		if err := s.store.SaveCoursePrice(ctx, p, i); err != nil {
			return sum, storeErr("import course prices", err)
		}
		sum.CoursePrices++
	}
	for _, r := range data.AccommodationRooms {
		if err := s.store.SaveAccommodationRoom(ctx, r); err != nil {
			return sum, storeErr("import accommodation rooms", err)
		}
		sum.AccommodationRooms++
	}

	fieldTypes := make([]string, 0, len(data.LookupOptions))
	for ft := range data.LookupOptions {
		fieldTypes = append(fieldTypes, ft)
	}
	sort.Strings(fieldTypes)
	for _, ft := range fieldTypes {
		for _, opt := range data.LookupOptions[ft] {
			if err := s.store.SaveLookupOption(ctx, ft, opt); err != nil {
				return sum, storeErr("import lookup options", err)
			}
			sum.LookupOptions++
		}
	}

	if err := s.options.InvalidateAll(ctx); err != nil {
		s.logger.Warn("options cache invalidation failed", "error", err)
	}
	span.SetAttributes(
		attribute.Int("import.course_prices", sum.CoursePrices),
		attribute.Int("import.accommodation_rooms", sum.AccommodationRooms),
		attribute.Int("import.lookup_options", sum.LookupOptions),
	)
	s.logger.Info("reference data imported",
		"course_prices", sum.CoursePrices,
		"accommodation_rooms", sum.AccommodationRooms,
		"lookup_options", sum.LookupOptions)
	return sum, nil
}

func checkReferenceData(data types.ReferenceData) error {
	for i, p := range data.CoursePrices {
		if p.CourseDetailsID == "" {
			return fmt.Errorf("%w: course_prices[%d] has no course_details_id", types.ErrInvalidReferenceData, i)
		}
	}
	for i, r := range data.AccommodationRooms {
		if r.AccommodationTypeID == "" || r.RoomSizeID == "" {
			return fmt.Errorf("%w: accommodation_rooms[%d] needs accommodation_type_id and room_size_id", types.ErrInvalidReferenceData, i)
		}
	}
	for ft, opts := range data.LookupOptions {
		if !rules.FieldType(ft).Dynamic() {
			return fmt.Errorf("%w: %q has no lookup options", types.ErrUnknownFieldType, ft)
		}
		for i, opt := range opts {
			if opt.ID == "" {
				return fmt.Errorf("%w: lookup_options.%s[%d] has no id", types.ErrInvalidReferenceData, ft, i)
			}
		}
	}
	return nil
}

// GetQuote returns a saved quote.
func (s *QuoteService) GetQuote(ctx context.Context, id string) (types.QuoteRecord, error) {
	qid, err := types.ParseQuoteID(id)
	if err != nil {
		return types.QuoteRecord{}, fmt.Errorf("get quote: %w: %s", types.ErrQuoteNotFound, id)
	}
	rec, err := s.store.GetQuote(ctx, string(qid))
	if err != nil {
		return types.QuoteRecord{}, storeErr("get quote", err)
	}
	return rec, nil
}

// ListQuotes returns saved quotes, newest first.
func (s *QuoteService) ListQuotes(ctx context.Context, limit, offset int) ([]types.QuoteRecord, error) {
	recs, err := s.store.ListQuotes(ctx, limit, offset)
	if err != nil {
		return nil, storeErr("list quotes", err)
	}
	return recs, nil
}

// publish sends an event; failures are logged, never returned.
func (s *QuoteService) publish(ctx context.Context, t events.Type, data any) {
	if err := s.publisher.Publish(ctx, events.NewEvent(t, data)); err != nil {
		s.logger.Warn("event publish failed", "type", t, "error", err)
	}
}
