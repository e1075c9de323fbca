package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/solatis/quotekeeper/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := Open(MemoryURL)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, MigrateUp(database))
	store, err := NewStore(database)
	require.NoError(t, err)
	return store
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestStore_RuleLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	saved, err := store.SaveRule(ctx, types.RuleRecord{
		RuleName:   "VET uplift",
		AppliesTo:  "course_price",
		Type:       "percent",
		Value:      types.MustAmount("10"),
		Conditions: json.RawMessage(`{"group_operator":"AND","conditions":[{"field":"course_type","operator":"eq","value":"VET"}]}`),
		StartDate:  date(2024, 1, 1),
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	assert.Equal(t, "VET uplift", saved.Name)
	assert.Equal(t, "percent", saved.ValueType)
	assert.True(t, saved.Value.Equal(types.MustAmount("10")))
	assert.JSONEq(t, `{"group_operator":"AND","conditions":[{"field":"course_type","operator":"eq","value":"VET"}]}`, string(saved.Conditions))
	require.NotNil(t, saved.StartDate)
	assert.True(t, saved.StartDate.Equal(*date(2024, 1, 1)))
	assert.Nil(t, saved.EndDate)

	saved.Name = "VET uplift v2"
	saved.EndDate = date(2024, 12, 31)
	updated, err := store.SaveRule(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, updated.ID)
	assert.Equal(t, "VET uplift v2", updated.Name)
	require.NotNil(t, updated.EndDate)

	all, err := store.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, store.DeleteRule(ctx, saved.ID))
	_, err = store.GetRule(ctx, saved.ID)
	assert.ErrorIs(t, err, types.ErrRuleNotFound)
	assert.ErrorIs(t, store.DeleteRule(ctx, saved.ID), types.ErrRuleNotFound)
}

func TestStore_SaveRuleKeepsImportedID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	saved, err := store.SaveRule(ctx, types.RuleRecord{
		ID:        "3f6d7a52-0c7e-4e4e-9a51-8d0a3c1c2b11",
		Name:      "legacy",
		AppliesTo: "accommodation",
		ValueType: "fixed",
		Value:     types.MustAmount("50"),
	})
	require.NoError(t, err)
	assert.Equal(t, "3f6d7a52-0c7e-4e4e-9a51-8d0a3c1c2b11", saved.ID)
	assert.JSONEq(t, emptyConditions, string(saved.Conditions))
}

func TestStore_ActiveRules(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mk := func(name string, start, end *time.Time) {
		_, err := store.SaveRule(ctx, types.RuleRecord{
			Name: name, AppliesTo: "total_fee", ValueType: "fixed",
			Value: types.MustAmount("1"), StartDate: start, EndDate: end,
		})
		require.NoError(t, err)
	}
	mk("draft", nil, nil)
	mk("active-open", date(2024, 1, 1), nil)
	mk("active-bounded", date(2024, 1, 1), date(2024, 12, 31))
	mk("upcoming", date(2025, 1, 1), nil)
	mk("expired", date(2023, 1, 1), date(2023, 12, 31))

	active, err := store.ActiveRules(ctx, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	var names []string
	for _, r := range active {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{"active-open", "active-bounded"}, names)
}

func TestStore_PriceTables(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := types.MustAmount("1000")
	weekly := types.MustAmount("30.50")
	require.NoError(t, store.SaveCoursePrice(ctx, types.CoursePrice{ID: "p1", CourseDetailsID: "c1", BasePrice: &base}, 0))
	require.NoError(t, store.SaveCoursePrice(ctx, types.CoursePrice{ID: "p2", CourseDetailsID: "c1", RegionID: "asia", PricePerWeek: &weekly}, 1))
	require.NoError(t, store.SaveCoursePrice(ctx, types.CoursePrice{ID: "p3", CourseDetailsID: "c2", BasePrice: &base}, 0))
	require.NoError(t, store.SaveAccommodationRoom(ctx, types.AccommodationRoom{AccommodationTypeID: "homestay", RoomSizeID: "single", PricePerWeek: types.MustAmount("310")}))
	require.NoError(t, store.SaveAccommodationRoom(ctx, types.AccommodationRoom{AccommodationTypeID: "homestay", RoomSizeID: "single", PricePerWeek: types.MustAmount("320")}))

	pt, err := store.PriceTables(ctx, []string{"c1"})
	require.NoError(t, err)
	require.Len(t, pt.CoursePrices, 2)
	assert.Equal(t, "p1", pt.CoursePrices[0].ID)
	require.NotNil(t, pt.CoursePrices[0].BasePrice)
	assert.Nil(t, pt.CoursePrices[0].PricePerWeek)
	require.NotNil(t, pt.CoursePrices[1].PricePerWeek)
	assert.True(t, pt.CoursePrices[1].PricePerWeek.Equal(weekly))
	require.Len(t, pt.AccommodationRooms, 1)
	assert.True(t, pt.AccommodationRooms[0].PricePerWeek.Equal(types.MustAmount("320")))

	all, err := store.PriceTables(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all.CoursePrices, 3)

	none, err := store.PriceTables(ctx, []string{})
	require.NoError(t, err)
	assert.Empty(t, none.CoursePrices)
}

func TestStore_LookupOptions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveLookupOption(ctx, "campus", types.LookupOption{ID: "syd", Name: "Sydney"}))
	require.NoError(t, store.SaveLookupOption(ctx, "campus", types.LookupOption{ID: "mel", Name: "Melbourne"}))
	require.NoError(t, store.SaveLookupOption(ctx, "region", types.LookupOption{ID: "asia", Name: "Asia"}))

	opts, err := store.LookupOptions(ctx, "campus")
	require.NoError(t, err)
	assert.Equal(t, []types.LookupOption{{ID: "mel", Name: "Melbourne"}, {ID: "syd", Name: "Sydney"}}, opts)

	empty, err := store.LookupOptions(ctx, "faculty")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestStore_Quotes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	in := types.QuoteInput{
		StudentDetails: &types.StudentDetails{FirstName: "Ana", LastName: "Silva", Email: "ana@example.com"},
		CourseDetails:  []types.CourseSelection{{CourseID: "c1", DurationWeeks: 10}},
	}
	out := types.QuoteOutput{
		TotalPrice: types.MustAmount("1035"),
		Breakdown:  types.Breakdown{Courses: []types.CourseLine{}, Fees: []types.Adjustment{}, Discounts: []types.Adjustment{}},
	}

	first, err := store.SaveQuote(ctx, types.QuoteRecord{
		QuoteInput: in, QuoteOutput: out, TotalPrice: out.TotalPrice,
		StudentName: "Ana Silva", StudentEmail: "ana@example.com",
		CreatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := store.SaveQuote(ctx, types.QuoteRecord{
		QuoteInput: in, QuoteOutput: out, TotalPrice: out.TotalPrice,
		CreatedAt: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	got, err := store.GetQuote(ctx, string(first.ID))
	require.NoError(t, err)
	assert.Equal(t, "Ana Silva", got.StudentName)
	assert.True(t, got.TotalPrice.Equal(types.MustAmount("1035")))
	require.NotNil(t, got.QuoteInput.StudentDetails)
	assert.Equal(t, "ana@example.com", got.QuoteInput.StudentDetails.Email)
	assert.True(t, got.QuoteOutput.TotalPrice.Equal(out.TotalPrice))

	list, err := store.ListQuotes(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	page, err := store.ListQuotes(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)

	_, err = store.GetQuote(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrQuoteNotFound)
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return sr
}

func spanStatus(sr *tracetest.SpanRecorder) map[string]codes.Code {
	out := map[string]codes.Code{}
	for _, s := range sr.Ended() {
		out[s.Name()] = s.Status().Code
	}
	return out
}

func TestStore_EveryOperationIsTraced(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sr := recordSpans(t)

	saved, err := store.SaveRule(ctx, types.RuleRecord{
		Name:      "Traced",
		AppliesTo: "course_price",
		ValueType: "fixed",
		Value:     types.MustAmount("1"),
		StartDate: date(2024, 1, 1),
	})
	require.NoError(t, err)
	_, err = store.GetRule(ctx, saved.ID)
	require.NoError(t, err)
	require.NoError(t, store.DeleteRule(ctx, saved.ID))

	base := types.MustAmount("100")
	require.NoError(t, store.SaveCoursePrice(ctx, types.CoursePrice{CourseDetailsID: "c1", BasePrice: &base}, 0))
	require.NoError(t, store.SaveAccommodationRoom(ctx, types.AccommodationRoom{AccommodationTypeID: "homestay", RoomSizeID: "single", PricePerWeek: base}))
	require.NoError(t, store.SaveLookupOption(ctx, "campus", types.LookupOption{ID: "syd", Name: "Sydney"}))

	_, err = store.ListQuotes(ctx, 0, 0)
	require.NoError(t, err)

	got := spanStatus(sr)
	for _, name := range []string{
		"store.SaveRule", "store.GetRule", "store.DeleteRule",
		"store.SaveCoursePrice", "store.SaveAccommodationRoom", "store.SaveLookupOption",
		"store.ListQuotes",
	} {
		code, ok := got[name]
		if assert.True(t, ok, "span %s not recorded", name) {
			assert.NotEqual(t, codes.Error, code, "span %s status", name)
		}
	}
}

func TestStore_NotFoundSpansRecordError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sr := recordSpans(t)

	_, err := store.GetRule(ctx, "missing")
	require.ErrorIs(t, err, types.ErrRuleNotFound)
	require.ErrorIs(t, store.DeleteRule(ctx, "missing"), types.ErrRuleNotFound)
	_, err = store.GetQuote(ctx, "missing")
	require.ErrorIs(t, err, types.ErrQuoteNotFound)

	got := spanStatus(sr)
	for _, name := range []string{"store.GetRule", "store.DeleteRule", "store.GetQuote"} {
		assert.Equal(t, codes.Error, got[name], "span %s status", name)
	}
}
