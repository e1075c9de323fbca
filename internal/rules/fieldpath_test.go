// internal/rules/fieldpath_test.go
package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/quotekeeper/internal/types"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		want    []PathSegment
		wantErr error
	}{
		{
			name:  "flat key",
			field: "duration_weeks",
			want:  []PathSegment{{Key: "duration_weeks"}},
		},
		{
			name:  "nested key with index",
			field: "course_details.0.campus_id",
			want: []PathSegment{
				{Key: "course_details"},
				{Key: "0", Index: 0, IsIndex: true},
				{Key: "campus_id"},
			},
		},
		{name: "empty field", field: "", wantErr: types.ErrInvalidCondition},
		{name: "empty segment", field: "student_details..email", wantErr: types.ErrInvalidCondition},
		{name: "too deep", field: strings.Repeat("a.", types.MaxPathDepth) + "a", wantErr: types.ErrPathTooDeep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.field)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParsePath() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePath() error = %v, want nil", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len(ParsePath()) = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("segment[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestResolveField(t *testing.T) {
	record := types.Record{
		"duration_weeks": 12.0,
		"region_id":      nil,
		"a.b":            "flat wins",
		"a":              map[string]any{"b": "nested"},
		"student_details": map[string]any{
			"nationality": "Vietnam",
		},
		"course_details": []any{
			map[string]any{"campus_id": "syd"},
			map[string]any{"campus_id": "mel"},
		},
		"fees": map[string]any{"0": "keyed"},
	}

	tests := []struct {
		name      string
		field     string
		wantValue any
		wantFound bool
	}{
		{name: "flat key", field: "duration_weeks", wantValue: 12.0, wantFound: true},
		{name: "explicit null is found", field: "region_id", wantValue: nil, wantFound: true},
		{name: "flat key with dot preferred", field: "a.b", wantValue: "flat wins", wantFound: true},
		{name: "nested map", field: "student_details.nationality", wantValue: "Vietnam", wantFound: true},
		{name: "array index", field: "course_details.1.campus_id", wantValue: "mel", wantFound: true},
		{name: "numeric key on map", field: "fees.0", wantValue: "keyed", wantFound: true},
		{name: "index out of range", field: "course_details.5.campus_id", wantFound: false},
		{name: "missing flat key", field: "needs_transport", wantFound: false},
		{name: "descend into scalar", field: "duration_weeks.x", wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := ParsePath(tt.field)
			if err != nil {
				t.Fatalf("ParsePath() error = %v, want nil", err)
			}
			got, err := ResolveField(tt.field, path, record)
			if !tt.wantFound {
				if !errors.Is(err, types.ErrFieldNotFound) {
					t.Errorf("ResolveField() error = %v, want ErrFieldNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveField() error = %v, want nil", err)
			}
			if !got.Found {
				t.Errorf("Found = false, want true")
			}
			if got.Value != tt.wantValue {
				t.Errorf("Value = %v, want %v", got.Value, tt.wantValue)
			}
		})
	}
}

func TestResolve_PathTooDeep(t *testing.T) {
	path := make([]PathSegment, types.MaxPathDepth+1)
	for i := range path {
		path[i] = PathSegment{Key: "k"}
	}
	if _, err := Resolve(path, map[string]any{}); !errors.Is(err, types.ErrPathTooDeep) {
		t.Errorf("Resolve() error = %v, want ErrPathTooDeep", err)
	}
}

// Property-based test: resolution never crashes
func TestResolve_PropertyNeverCrashes(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	data := map[string]any{
		"key": []any{map[string]any{"key": "value"}, nil, 3.0},
	}

	properties.Property("resolution never crashes regardless of input", prop.ForAll(
		func(depth int, useIndex bool) bool {
			path := make([]PathSegment, depth)
			for i := 0; i < depth; i++ {
				if useIndex && i%2 == 1 {
					path[i] = PathSegment{Index: i % 4, IsIndex: true}
				} else {
					path[i] = PathSegment{Key: "key"}
				}
			}

			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Resolve() panicked: %v", r)
				}
			}()

			_, _ = Resolve(path, data)
			return true
		},
		gen.IntRange(0, 20),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
