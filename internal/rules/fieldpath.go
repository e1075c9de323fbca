// internal/rules/fieldpath.go
package rules

import (
	"strconv"
	"strings"

	"github.com/solatis/quotekeeper/internal/types"
)

/*
 * Field path resolution for quote records.
 *
 * Condition fields are either flat keys ("duration_weeks") or dot paths into
 * the nested quote ("student_details.nationality", "course_details.0.campus_id").
 * ParsePath splits a field once at compile time; Resolve walks the decoded
 * record on every evaluation.
 *
 * A flat key is tried before splitting: record keys may legitimately contain
 * dots, and the flat attribute set built by the calculator takes precedence
 * over nested lookup.
 *
 * Numeric segments index arrays. Against a map they are treated as plain keys,
 * so "fees.0" works for both {"fees": [...]} and {"fees": {"0": ...}}.
 *
 * A missing key, an out-of-range index, or descending into a scalar reports
 * ErrFieldNotFound. Callers treat that as an absent value, never as a hard
 * error.
 */

// PathSegment is one step of a parsed field path.
type PathSegment struct {
	Key     string
	Index   int
	IsIndex bool
}

func (s PathSegment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Key
}

// ResolveResult contains the resolved value.
type ResolveResult struct {
	Value any  // resolved value (nil if not found)
	Found bool // true if path resolved, even to an explicit null
}

// ParsePath splits a dot-separated field into segments.
// Returns ErrPathTooDeep when the path exceeds MaxPathDepth and
// ErrInvalidCondition for empty fields or empty segments.
func ParsePath(field string) ([]PathSegment, error) {
	if field == "" {
		return nil, types.ErrInvalidCondition
	}
	parts := strings.Split(field, ".")
	if len(parts) > types.MaxPathDepth {
		return nil, types.ErrPathTooDeep
	}
	path := make([]PathSegment, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, types.ErrInvalidCondition
		}
		if n, err := strconv.Atoi(p); err == nil && n >= 0 {
			path = append(path, PathSegment{Key: p, Index: n, IsIndex: true})
			continue
		}
		path = append(path, PathSegment{Key: p})
	}
	return path, nil
}

// ResolveField looks up field in record: the flat key first, then the
// parsed dot path.
func ResolveField(field string, path []PathSegment, record types.Record) (ResolveResult, error) {
	if v, ok := record[field]; ok {
		return ResolveResult{Value: v, Found: true}, nil
	}
	if len(path) <= 1 {
		return ResolveResult{}, types.ErrFieldNotFound
	}
	return Resolve(path, map[string]any(record))
}

// Resolve traverses data following path segments.
// Returns ErrPathTooDeep if path exceeds MaxPathDepth.
// Returns ErrFieldNotFound if path does not exist in data.
func Resolve(path []PathSegment, data any) (ResolveResult, error) {
	if len(path) > types.MaxPathDepth {
		return ResolveResult{}, types.ErrPathTooDeep
	}
	return resolveRecursive(path, data)
}

func resolveRecursive(path []PathSegment, current any) (ResolveResult, error) {
	if len(path) == 0 {
		return ResolveResult{Value: current, Found: true}, nil
	}

	seg := path[0]
	remaining := path[1:]

	switch v := current.(type) {
	case types.Record:
		return resolveKey(seg, remaining, v)
	case map[string]any:
		return resolveKey(seg, remaining, v)

	case []any:
		return resolveIndex(seg, remaining, v)
	case []map[string]any:
		if !seg.IsIndex || seg.Index >= len(v) {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolveRecursive(remaining, v[seg.Index])

	default:
		// Null or scalar value but path continues
		return ResolveResult{}, types.ErrFieldNotFound
	}
}

func resolveKey(seg PathSegment, remaining []PathSegment, m map[string]any) (ResolveResult, error) {
	val, ok := m[seg.Key]
	if !ok {
		return ResolveResult{}, types.ErrFieldNotFound
	}
	return resolveRecursive(remaining, val)
}

func resolveIndex(seg PathSegment, remaining []PathSegment, v []any) (ResolveResult, error) {
	if !seg.IsIndex || seg.Index >= len(v) {
		return ResolveResult{}, types.ErrFieldNotFound
	}
	return resolveRecursive(remaining, v[seg.Index])
}
