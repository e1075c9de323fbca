package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/solatis/quotekeeper/internal/rules"
	"github.com/solatis/quotekeeper/internal/types"
)

func TestMemoryCache_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if string(got) != "v" {
		t.Errorf("Get() = %q, want v", got)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v, want nil", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}
	now = now.Add(59 * time.Second)
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("Get() before expiry error = %v, want nil", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after expiry error = %v, want ErrNotFound", err)
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatalf("Set() error = %v, want nil", err)
		}
	}
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v, want nil", err)
	}
	if _, err := c.Get(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Clear error = %v, want ErrNotFound", err)
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	in := []types.LookupOption{{ID: "syd", Name: "Sydney"}}
	if err := SetJSON(ctx, c, "opts", in, 0); err != nil {
		t.Fatalf("SetJSON() error = %v, want nil", err)
	}
	var out []types.LookupOption
	if err := GetJSON(ctx, c, "opts", &out); err != nil {
		t.Fatalf("GetJSON() error = %v, want nil", err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Errorf("GetJSON() = %+v, want %+v", out, in)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), "memcached", RedisOptions{}); err == nil {
		t.Fatalf("New() error = nil, want error")
	}
}

type countingLoader struct {
	mu    sync.Mutex
	calls map[rules.FieldType]int
	err   error
}

func (l *countingLoader) load(_ context.Context, ft rules.FieldType) ([]types.LookupOption, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = map[rules.FieldType]int{}
	}
	l.calls[ft]++
	if l.err != nil {
		return nil, l.err
	}
	return []types.LookupOption{{ID: string(ft) + "-1", Name: "One"}}, nil
}

func TestOptionsCache_LoadsOnceUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}
	oc := NewOptionsCache(NewMemoryCache(), loader.load, time.Hour, nil)

	for i := 0; i < 3; i++ {
		opts, err := oc.Get(ctx, rules.FieldTypeCampus)
		if err != nil {
			t.Fatalf("Get() error = %v, want nil", err)
		}
		if len(opts) != 1 || opts[0].ID != "campus-1" {
			t.Fatalf("Get() = %+v, want campus-1", opts)
		}
	}
	if n := loader.calls[rules.FieldTypeCampus]; n != 1 {
		t.Errorf("loader calls = %d, want 1", n)
	}

	if err := oc.Invalidate(ctx, rules.FieldTypeCampus); err != nil {
		t.Fatalf("Invalidate() error = %v, want nil", err)
	}
	if _, err := oc.Get(ctx, rules.FieldTypeCampus); err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if n := loader.calls[rules.FieldTypeCampus]; n != 2 {
		t.Errorf("loader calls after Invalidate = %d, want 2", n)
	}

	if _, err := oc.Get(ctx, rules.FieldTypeRegion); err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if err := oc.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll() error = %v, want nil", err)
	}
	if _, err := oc.Get(ctx, rules.FieldTypeRegion); err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if n := loader.calls[rules.FieldTypeRegion]; n != 2 {
		t.Errorf("region loader calls = %d, want 2", n)
	}
}

func TestOptionsCache_StaticTypeRejected(t *testing.T) {
	loader := &countingLoader{}
	oc := NewOptionsCache(NewMemoryCache(), loader.load, time.Hour, nil)
	_, err := oc.Get(context.Background(), rules.FieldTypeBoolean)
	if !errors.Is(err, types.ErrUnknownFieldType) {
		t.Fatalf("Get() error = %v, want ErrUnknownFieldType", err)
	}
	if len(loader.calls) != 0 {
		t.Errorf("loader called for static type")
	}
}

func TestOptionsCache_LoadErrorNotCached(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{err: errors.New("db down")}
	oc := NewOptionsCache(NewMemoryCache(), loader.load, time.Hour, nil)

	if _, err := oc.Get(ctx, rules.FieldTypeFaculty); err == nil {
		t.Fatalf("Get() error = nil, want error")
	}
	loader.err = nil
	opts, err := oc.Get(ctx, rules.FieldTypeFaculty)
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if len(opts) != 1 {
		t.Errorf("Get() = %+v, want one option", opts)
	}
}
