package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/quotekeeper/internal/rules"
	"github.com/solatis/quotekeeper/internal/types"
)

// OptionsLoader fetches the candidate values for a dynamic-option field type.
type OptionsLoader func(ctx context.Context, ft rules.FieldType) ([]types.LookupOption, error)

// OptionsCache caches lookup options per field type. Entries live until
// their TTL passes or Invalidate is called after the lookup tables change.
type OptionsCache struct {
	cache  Cache
	load   OptionsLoader
	ttl    time.Duration
	logger *slog.Logger
}

func NewOptionsCache(c Cache, load OptionsLoader, ttl time.Duration, logger *slog.Logger) *OptionsCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &OptionsCache{cache: c, load: load, ttl: ttl, logger: logger}
}

func optionsKey(ft rules.FieldType) string {
	return "options:" + string(ft)
}

// Get returns the options for ft, loading them on a miss. Field types
// without dynamic options yield ErrUnknownFieldType. A failing cache backend
// degrades to a direct load.
func (o *OptionsCache) Get(ctx context.Context, ft rules.FieldType) ([]types.LookupOption, error) {
	if !ft.Dynamic() {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownFieldType, ft)
	}

	var opts []types.LookupOption
	err := GetJSON(ctx, o.cache, optionsKey(ft), &opts)
	switch {
	case err == nil:
		return opts, nil
	case !errors.Is(err, ErrNotFound):
		o.logger.Warn("options cache read failed", "field_type", ft, "error", err)
	}

	opts, err = o.load(ctx, ft)
	if err != nil {
		return nil, fmt.Errorf("load %s options: %w", ft, err)
	}
	if opts == nil {
		opts = []types.LookupOption{}
	}
	if err := SetJSON(ctx, o.cache, optionsKey(ft), opts, o.ttl); err != nil {
		o.logger.Warn("options cache write failed", "field_type", ft, "error", err)
	}
	return opts, nil
}

// Invalidate drops the cached options for ft.
func (o *OptionsCache) Invalidate(ctx context.Context, ft rules.FieldType) error {
	return o.cache.Delete(ctx, optionsKey(ft))
}

// InvalidateAll drops every cached option list.
func (o *OptionsCache) InvalidateAll(ctx context.Context) error {
	for _, ft := range rules.DynamicFieldTypes() {
		if err := o.Invalidate(ctx, ft); err != nil {
			return err
		}
	}
	return nil
}
