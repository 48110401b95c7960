package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type failingCache struct{}

func (failingCache) Get(context.Context, string, interface{}) error {
	return errors.New("connection refused")
}

func (failingCache) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("connection refused")
}

func (failingCache) DeleteByPattern(context.Context, string) (int, error) {
	return 0, errors.New("connection refused")
}

func TestCacheServiceRoundTrip(t *testing.T) {
	backend := newMemoryCache()
	cache := NewCacheService(backend, nil, time.Minute, nil, true)
	ctx := context.Background()

	var out []string
	assert.False(t, cache.Get(ctx, "catalog:list:x", &out))

	cache.Set(ctx, "catalog:list:x", []string{"a"}, 0)
	assert.True(t, cache.Get(ctx, "catalog:list:x", &out))
	assert.Equal(t, []string{"a"}, out)

	cache.Invalidate(ctx, cachePrefixCatalog)
	assert.Equal(t, []string{"catalog:*"}, backend.deleted)
	assert.False(t, cache.Get(ctx, "catalog:list:x", &out))
}

func TestCacheServiceDisabledAndNil(t *testing.T) {
	backend := newMemoryCache()
	disabled := NewCacheService(backend, nil, time.Minute, nil, false)
	ctx := context.Background()

	disabled.Set(ctx, "k", 1, 0)
	assert.Empty(t, backend.entries)

	var nilCache *CacheService
	var out int
	assert.False(t, nilCache.Get(ctx, "k", &out))
	nilCache.Set(ctx, "k", 1, 0)
	nilCache.Invalidate(ctx, "k")
}

func TestCacheServiceBackendFailureIsAMiss(t *testing.T) {
	cache := NewCacheService(failingCache{}, nil, time.Minute, nil, true)
	ctx := context.Background()

	var out int
	assert.False(t, cache.Get(ctx, "k", &out))
	cache.Set(ctx, "k", 1, 0)
	cache.Invalidate(ctx, "k")
}
