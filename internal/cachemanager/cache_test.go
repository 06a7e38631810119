package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type metadataInput struct {
	ID uint64
}

func TestInMemoryCacheManager_SetAndGet(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("metadata", DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()

	cache.Set(ctx, "entry:0", "ipfs://metadata", time.Minute)

	value, found := cache.Get(ctx, "entry:0")
	require.True(t, found)
	require.Equal(t, "ipfs://metadata", value)
}

func TestInMemoryCacheManager_GetMissing(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("metadata", DefaultExpiration, DefaultCleanupInterval)

	_, found := cache.Get(context.Background(), "entry:999")
	require.False(t, found)
}

func TestInMemoryCacheManager_Delete(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("metadata", DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()

	cache.Set(ctx, "entry:0", "uri", time.Minute)
	cache.Set(ctx, "entry:1", "uri", time.Minute)
	require.NoError(t, cache.Delete(ctx, "entry:0", "entry:1"))

	_, found := cache.Get(ctx, "entry:0")
	require.False(t, found)
	_, found = cache.Get(ctx, "entry:1")
	require.False(t, found)
}

func TestInMemoryCacheManager_Flush(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("metadata", DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()

	cache.Set(ctx, "entry:0", "uri", time.Minute)
	require.NoError(t, cache.Flush(ctx))

	_, found := cache.Get(ctx, "entry:0")
	require.False(t, found)
}

func TestReadThroughCache_Get_EmptyCachePopulates(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("metadata", DefaultExpiration, DefaultCleanupInterval)
	calls := 0
	readThrough := NewReadThroughCache[string, string, metadataInput](
		cache,
		func(ctx context.Context, input metadataInput) (string, error) {
			calls++
			return "uri-from-store", nil
		},
		false,
	)

	value, err := readThrough.Get(context.Background(), "entry:0", metadataInput{ID: 0}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "uri-from-store", value)
	require.Equal(t, 1, calls)

	// Second read is served from the cache without hitting the loader.
	value, err = readThrough.Get(context.Background(), "entry:0", metadataInput{ID: 0}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "uri-from-store", value)
	require.Equal(t, 1, calls)
}

func TestReadThroughCache_Get_WithCacheDisabled(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("metadata", DefaultExpiration, DefaultCleanupInterval)
	calls := 0
	readThrough := NewReadThroughCache[string, string, metadataInput](
		cache,
		func(ctx context.Context, input metadataInput) (string, error) {
			calls++
			return "uri-from-store", nil
		},
		true,
	)

	for i := 0; i < 2; i++ {
		value, err := readThrough.Get(context.Background(), "entry:0", metadataInput{ID: 0}, time.Minute)
		require.NoError(t, err)
		require.Equal(t, "uri-from-store", value)
	}
	require.Equal(t, 2, calls, "disabled cache always calls the loader")
}

func TestReadThroughCache_Get_LoaderError(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("metadata", DefaultExpiration, DefaultCleanupInterval)
	readThrough := NewReadThroughCache[string, string, metadataInput](
		cache,
		func(ctx context.Context, input metadataInput) (string, error) {
			return "", errors.New("failed to load entry")
		},
		false,
	)

	_, err := readThrough.Get(context.Background(), "entry:0", metadataInput{ID: 0}, time.Minute)
	require.Error(t, err)

	// Errors are never cached.
	_, found := cache.Get(context.Background(), "entry:0")
	require.False(t, found)
}
