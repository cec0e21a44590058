package spaces

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingMappingStore counts calls through to the inner fake.
type countingMappingStore struct {
	*fakeMappingStore
	getAllCalls int
	byKeysCalls int
}

func (c *countingMappingStore) GetAll(ctx context.Context) ([]GroupSpaceMapping, error) {
	c.getAllCalls++
	return c.fakeMappingStore.GetAll(ctx)
}

func (c *countingMappingStore) GetSpaceIDsByGroupKeys(ctx context.Context, keys []string) ([]uuid.UUID, error) {
	c.byKeysCalls++
	return c.fakeMappingStore.GetSpaceIDsByGroupKeys(ctx, keys)
}

func newTestCache(t *testing.T, inner MappingStore) (*RedisMappingCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisMappingCache(inner, client, time.Minute, nil), mr
}

func TestCacheGetAllServesFromCache(t *testing.T) {
	spaceID := uuid.New()
	inner := &countingMappingStore{fakeMappingStore: &fakeMappingStore{mappings: []GroupSpaceMapping{
		{ID: uuid.New(), GroupKey: "g1", SpaceID: spaceID, IsActive: true},
	}}}
	cache, _ := newTestCache(t, inner)

	first, err := cache.GetAll(context.Background())
	require.NoError(t, err)
	second, err := cache.GetAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.getAllCalls, "second read must come from cache")
}

func TestCacheGetSpaceIDsByGroupKeys(t *testing.T) {
	spaceID := uuid.New()
	inner := &countingMappingStore{fakeMappingStore: &fakeMappingStore{mappings: []GroupSpaceMapping{
		{ID: uuid.New(), GroupKey: "g1", SpaceID: spaceID, IsActive: true},
	}}}
	cache, _ := newTestCache(t, inner)

	ids, err := cache.GetSpaceIDsByGroupKeys(context.Background(), []string{"g1"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{spaceID}, ids)

	_, err = cache.GetSpaceIDsByGroupKeys(context.Background(), []string{"g1"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.byKeysCalls)

	// a different key set is a different cache entry
	_, err = cache.GetSpaceIDsByGroupKeys(context.Background(), []string{"g2"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.byKeysCalls)
}

func TestCacheAddInvalidates(t *testing.T) {
	inner := &countingMappingStore{fakeMappingStore: &fakeMappingStore{}}
	cache, _ := newTestCache(t, inner)

	_, err := cache.GetAll(context.Background())
	require.NoError(t, err)

	require.NoError(t, cache.Add(context.Background(), uuid.New(), "g1", uuid.New()))

	all, err := cache.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1, "read after write must see the new mapping")
	assert.Equal(t, 2, inner.getAllCalls)
}

func TestCacheDeactivateInvalidates(t *testing.T) {
	userID := uuid.New()
	spaceID := uuid.New()
	inner := &countingMappingStore{fakeMappingStore: &fakeMappingStore{mappings: []GroupSpaceMapping{
		{ID: uuid.New(), GroupKey: "g1", SpaceID: spaceID, IsActive: true},
	}}}
	cache, _ := newTestCache(t, inner)

	ids, err := cache.GetSpaceIDsByGroupKeys(context.Background(), []string{"g1"})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	require.NoError(t, cache.Deactivate(context.Background(), userID, "g1", spaceID))

	ids, err = cache.GetSpaceIDsByGroupKeys(context.Background(), []string{"g1"})
	require.NoError(t, err)
	assert.Empty(t, ids, "deactivated mapping must not be served from cache")
}

func TestCacheFallsThroughWhenRedisDown(t *testing.T) {
	spaceID := uuid.New()
	inner := &countingMappingStore{fakeMappingStore: &fakeMappingStore{mappings: []GroupSpaceMapping{
		{ID: uuid.New(), GroupKey: "g1", SpaceID: spaceID, IsActive: true},
	}}}
	cache, mr := newTestCache(t, inner)
	mr.Close()

	ids, err := cache.GetSpaceIDsByGroupKeys(context.Background(), []string{"g1"})
	require.NoError(t, err, "cache outage must not fail reads")
	assert.Equal(t, []uuid.UUID{spaceID}, ids)
}

func TestCacheMappingConflictPassesThrough(t *testing.T) {
	userID := uuid.New()
	spaceID := uuid.New()
	inner := &fakeMappingStore{mappings: []GroupSpaceMapping{
		{ID: uuid.New(), GroupKey: "g1", SpaceID: spaceID, IsActive: true},
	}}
	cache, _ := newTestCache(t, inner)

	err := cache.Add(context.Background(), userID, "g1", spaceID)
	assert.ErrorIs(t, err, ErrMappingExists)
}
