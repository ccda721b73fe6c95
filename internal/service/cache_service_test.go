package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/teacher-training-api/pkg/errors"
)

type memoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.entries, k)
		}
	}
	return nil
}

type cachedPayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCacheServiceRememberLoadsOnceThenHits(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
	var loads int32
	load := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&loads, 1)
		return cachedPayload{Name: "modules", Count: 3}, nil
	}

	var first cachedPayload
	hit, err := svc.Remember(context.Background(), "k", time.Minute, &first, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, cachedPayload{Name: "modules", Count: 3}, first)

	var second cachedPayload
	hit, err = svc.Remember(context.Background(), "k", time.Minute, &second, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestCacheServiceRememberPropagatesLoadError(t *testing.T) {
	svc := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	var dest cachedPayload
	_, err := svc.Remember(context.Background(), "k", 0, &dest, func(context.Context) (interface{}, error) {
		return nil, errors.New("db down")
	})
	require.Error(t, err)
}

func TestCacheServiceBackendErrorIsMiss(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("redis timeout")
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	var dest cachedPayload
	assert.False(t, svc.Get(context.Background(), "k", &dest))
}

func TestCacheServiceDisabledAndNil(t *testing.T) {
	repo := newMemoryCacheRepo()
	disabled := NewCacheService(repo, nil, time.Minute, nil, false)
	disabled.Set(context.Background(), "k", cachedPayload{Name: "x"}, 0)
	assert.Empty(t, repo.entries)

	var nilSvc *CacheService
	var dest cachedPayload
	hit, err := nilSvc.Remember(context.Background(), "k", 0, &dest, func(context.Context) (interface{}, error) {
		return cachedPayload{Name: "direct"}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "direct", dest.Name)
	nilSvc.Invalidate(context.Background(), "k")
}

func TestCacheServiceInvalidatePattern(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, true)
	ctx := context.Background()
	svc.Set(ctx, cacheKeyModulesPrefix+"list:a", 1, 0)
	svc.Set(ctx, cacheKeyModulesPrefix+"list:b", 2, 0)
	svc.Set(ctx, cacheKeyDashboardStats, 3, 0)

	svc.InvalidatePattern(ctx, cacheKeyModulesPrefix+"*")
	assert.Len(t, repo.entries, 1)

	svc.Invalidate(ctx, cacheKeyDashboardStats)
	assert.Empty(t, repo.entries)
}
