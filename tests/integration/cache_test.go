package integration

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildkeeb/engine/internal/cache"
	"github.com/buildkeeb/engine/internal/config"
	"github.com/buildkeeb/engine/internal/research"
)

func openRedisCache(t *testing.T, setup *TestContainerSetup) cache.Client {
	t.Helper()
	client, err := cache.Open(context.Background(), config.CacheConfig{
		Driver: "redis",
		Redis:  config.RedisConfig{Addr: setup.RedisAddr, Prefix: "bk-test:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestQueryCache_Redis(t *testing.T) {
	skipUnlessDocker(t)

	setup := &TestContainerSetup{}
	defer setup.Cleanup()
	setup.StartRedis(t)

	ctx := context.Background()
	qc := cache.NewQueryCache(openRedisCache(t, setup), nil)

	_, err := qc.Get(ctx, research.SourceSearch, "oil king price")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, qc.Set(ctx, research.SourceSearch, "oil king price", json.RawMessage(`["a"]`), time.Hour))
	require.NoError(t, qc.Set(ctx, research.SourceResearch, "oil king price", json.RawMessage(`{"b":1}`), time.Hour))

	got, err := qc.Get(ctx, research.SourceSearch, "  Oil King PRICE ")
	require.NoError(t, err)
	assert.JSONEq(t, `["a"]`, string(got))

	require.NoError(t, qc.Purge(ctx, research.SourceSearch))
	_, err = qc.Get(ctx, research.SourceSearch, "oil king price")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	got, err = qc.Get(ctx, research.SourceResearch, "oil king price")
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":1}`, string(got))
}

func TestQueryCache_RedisExpiry(t *testing.T) {
	skipUnlessDocker(t)

	setup := &TestContainerSetup{}
	defer setup.Cleanup()
	setup.StartRedis(t)

	ctx := context.Background()
	qc := cache.NewQueryCache(openRedisCache(t, setup), nil)

	require.NoError(t, qc.Set(ctx, research.SourceSearch, "short lived", json.RawMessage(`1`), time.Second))
	assert.Eventually(t, func() bool {
		_, err := qc.Get(ctx, research.SourceSearch, "short lived")
		return errors.Is(err, cache.ErrCacheMiss)
	}, 5*time.Second, 100*time.Millisecond)
}

type countingProvider struct {
	searches atomic.Int32
}

func (p *countingProvider) Search(_ context.Context, q string) ([]research.Result, error) {
	p.searches.Add(1)
	return []research.Result{{Title: "Review of " + q, URL: "https://example.com/r", Score: 0.9}}, nil
}

func (p *countingProvider) DeepResearch(_ context.Context, q string) (research.Answer, error) {
	return research.Answer{}, research.ErrProviderUnavailable
}

func TestCachedResearch_SharedAcrossClients(t *testing.T) {
	skipUnlessDocker(t)

	setup := &TestContainerSetup{}
	defer setup.Cleanup()
	setup.StartRedis(t)

	ctx := context.Background()
	provider := &countingProvider{}

	// Two independent clients model two API replicas sharing one cache.
	first := research.NewCached(provider, cache.NewQueryCache(openRedisCache(t, setup), nil), time.Hour, time.Hour, nil)
	second := research.NewCached(provider, cache.NewQueryCache(openRedisCache(t, setup), nil), time.Hour, time.Hour, nil)

	a := first.Search(ctx, "gmk olivia restock")
	b := second.Search(ctx, "GMK Olivia restock")
	assert.Equal(t, a, b)
	assert.Equal(t, int32(1), provider.searches.Load())

	ans := second.DeepResearch(ctx, "gmk olivia restock")
	assert.False(t, ans.Complete)
	assert.NotEmpty(t, ans.Summary)
}
