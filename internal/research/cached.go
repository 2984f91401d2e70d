package research

import (
	"context"
	"errors"
	"time"

	"github.com/buildkeeb/engine/internal/cache"
	"github.com/buildkeeb/engine/internal/observability"
)

// Cached decorates a Provider with the query cache and degrades failures to
// empty results or the neutral answer. It never returns an error.
type Cached struct {
	next        Provider
	cache       *cache.QueryCache
	searchTTL   time.Duration
	researchTTL time.Duration
	logger      *observability.Logger
}

// NewCached wraps next. Search results live for searchTTL and research answers
// for researchTTL.
func NewCached(next Provider, qc *cache.QueryCache, searchTTL, researchTTL time.Duration, logger *observability.Logger) *Cached {
	return &Cached{
		next:        next,
		cache:       qc,
		searchTTL:   searchTTL,
		researchTTL: researchTTL,
		logger:      observability.OrNop(logger),
	}
}

// Search returns cached or fresh results, or an empty list on failure.
func (c *Cached) Search(ctx context.Context, query string) []Result {
	results, err := cache.Memoize(ctx, c.cache, SourceSearch, query, c.searchTTL, func(ctx context.Context) ([]Result, error) {
		return c.next.Search(ctx, query)
	})
	if err != nil {
		c.logger.WithContext(ctx).Warn().Err(err).Str("query", query).Msg("Search failed, returning no results")
		return []Result{}
	}
	return results
}

// DeepResearch returns a cached or fresh answer, or the neutral answer on
// failure. Incomplete answers are not cached.
func (c *Cached) DeepResearch(ctx context.Context, query string) Answer {
	ans, err := cache.Memoize(ctx, c.cache, SourceResearch, query, c.researchTTL, func(ctx context.Context) (Answer, error) {
		a, err := c.next.DeepResearch(ctx, query)
		if err != nil {
			return Answer{}, err
		}
		if !a.Complete {
			return Answer{}, errIncomplete
		}
		return a, nil
	})
	if err != nil {
		if !errors.Is(err, errIncomplete) {
			c.logger.WithContext(ctx).Warn().Err(err).Str("query", query).Msg("Deep research failed, returning neutral answer")
		}
		return IncompleteAnswer(query)
	}
	return ans
}

var errIncomplete = errors.New("research answer incomplete")
