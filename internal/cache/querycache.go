package cache

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/buildkeeb/engine/internal/observability"
)

const queryKeyPrefix = "q:"

// Entry is the stored form of a memoized external lookup. Entries are never
// mutated, only overwritten or left to expire.
type Entry struct {
	Key       string          `json:"key"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// QueryKey returns the content address of (source, query). The query is
// case-folded and whitespace-collapsed first so trivially different phrasings
// share an entry. Each part is length-prefixed before hashing so that
// ("ab", "c") and ("a", "bc") never collide.
func QueryKey(source, query string) string {
	source = strings.ToLower(strings.TrimSpace(source))
	query = strings.Join(strings.Fields(strings.ToLower(query)), " ")

	d := xxhash.New()
	var n [8]byte
	for _, part := range []string{source, query} {
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		_, _ = d.Write(n[:])
		_, _ = d.WriteString(part)
	}

	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], d.Sum64())
	return queryKeyPrefix + source + ":" + hex.EncodeToString(sum[:])
}

// QueryCache memoizes idempotent external lookups keyed by QueryKey.
type QueryCache struct {
	client Client
	logger *observability.Logger
	now    func() time.Time
}

// QueryCacheOption configures a QueryCache.
type QueryCacheOption func(*QueryCache)

// WithQueryClock overrides the time source used for expiry checks.
func WithQueryClock(now func() time.Time) QueryCacheOption {
	return func(q *QueryCache) { q.now = now }
}

// NewQueryCache wraps a backend client.
func NewQueryCache(client Client, logger *observability.Logger, opts ...QueryCacheOption) *QueryCache {
	q := &QueryCache{
		client: client,
		logger: observability.OrNop(logger),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Get returns the payload stored for (source, query) if it has not expired.
// Any backend or decode error is reported as ErrCacheMiss after logging.
func (q *QueryCache) Get(ctx context.Context, source, query string) (json.RawMessage, error) {
	key := QueryKey(source, query)

	data, err := q.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			q.logger.Warn().Err(err).Str("key", key).Msg("Query cache read failed")
		}
		return nil, ErrCacheMiss
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		q.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return nil, ErrCacheMiss
	}

	if !q.now().Before(entry.ExpiresAt) {
		q.logger.Debug().Str("key", key).Msg("Query cache entry expired")
		return nil, ErrCacheMiss
	}

	q.logger.Debug().Str("key", key).Str("source", source).Msg("Query cache hit")
	return entry.Payload, nil
}

// Set stores payload under (source, query) with expiresAt = now + ttl,
// replacing any prior entry.
func (q *QueryCache) Set(ctx context.Context, source, query string, payload json.RawMessage, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("query cache ttl must be positive, got %s", ttl)
	}

	key := QueryKey(source, query)
	now := q.now()
	entry := Entry{
		Key:       key,
		Source:    source,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := q.client.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}

	q.logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("Query cache stored")
	return nil
}

// Purge drops every entry recorded for source.
func (q *QueryCache) Purge(ctx context.Context, source string) error {
	prefix := queryKeyPrefix + strings.ToLower(strings.TrimSpace(source)) + ":"
	if err := q.client.DeleteByPrefix(ctx, prefix); err != nil {
		return fmt.Errorf("purge %s: %w", source, err)
	}
	return nil
}

// Memoize returns the cached value for (source, query) or calls fn and caches
// its result. Errors from fn are returned and never cached; a failed cache
// write is logged and does not affect the returned value.
func Memoize[T any](ctx context.Context, q *QueryCache, source, query string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if payload, err := q.Get(ctx, source, query); err == nil {
		var v T
		if err := json.Unmarshal(payload, &v); err == nil {
			return v, nil
		}
		q.logger.Warn().Str("source", source).Msg("Cached payload does not match result type, refreshing")
	}

	v, err := fn(ctx)
	if err != nil {
		return v, err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		q.logger.Warn().Err(err).Str("source", source).Msg("Result not cacheable")
		return v, nil
	}
	if err := q.Set(ctx, source, query, payload, ttl); err != nil {
		q.logger.Warn().Err(err).Str("source", source).Msg("Query cache write failed")
	}
	return v, nil
}
