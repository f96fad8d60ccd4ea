package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/vibescan/api/pkg/domain/finding"
	"github.com/vibescan/api/pkg/logger"
)

const patternCacheKey = "vibescan:fp_patterns"

// PatternCache decorates a finding.PatternRepository with a Redis
// cache. A nil client disables caching; the source repository is then
// hit on every call.
type PatternCache struct {
	client *Client
	source finding.PatternRepository
	ttl    time.Duration
	log    *logger.Logger
}

// NewPatternCache wraps source with a TTL cache.
func NewPatternCache(client *Client, source finding.PatternRepository, ttl time.Duration, log *logger.Logger) *PatternCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PatternCache{
		client: client,
		source: source,
		ttl:    ttl,
		log:    log.With("component", "pattern_cache"),
	}
}

// ListActive returns the cached pattern set, refreshing from the
// source on a miss. Cache failures degrade to the source; enrichment
// never fails because a cache is down.
func (c *PatternCache) ListActive(ctx context.Context) ([]finding.FalsePositivePattern, error) {
	if raw, err := c.client.Get(ctx, patternCacheKey); err == nil {
		var patterns []finding.FalsePositivePattern
		if jsonErr := json.Unmarshal([]byte(raw), &patterns); jsonErr == nil {
			return patterns, nil
		}
		// Corrupt entry; drop it and rebuild from the source.
		_ = c.client.Del(ctx, patternCacheKey)
	} else if !errors.Is(err, ErrKeyNotFound) {
		c.log.WithContext(ctx).WithError(err).Warn("pattern cache read failed")
	}

	patterns, err := c.source.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	if data, jsonErr := json.Marshal(patterns); jsonErr == nil {
		if setErr := c.client.Set(ctx, patternCacheKey, string(data), c.ttl); setErr != nil {
			c.log.WithContext(ctx).WithError(setErr).Warn("pattern cache write failed")
		}
	}

	return patterns, nil
}

// Invalidate drops the cached pattern set. Called after the admin CLI
// changes the table and by the periodic refresh job.
func (c *PatternCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, patternCacheKey)
}
