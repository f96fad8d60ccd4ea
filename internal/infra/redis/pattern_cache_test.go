package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibescan/api/pkg/domain/finding"
	"github.com/vibescan/api/pkg/logger"
)

// fakeSource counts repository hits.
type fakeSource struct {
	calls    int
	patterns []finding.FalsePositivePattern
	err      error
}

func (s *fakeSource) ListActive(ctx context.Context) ([]finding.FalsePositivePattern, error) {
	s.calls++
	return s.patterns, s.err
}

func TestPatternCacheNilClientFallsThrough(t *testing.T) {
	source := &fakeSource{patterns: []finding.FalsePositivePattern{
		{RuleID: "rules.eval", Explanation: "sandboxed", Confidence: "possible"},
	}}
	cache := NewPatternCache(nil, source, 0, logger.NewNop())

	for i := 0; i < 3; i++ {
		patterns, err := cache.ListActive(context.Background())
		require.NoError(t, err)
		require.Len(t, patterns, 1)
		assert.Equal(t, "rules.eval", patterns[0].RuleID)
	}

	// No cache in play: every call hits the repository.
	assert.Equal(t, 3, source.calls)
}

func TestPatternCacheSourceErrorPropagates(t *testing.T) {
	source := &fakeSource{err: errors.New("db down")}
	cache := NewPatternCache(nil, source, 0, logger.NewNop())

	_, err := cache.ListActive(context.Background())
	assert.Error(t, err)
}

func TestPatternCacheInvalidateNilClient(t *testing.T) {
	cache := NewPatternCache(nil, &fakeSource{}, 0, logger.NewNop())
	assert.NoError(t, cache.Invalidate(context.Background()))
}

func TestNilClientOperations(t *testing.T) {
	var c *Client

	_, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.NoError(t, c.Set(context.Background(), "k", "v", 0))
	assert.NoError(t, c.Del(context.Background(), "k"))
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
