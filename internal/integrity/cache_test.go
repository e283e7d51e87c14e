package integrity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache_NilCacheIsInert(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	assert.NoError(t, cache.Ping(ctx), "a disabled cache reports healthy")

	_, ok := cache.get(ctx, "s1", "q1", "text")
	assert.False(t, ok)
	cache.set(ctx, "s1", "q1", "text", cachedResult{Score: 0.5})
}
