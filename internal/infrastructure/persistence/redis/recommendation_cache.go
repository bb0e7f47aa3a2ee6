package redis

import (
	"context"
	"time"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/recommendation"
)

// RecommendationCache keeps remote recommendation payloads for a short time
// so that revisiting a product page does not hit the remote service again.
type RecommendationCache struct {
	cache *Cache
	ttl   time.Duration
}

var _ recommendation.Cache = (*RecommendationCache)(nil)

// NewRecommendationCache creates a cache; ttl <= 0 uses TTLRecommendation.
func NewRecommendationCache(cache *Cache, ttl time.Duration) *RecommendationCache {
	if ttl <= 0 {
		ttl = TTLRecommendation
	}
	return &RecommendationCache{cache: cache, ttl: ttl}
}

// Get returns a cached payload. Any error counts as a miss.
func (c *RecommendationCache) Get(ctx context.Context, key string) (*recommendation.Payload, bool) {
	var p recommendation.Payload
	if err := c.cache.Get(ctx, c.cache.Key(PrefixRecommendation, key), &p); err != nil {
		return nil, false
	}
	return &p, true
}

// Put stores a payload with the configured TTL.
func (c *RecommendationCache) Put(ctx context.Context, key string, p *recommendation.Payload) error {
	return c.cache.Set(ctx, c.cache.Key(PrefixRecommendation, key), p, c.ttl)
}
