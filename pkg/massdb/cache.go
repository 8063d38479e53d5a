package massdb

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

// CachedMatcher memoises the results of another Matcher. Errors are not
// cached.
type CachedMatcher struct {
	next  Matcher
	cache *gocache.Cache
}

// NewCachedMatcher wraps next with an in-memory cache. A non-positive ttl
// keeps entries for the lifetime of the process.
func NewCachedMatcher(next Matcher, ttl time.Duration) *CachedMatcher {
	cleanup := 2 * ttl
	if ttl <= 0 {
		ttl, cleanup = gocache.NoExpiration, 0
	}
	return &CachedMatcher{
		next:  next,
		cache: gocache.New(ttl, cleanup),
	}
}

// Search implements Matcher.
func (c *CachedMatcher) Search(ctx context.Context, mass, tolPPM float64) ([]core.Metabolite, error) {
	key := cacheKey(mass, tolPPM)
	if val, found := c.cache.Get(key); found {
		return val.([]core.Metabolite), nil
	}

	res, err := c.next.Search(ctx, mass, tolPPM)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, res)
	return res, nil
}

// Len returns the number of cached lookups.
func (c *CachedMatcher) Len() int {
	return c.cache.ItemCount()
}

// cacheKey rounds the mass to 1 µDa, well below any usable tolerance.
func cacheKey(mass, tolPPM float64) string {
	return fmt.Sprintf("%.6f/%g", core.RoundFloat(mass, 6), tolPPM)
}
