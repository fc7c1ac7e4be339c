package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prasidya/minimart/internal/redisx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

type Getter interface {
	Get(ctx context.Context, id int64) (*Product, error)
}

// Cached is a cache-aside read layer over the product repo. Concurrent misses
// for the same product collapse into one DB fetch via singleflight. Stock in
// cached entries is advisory only; checkout always re-reads under lock.
type Cached struct {
	Source Getter
	Redis  *redis.Client
	group  singleflight.Group
}

func (c *Cached) Get(ctx context.Context, id int64) (*Product, error) {
	key := fmt.Sprintf(redisx.KeyProduct, id)
	if s, err := c.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		var p Product
		if err := json.Unmarshal([]byte(s), &p); err == nil {
			return &p, nil
		}
		// corrupt entry: fall through and refetch
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		p, err := c.Source.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if b, mErr := json.Marshal(p); mErr == nil {
			_ = c.Redis.Set(ctx, key, b, redisx.TTLProductCache).Err()
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Product), nil
}

// Invalidate drops cached entries, used after checkout mutates stock.
func (c *Cached) Invalidate(ctx context.Context, ids ...int64) {
	for _, id := range ids {
		_ = c.Redis.Del(ctx, fmt.Sprintf(redisx.KeyProduct, id)).Err()
	}
}
