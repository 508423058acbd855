package client

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"authserver/internal/oauth/models"
)

// Resolver looks a client registration up by id.
type Resolver interface {
	Resolve(ctx context.Context, clientID string) (*models.Client, error)
}

// CachedResolver keeps resolved registrations for ttl. Misses are not cached so
// a newly registered client is visible immediately.
type CachedResolver struct {
	next  Resolver
	cache *gocache.Cache
}

func NewCachedResolver(next Resolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		next:  next,
		cache: gocache.New(ttl, time.Minute),
	}
}

func (r *CachedResolver) Resolve(ctx context.Context, clientID string) (*models.Client, error) {
	if v, ok := r.cache.Get(clientID); ok {
		if c, ok := v.(*models.Client); ok {
			return c, nil
		}
	}
	c, err := r.next.Resolve(ctx, clientID)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(clientID, c)
	return c, nil
}

// Invalidate drops a cached registration.
func (r *CachedResolver) Invalidate(clientID string) {
	r.cache.Delete(clientID)
}
