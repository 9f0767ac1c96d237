package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Well-known logical resource names used as cache keys.
const (
	ResourcePlans         = "plans"
	ResourceSubscriptions = "subscriptions"
	ResourcePayroll       = "payroll"
	ResourceDepartments   = "departments"
)

// Scoped narrows a resource name to one scope, typically a company id, so
// invalidating one company's entry leaves the others cached.
func Scoped(resource, scope string) string {
	return resource + ":" + scope
}

// Invalidation names the logical resources a mutating operation made stale.
// Mutating operations return one to their caller, which decides to apply it;
// applying deletes the keys so the next read is a full re-fetch, never a
// patched cache entry.
type Invalidation struct {
	Resources []string
}

// Invalidate builds an Invalidation for the given resources
func Invalidate(resources ...string) Invalidation {
	return Invalidation{Resources: resources}
}

// Empty reports whether the invalidation names no resources
func (inv Invalidation) Empty() bool {
	return len(inv.Resources) == 0
}

// Store is a read-through cache keyed by logical resource name
type Store struct {
	client *Client
	prefix string
	ttl    time.Duration

	// Optional observation hooks, safe to leave nil.
	OnHit  func(resource string)
	OnMiss func(resource string)
}

// NewStore creates a resource-keyed store on top of the Redis client
func NewStore(client *Client, prefix string, ttl time.Duration) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Store) key(resource string) string {
	return fmt.Sprintf("%s:%s", s.prefix, resource)
}

// Fetch returns the cached value for resource, or calls load and caches the
// result. dest must be a pointer; cached values are stored as JSON.
func (s *Store) Fetch(ctx context.Context, resource string, dest interface{}, load func(ctx context.Context) (interface{}, error)) error {
	raw, err := s.client.Get(ctx, s.key(resource))
	if err == nil {
		if s.OnHit != nil {
			s.OnHit(resource)
		}
		return json.Unmarshal([]byte(raw), dest)
	}
	if err != redis.Nil {
		return fmt.Errorf("failed reading cache for %s: %w", resource, err)
	}

	if s.OnMiss != nil {
		s.OnMiss(resource)
	}

	value, err := load(ctx)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed encoding %s for cache: %w", resource, err)
	}
	if err := s.client.Set(ctx, s.key(resource), encoded, s.ttl); err != nil {
		return fmt.Errorf("failed caching %s: %w", resource, err)
	}

	return json.Unmarshal(encoded, dest)
}

// Put stores a value for resource directly, replacing any cached entry
func (s *Store) Put(ctx context.Context, resource string, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed encoding %s for cache: %w", resource, err)
	}
	return s.client.Set(ctx, s.key(resource), encoded, s.ttl)
}

// Apply deletes every resource the invalidation names
func (s *Store) Apply(ctx context.Context, inv Invalidation) error {
	if inv.Empty() {
		return nil
	}
	keys := make([]string, len(inv.Resources))
	for i, r := range inv.Resources {
		keys[i] = s.key(r)
	}
	return s.client.Delete(ctx, keys...)
}
