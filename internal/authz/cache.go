package authz

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

const (
	verGlobalKey      = "authz:ver:global"
	verActorPrefix    = "authz:ver:actor:"
	verResourcePrefix = "authz:ver:resource:"
	decisionPrefix    = "authz:dec:"

	// defaultEntryTTL bounds Redis memory use. It is not a correctness
	// mechanism: invalidation works by version bumps, and the time-windowed
	// decisions are never cached at all.
	defaultEntryTTL = 10 * time.Minute

	localCacheSize = 4096
)

// CacheKey identifies one memoized decision. VersionID names the resource
// whose mutations invalidate the entry; for patient checks it equals
// ResourceID, for record-scoped access checks it is the owning patient.
type CacheKey struct {
	ActorID      uuid.UUID
	ResourceType ResourceType
	ResourceID   uuid.UUID
	VersionID    uuid.UUID
	Action       Action
}

// Cacheable reports whether decisions for the action may be memoized. The
// creator/time-window checks are excluded: a cached allow must never outlive
// the 24h boundary, and not caching them is the simplest correct handling.
func Cacheable(action Action) bool {
	switch action {
	case ActionEdit, ActionDelete:
		return false
	default:
		return true
	}
}

// Cache memoizes rule outcomes across repeated checks. Entries live in Redis
// (shared across instances) fronted by an in-process LRU for request bursts.
// Keys compose global, per-actor, and per-resource version counters, so
// invalidation is a single INCR that strands every stale entry.
//
// Any Redis failure degrades to a miss so the caller falls through to direct
// rule evaluation; the cache never blocks or fails a request.
type Cache struct {
	client  *redis.Client
	local   *lru.Cache[string, Decision]
	metrics *CacheMetrics
	logger  *slog.Logger
	ttl     time.Duration

	// epoch is mixed into every composed key and bumped when a version INCR
	// fails, so this process can never serve an entry written before a lost
	// invalidation.
	epoch atomic.Int64
}

// NewCache constructs a Cache. metrics may be nil; logger defaults to
// slog.Default.
func NewCache(client *redis.Client, metrics *CacheMetrics, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	local, err := lru.New[string, Decision](localCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(fmt.Sprintf("authz: local cache: %v", err))
	}
	return &Cache{
		client:  client,
		local:   local,
		metrics: metrics,
		logger:  logger,
		ttl:     defaultEntryTTL,
	}
}

// Stats returns the current cache counters.
func (c *Cache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	return c.metrics.Snapshot()
}

// Get returns the memoized decision for the key. The boolean is false on a
// miss, on a non-cacheable action, and on any backend failure.
func (c *Cache) Get(ctx context.Context, key CacheKey) (Decision, bool) {
	if c == nil || c.client == nil || !Cacheable(key.Action) {
		return Miss, false
	}
	composed, err := c.composeKey(ctx, key)
	if err != nil {
		c.degrade("get versions", err)
		return Miss, false
	}
	if d, ok := c.local.Get(composed); ok {
		c.metrics.hit()
		return d, true
	}
	raw, err := c.client.Get(ctx, composed).Result()
	if err == redis.Nil {
		c.metrics.miss()
		return Miss, false
	}
	if err != nil {
		c.degrade("get entry", err)
		return Miss, false
	}
	d := parseDecision(raw)
	if d == Miss {
		c.metrics.miss()
		return Miss, false
	}
	c.local.Add(composed, d)
	c.metrics.hit()
	return d, true
}

// Put memoizes a decision. Time-windowed actions are refused; everything
// else is stored best-effort.
func (c *Cache) Put(ctx context.Context, key CacheKey, d Decision) {
	if c == nil || c.client == nil {
		return
	}
	if !Cacheable(key.Action) {
		c.logger.Warn("authz cache: refusing to store time-windowed decision",
			slog.String("action", key.Action.String()))
		return
	}
	if d != Allow && d != Deny {
		return
	}
	composed, err := c.composeKey(ctx, key)
	if err != nil {
		c.degrade("put versions", err)
		return
	}
	if err := c.client.Set(ctx, composed, d.String(), c.ttl).Err(); err != nil {
		c.degrade("put entry", err)
		return
	}
	c.local.Add(composed, d)
}

// InvalidateActor strands every cached decision for the actor.
func (c *Cache) InvalidateActor(ctx context.Context, actorID uuid.UUID) error {
	return c.bump(ctx, verActorPrefix+actorID.String())
}

// InvalidateResource strands every cached decision versioned by the resource.
func (c *Cache) InvalidateResource(ctx context.Context, resourceID uuid.UUID) error {
	return c.bump(ctx, verResourcePrefix+resourceID.String())
}

// FlushAll strands every cached decision, used when the bundle table itself
// changes.
func (c *Cache) FlushAll(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	c.local.Purge()
	return c.bump(ctx, verGlobalKey)
}

func (c *Cache) bump(ctx context.Context, versionKey string) error {
	if c == nil || c.client == nil {
		return nil
	}
	c.metrics.invalidate()
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		// The bump was lost: make sure this process at least can never
		// serve anything written before it.
		c.epoch.Add(1)
		c.local.Purge()
		c.degrade("invalidate", err)
		return fmt.Errorf("authz: invalidate %s: %w", versionKey, err)
	}
	return nil
}

func (c *Cache) composeKey(ctx context.Context, key CacheKey) (string, error) {
	vals, err := c.client.MGet(ctx,
		verGlobalKey,
		verActorPrefix+key.ActorID.String(),
		verResourcePrefix+key.VersionID.String(),
	).Result()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s:%s:%s:%s:e%d.g%s.a%s.r%s",
		decisionPrefix,
		key.ActorID, key.ResourceType, key.ResourceID, key.Action,
		c.epoch.Load(),
		versionToken(vals[0]), versionToken(vals[1]), versionToken(vals[2]),
	), nil
}

func versionToken(v any) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return "0"
	}
	return s
}

func parseDecision(raw string) Decision {
	switch raw {
	case "allow":
		return Allow
	case "deny":
		return Deny
	default:
		return Miss
	}
}

func (c *Cache) degrade(op string, err error) {
	c.metrics.degrade()
	c.logger.Warn("authz cache degraded to direct evaluation",
		slog.String("op", op), slog.Any("error", err))
}
