package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// OwnerResolver maps a catalogue to the fonds that owns its blobs.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, catalogueID int) (int, error)
}

type cachedOwner struct {
	FondsID int `json:"fondsId"`
}

// CachedOwnerResolver fronts an OwnerResolver with a Redis JSON cache. Cache
// failures fall through to the underlying resolver; misses are not cached.
type CachedOwnerResolver struct {
	next   OwnerResolver
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewCachedOwnerResolver(next OwnerResolver, client *redis.Client, ttl time.Duration, log *slog.Logger) *CachedOwnerResolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &CachedOwnerResolver{next: next, client: client, ttl: ttl, log: log}
}

func ownerKey(catalogueID int) string {
	return fmt.Sprintf("origtext:owner:%d", catalogueID)
}

func (c *CachedOwnerResolver) ResolveOwner(ctx context.Context, catalogueID int) (int, error) {
	key := ownerKey(catalogueID)
	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var v cachedOwner
		if jerr := json.Unmarshal([]byte(val), &v); jerr == nil {
			return v.FondsID, nil
		}
	case !errors.Is(err, redis.Nil):
		c.log.Warn("owner cache read failed", "catalogueId", catalogueID, "error", err)
	}

	owner, err := c.next.ResolveOwner(ctx, catalogueID)
	if err != nil {
		return 0, err
	}
	b, _ := json.Marshal(cachedOwner{FondsID: owner})
	if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.log.Warn("owner cache write failed", "catalogueId", catalogueID, "error", err)
	}
	return owner, nil
}
