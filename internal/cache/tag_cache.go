package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// TagCache caches a user's assigned tags, primary tag, and the
// ancestor-expanded effective tag set, all under a 24h sliding TTL.
// Grounded on manshu's OrgTagCacheService key naming.
type TagCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewTagCache(client *redisv9.Client, ttl time.Duration) *TagCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TagCache{client: client, ttl: ttl}
}

func (c *TagCache) CacheAssignedTags(ctx context.Context, userID uint, tags []string) error {
	key := c.assignedKey(userID)
	if err := c.client.Set(ctx, key, strings.Join(tags, ","), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache assigned org tags failed: %w", err)
	}
	return nil
}

func (c *TagCache) GetAssignedTags(ctx context.Context, userID uint) ([]string, bool, error) {
	raw, err := c.client.GetEx(ctx, c.assignedKey(userID), c.ttl).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached org tags failed: %w", err)
	}
	return splitTags(raw), true, nil
}

func (c *TagCache) CachePrimaryTag(ctx context.Context, userID uint, tag string) error {
	if err := c.client.Set(ctx, c.primaryKey(userID), tag, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache primary org tag failed: %w", err)
	}
	return nil
}

func (c *TagCache) GetPrimaryTag(ctx context.Context, userID uint) (string, bool, error) {
	raw, err := c.client.GetEx(ctx, c.primaryKey(userID), c.ttl).Result()
	if err == redisv9.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cached primary org tag failed: %w", err)
	}
	return raw, true, nil
}

func (c *TagCache) CacheEffectiveTags(ctx context.Context, userID uint, tags []string) error {
	key := c.effectiveKey(userID)
	if err := c.client.Set(ctx, key, strings.Join(tags, ","), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache effective org tags failed: %w", err)
	}
	return nil
}

func (c *TagCache) GetEffectiveTags(ctx context.Context, userID uint) ([]string, bool, error) {
	raw, err := c.client.GetEx(ctx, c.effectiveKey(userID), c.ttl).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached effective org tags failed: %w", err)
	}
	return splitTags(raw), true, nil
}

func (c *TagCache) InvalidateUser(ctx context.Context, userID uint) error {
	if err := c.client.Del(ctx, c.assignedKey(userID), c.primaryKey(userID), c.effectiveKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate org tag cache failed: %w", err)
	}
	return nil
}

// InvalidateAllEffective drops every cached effective-tag-set entry;
// used when the tag forest itself changes (a tag is created, moved,
// or deleted), since any user's ancestor walk may now be stale.
func (c *TagCache) InvalidateAllEffective(ctx context.Context) error {
	var cursor uint64
	pattern := effectiveKeyPrefix + "*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("scan effective org tag keys failed: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete effective org tag keys failed: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

const (
	assignedKeyPrefix  = "orgtag:assigned:"
	primaryKeyPrefix   = "orgtag:primary:"
	effectiveKeyPrefix = "orgtag:effective:"
)

func (c *TagCache) assignedKey(userID uint) string  { return fmt.Sprintf("%s%d", assignedKeyPrefix, userID) }
func (c *TagCache) primaryKey(userID uint) string   { return fmt.Sprintf("%s%d", primaryKeyPrefix, userID) }
func (c *TagCache) effectiveKey(userID uint) string { return fmt.Sprintf("%s%d", effectiveKeyPrefix, userID) }

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
