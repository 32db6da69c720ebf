package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// SessionStore backs the JWT session lifecycle: a valid access token
// is marked valid under its handle, tracked in its owning user's
// token set (so "log out everywhere" can walk and blacklist them
// all), and a refresh token is tracked separately with its own TTL.
// Grounded on manshu's TokenCacheService key prefixes.
type SessionStore struct {
	client *redisv9.Client
}

func NewSessionStore(client *redisv9.Client) *SessionStore {
	return &SessionStore{client: client}
}

const (
	validPrefix        = "jwt:valid:"
	userTokensPrefix   = "jwt:user:"
	refreshPrefix      = "jwt:refresh:"
	userRefreshsPrefix = "jwt:user:refresh:"
	blacklistPrefix    = "jwt:blacklist:"
)

func (s *SessionStore) CacheToken(ctx context.Context, handle string, userID uint, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, validPrefix+handle, userID, ttl+5*time.Minute)
	pipe.SAdd(ctx, fmt.Sprintf("%s%d", userTokensPrefix, userID), handle)
	pipe.Expire(ctx, fmt.Sprintf("%s%d", userTokensPrefix, userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache token failed: %w", err)
	}
	return nil
}

func (s *SessionStore) CacheRefreshToken(ctx context.Context, handle string, userID uint, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshPrefix+handle, userID, ttl)
	pipe.SAdd(ctx, fmt.Sprintf("%s%d", userRefreshsPrefix, userID), handle)
	pipe.Expire(ctx, fmt.Sprintf("%s%d", userRefreshsPrefix, userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache refresh token failed: %w", err)
	}
	return nil
}

// IsTokenValid reports whether handle is both present in the valid
// set and not blacklisted. CacheToken keeps the valid entry 5 minutes
// past the token's lifetime; the token's own expiry is enforced
// separately when it is parsed.
func (s *SessionStore) IsTokenValid(ctx context.Context, handle string) (bool, error) {
	blacklisted, err := s.IsTokenBlacklisted(ctx, handle)
	if err != nil {
		return false, err
	}
	if blacklisted {
		return false, nil
	}
	exists, err := s.client.Exists(ctx, validPrefix+handle).Result()
	if err != nil {
		return false, fmt.Errorf("check token valid failed: %w", err)
	}
	return exists > 0, nil
}

func (s *SessionStore) IsRefreshTokenValid(ctx context.Context, handle string) (bool, error) {
	exists, err := s.client.Exists(ctx, refreshPrefix+handle).Result()
	if err != nil {
		return false, fmt.Errorf("check refresh token valid failed: %w", err)
	}
	return exists > 0, nil
}

// RefreshTokenOwner returns the user id a refresh handle was minted
// for, or ok=false if the handle is unknown or expired.
func (s *SessionStore) RefreshTokenOwner(ctx context.Context, handle string) (uint, bool, error) {
	raw, err := s.client.Get(ctx, refreshPrefix+handle).Result()
	if err == redisv9.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get refresh token owner failed: %w", err)
	}
	userID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse refresh token owner failed: %w", err)
	}
	return uint(userID), true, nil
}

// RevokeRefreshToken deletes a refresh handle outright, used when
// Refresh rotates it to a new one — the old handle must not be
// replayable even within its remaining TTL.
func (s *SessionStore) RevokeRefreshToken(ctx context.Context, handle string) error {
	if err := s.client.Del(ctx, refreshPrefix+handle).Err(); err != nil {
		return fmt.Errorf("revoke refresh token failed: %w", err)
	}
	return nil
}

// Blacklist revokes a single token immediately, independent of its
// remaining TTL, for the rest of GracePeriod so it cannot be reused
// even if the valid-set entry hasn't expired yet.
func (s *SessionStore) Blacklist(ctx context.Context, handle string, gracePeriod time.Duration) error {
	if gracePeriod <= 0 {
		gracePeriod = 5 * time.Minute
	}
	if err := s.client.Set(ctx, blacklistPrefix+handle, "1", gracePeriod).Err(); err != nil {
		return fmt.Errorf("blacklist token failed: %w", err)
	}
	return nil
}

func (s *SessionStore) IsTokenBlacklisted(ctx context.Context, handle string) (bool, error) {
	exists, err := s.client.Exists(ctx, blacklistPrefix+handle).Result()
	if err != nil {
		return false, fmt.Errorf("check token blacklisted failed: %w", err)
	}
	return exists > 0, nil
}

// LogoutAll blacklists every access token on record for userID and
// revokes every outstanding refresh handle, for use when a user's
// credentials are rotated or an admin forces a logout everywhere.
func (s *SessionStore) LogoutAll(ctx context.Context, userID uint, gracePeriod time.Duration) error {
	handles, err := s.client.SMembers(ctx, fmt.Sprintf("%s%d", userTokensPrefix, userID)).Result()
	if err != nil {
		return fmt.Errorf("list user tokens failed: %w", err)
	}
	for _, handle := range handles {
		if err := s.Blacklist(ctx, handle, gracePeriod); err != nil {
			return err
		}
	}

	refreshHandles, err := s.client.SMembers(ctx, fmt.Sprintf("%s%d", userRefreshsPrefix, userID)).Result()
	if err != nil {
		return fmt.Errorf("list user refresh tokens failed: %w", err)
	}
	for _, handle := range refreshHandles {
		if err := s.RevokeRefreshToken(ctx, handle); err != nil {
			return err
		}
	}
	return nil
}
