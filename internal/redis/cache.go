package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"workforce-chat/internal/domain"
	"workforce-chat/internal/identity"
	"workforce-chat/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key pattern: profile:{user_id}, 5m TTL by default.

type CacheConfig struct {
	ProfileTTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{ProfileTTL: 5 * time.Minute}
}

// ProfileCache is a read-through cache in front of a user directory. Redis
// failures fall back to the directory; misses are never cached.
type ProfileCache struct {
	client *goredis.Client
	inner  domain.UserDirectory
	config CacheConfig
	log    *logger.Logger
}

func NewProfileCache(client *goredis.Client, inner domain.UserDirectory, config CacheConfig, log *logger.Logger) *ProfileCache {
	if log == nil {
		log = logger.NewNop()
	}
	return &ProfileCache{client: client, inner: inner, config: config, log: log.Named("profile_cache")}
}

func profileKey(id identity.UserID) string {
	return fmt.Sprintf("profile:%s", id)
}

func (c *ProfileCache) GetProfile(ctx context.Context, id identity.UserID) (*domain.UserProfile, error) {
	data, err := c.client.Get(ctx, profileKey(id)).Result()
	switch {
	case err == nil:
		var p domain.UserProfile
		if jsonErr := json.Unmarshal([]byte(data), &p); jsonErr == nil {
			return &p, nil
		}
	case !errors.Is(err, goredis.Nil):
		c.log.WarnCtx(ctx, "profile cache read failed", zap.String("user_id", id.String()), zap.Error(err))
	}

	p, err := c.inner.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, p)
	return p, nil
}

func (c *ProfileCache) GetProfiles(ctx context.Context, ids []identity.UserID) (map[identity.UserID]*domain.UserProfile, error) {
	result := make(map[identity.UserID]*domain.UserProfile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	pipe := c.client.Pipeline()
	cmds := make(map[identity.UserID]*goredis.StringCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.Get(ctx, profileKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		c.log.WarnCtx(ctx, "profile cache batch read failed", zap.Int("count", len(ids)), zap.Error(err))
	}

	var misses []identity.UserID
	for _, id := range ids {
		data, err := cmds[id].Result()
		if err != nil {
			misses = append(misses, id)
			continue
		}
		var p domain.UserProfile
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			misses = append(misses, id)
			continue
		}
		result[id] = &p
	}
	if len(misses) == 0 {
		return result, nil
	}

	loaded, err := c.inner.GetProfiles(ctx, misses)
	if err != nil {
		return nil, err
	}
	for id, p := range loaded {
		result[id] = p
		c.store(ctx, p)
	}
	return result, nil
}

func (c *ProfileCache) store(ctx context.Context, p *domain.UserProfile) {
	if p == nil || p.ID.IsZero() {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, profileKey(p.ID), data, c.config.ProfileTTL).Err(); err != nil {
		c.log.WarnCtx(ctx, "profile cache write failed", zap.String("user_id", p.ID.String()), zap.Error(err))
	}
}
