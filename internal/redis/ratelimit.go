package redis

import (
	"context"
	"fmt"
	"time"

	"workforce-chat/internal/identity"

	goredis "github.com/redis/go-redis/v9"
)

// Key patterns:
// - ratelimit:{user_id}:messages - per-window message sends
// - ratelimit:{user_id}:groups - per-window group creations

type RateLimitConfig struct {
	MessageLimit  int
	MessageWindow time.Duration
	GroupLimit    int
	GroupWindow   time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessageLimit:  30,
		MessageWindow: 60 * time.Second,
		GroupLimit:    10,
		GroupWindow:   60 * time.Second,
	}
}

type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
	}
}

// fixed window counter; INCR and EXPIRE run atomically
var limitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end

	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		redis.call('INCR', key)
		if ttl == window then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	else
		return {0, 0, ttl}
	end
`)

func messageKey(userID identity.UserID) string {
	return fmt.Sprintf("ratelimit:%s:messages", userID)
}

func groupKey(userID identity.UserID) string {
	return fmt.Sprintf("ratelimit:%s:groups", userID)
}

func (r *RateLimiter) AllowMessage(ctx context.Context, userID identity.UserID) (*RateLimitResult, error) {
	return r.checkLimit(ctx, messageKey(userID), r.config.MessageLimit, r.config.MessageWindow)
}

func (r *RateLimiter) AllowGroupCreate(ctx context.Context, userID identity.UserID) (*RateLimitResult, error) {
	return r.checkLimit(ctx, groupKey(userID), r.config.GroupLimit, r.config.GroupWindow)
}

// AllowSend adapts AllowMessage to the message pipeline's limiter.
func (r *RateLimiter) AllowSend(ctx context.Context, userID identity.UserID) (bool, error) {
	res, err := r.AllowMessage(ctx, userID)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

// AllowCreateGroup adapts AllowGroupCreate to the group service's limiter.
func (r *RateLimiter) AllowCreateGroup(ctx context.Context, userID identity.UserID) (bool, error) {
	res, err := r.AllowGroupCreate(ctx, userID)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	if limit <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: -1, Limit: limit}, nil
	}
	result, err := limitScript.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	return parseLimitResult(result, limit)
}

func parseLimitResult(result any, limit int) (*RateLimitResult, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	nums := make([]int64, 3)
	for i := range nums {
		n, ok := values[i].(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected rate limit result element %d", i)
		}
		nums[i] = n
	}
	return &RateLimitResult{
		Allowed:   nums[0] == 1,
		Remaining: int(nums[1]),
		ResetIn:   time.Duration(nums[2]) * time.Second,
		Limit:     limit,
	}, nil
}
