// Package quota caps how many analyses run per minute and per hour.
// Counters live in Redis so separate invocations share them.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kkkkkxiaofei/web-agent/internal/config"
	"github.com/kkkkkxiaofei/web-agent/internal/storage"
	"github.com/redis/go-redis/v9"
)

const windowScript = `
local minute = tonumber(redis.call('GET', KEYS[1]) or "0")
local hour = tonumber(redis.call('GET', KEYS[2]) or "0")
local minute_limit = tonumber(ARGV[1])
local hour_limit = tonumber(ARGV[2])

if minute_limit > 0 and minute >= minute_limit then
    local ttl = redis.call('TTL', KEYS[1])
    return {-1, ttl > 0 and ttl or 60}
end

if hour_limit > 0 and hour >= hour_limit then
    local ttl = redis.call('TTL', KEYS[2])
    return {-2, ttl > 0 and ttl or 3600}
end

if minute == 0 then
    redis.call('SET', KEYS[1], 1, 'EX', 60)
else
    redis.call('INCR', KEYS[1])
end

if hour == 0 then
    redis.call('SET', KEYS[2], 1, 'EX', 3600)
else
    redis.call('INCR', KEYS[2])
end

return {1, 0}
`

// ErrExceeded is wrapped by the error Allow returns when a window is full
var ErrExceeded = errors.New("analysis quota exceeded")

// ExceededError describes which window is full and when it resets
type ExceededError struct {
	Window         string // "minute" or "hour"
	Limit          int
	SecondsToReset int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%v: %d per %s, resets in %ds", ErrExceeded, e.Limit, e.Window, e.SecondsToReset)
}

func (e *ExceededError) Unwrap() error {
	return ErrExceeded
}

// Limiter counts analyses in fixed minute and hour windows
type Limiter struct {
	client *storage.Client
	limits config.QuotaConfig
	sha    string
}

// NewLimiter loads the window script into Redis
func NewLimiter(ctx context.Context, client *storage.Client, limits config.QuotaConfig) (*Limiter, error) {
	sha, err := client.Redis().ScriptLoad(ctx, windowScript).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load quota script: %w", err)
	}

	return &Limiter{
		client: client,
		limits: limits,
		sha:    sha,
	}, nil
}

// Allow counts one analysis, or returns an *ExceededError when a window is full.
// Denied attempts are not counted.
func (l *Limiter) Allow(ctx context.Context) error {
	keys := l.client.Keys()

	result, err := l.client.Redis().EvalSha(ctx, l.sha, []string{keys.QuotaMinute(), keys.QuotaHour()},
		l.limits.PerMinute,
		l.limits.PerHour,
	).Result()
	if err != nil {
		return fmt.Errorf("quota check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return fmt.Errorf("unexpected quota result format")
	}

	status, _ := values[0].(int64)
	seconds, _ := values[1].(int64)

	switch status {
	case 1:
		return nil
	case -1:
		return &ExceededError{Window: "minute", Limit: l.limits.PerMinute, SecondsToReset: int(seconds)}
	case -2:
		return &ExceededError{Window: "hour", Limit: l.limits.PerHour, SecondsToReset: int(seconds)}
	default:
		return fmt.Errorf("unknown quota status: %d", status)
	}
}

// Usage returns the analyses counted in the current minute and hour windows
func (l *Limiter) Usage(ctx context.Context) (minute, hour int, err error) {
	keys := l.client.Keys()

	values, err := l.client.Redis().MGet(ctx, keys.QuotaMinute(), keys.QuotaHour()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("failed to get usage: %w", err)
	}

	counts := make([]int, 2)
	for i, v := range values {
		if s, ok := v.(string); ok {
			counts[i], _ = strconv.Atoi(s)
		}
	}
	return counts[0], counts[1], nil
}
