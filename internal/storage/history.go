package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a result is missing or expired
var ErrNotFound = errors.New("result not found")

// History keeps a bounded log of encoded analysis results
type History struct {
	client *Client
	ttl    time.Duration
	limit  int
}

// NewHistory creates a history that keeps at most limit results for ttl
func NewHistory(client *Client, ttl time.Duration, limit int) *History {
	return &History{
		client: client,
		ttl:    ttl,
		limit:  limit,
	}
}

// Append stores an encoded result under id and pushes it to the front of the log
func (h *History) Append(ctx context.Context, id string, data []byte) error {
	keys := h.client.Keys()

	pipe := h.client.Redis().TxPipeline()

	// Store the result itself
	pipe.Set(ctx, keys.Result(id), data, h.ttl)

	// Newest first, trimmed to the limit
	pipe.LPush(ctx, keys.History(), id)
	pipe.LTrim(ctx, keys.History(), 0, int64(h.limit-1))
	// EXPIRE with zero would delete the list
	if h.ttl > 0 {
		pipe.Expire(ctx, keys.History(), h.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append result: %w", err)
	}

	return nil
}

// Get returns a single encoded result
func (h *History) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := h.client.Redis().Get(ctx, h.client.Keys().Result(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return data, nil
}

// Recent returns up to n encoded results, newest first.
// IDs whose result has expired are skipped.
func (h *History) Recent(ctx context.Context, n int) ([][]byte, error) {
	if n <= 0 || n > h.limit {
		n = h.limit
	}

	ids, err := h.client.Redis().LRange(ctx, h.client.Keys().History(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = h.client.Keys().Result(id)
	}

	values, err := h.client.Redis().MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	results := make([][]byte, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// Expired
			continue
		}
		results = append(results, []byte(s))
	}

	return results, nil
}

// Clear removes the history log and every result it references
func (h *History) Clear(ctx context.Context) error {
	keys := h.client.Keys()

	ids, err := h.client.Redis().LRange(ctx, keys.History(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	toDelete := make([]string, 0, len(ids)+1)
	toDelete = append(toDelete, keys.History())
	for _, id := range ids {
		toDelete = append(toDelete, keys.Result(id))
	}

	if err := h.client.Redis().Del(ctx, toDelete...).Err(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	return nil
}
