package scraper

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kkkkkxiaofei/web-agent/internal/storage"
)

// HistoryRecorder stores results in the Redis history
type HistoryRecorder struct {
	History *storage.History
}

// Record encodes result and appends it to the history
func (r *HistoryRecorder) Record(ctx context.Context, result Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return r.History.Append(ctx, result.ID, data)
}

// Recent returns up to n stored results, newest first.
// Entries that fail to decode are skipped.
func (r *HistoryRecorder) Recent(ctx context.Context, n int) ([]Result, error) {
	raw, err := r.History.Recent(ctx, n)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(raw))
	for _, data := range raw {
		var res Result
		if err := json.Unmarshal(data, &res); err != nil {
			continue
		}
		results = append(results, res)
	}
	return results, nil
}
