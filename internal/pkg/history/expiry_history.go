// internal/pkg/history/expiry_history.go
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	expiredListKey = "scd:recently_expired"
	maxEntries     = 50
)

// ExpiredEntry is one recently-expired campaign shown in admin notices.
type ExpiredEntry struct {
	CampaignID int64     `json:"campaign_id"`
	Name       string    `json:"name"`
	ExpiredAt  time.Time `json:"expired_at"`
}

// ExpiryHistory keeps a rolling, capped list of recently expired campaigns in
// Redis. The list is transient by design; losing it costs nothing but an
// admin notice.
type ExpiryHistory struct {
	client *redis.Client
}

func NewExpiryHistory(client *redis.Client) *ExpiryHistory {
	return &ExpiryHistory{client: client}
}

// Record pushes an entry and trims the list to the most recent 50.
func (h *ExpiryHistory) Record(ctx context.Context, entry ExpiredEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal expired entry: %w", err)
	}

	pipe := h.client.TxPipeline()
	pipe.LPush(ctx, expiredListKey, data)
	pipe.LTrim(ctx, expiredListKey, 0, maxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record expired campaign: %w", err)
	}
	return nil
}

// Recent returns the stored entries, newest first.
func (h *ExpiryHistory) Recent(ctx context.Context) ([]ExpiredEntry, error) {
	raw, err := h.client.LRange(ctx, expiredListKey, 0, maxEntries-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read expiry history: %w", err)
	}

	entries := make([]ExpiredEntry, 0, len(raw))
	for _, item := range raw {
		var e ExpiredEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue // skip carried-over entries from older formats
		}
		entries = append(entries, e)
	}
	return entries, nil
}
