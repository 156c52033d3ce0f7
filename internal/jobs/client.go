// internal/jobs/client.go
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Client schedules and unschedules per-campaign one-shot jobs on asynq.
// Scheduling the same (hook, campaign) pair again requires clearing the old
// registration first; callers get that by going through the event scheduler's
// clear-then-set flow.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	logger    *zap.Logger
}

func NewClient(redisAddr, redisPass string, logger *zap.Logger) *Client {
	opt := asynq.RedisClientOpt{Addr: redisAddr, Password: redisPass}
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		logger:    logger,
	}
}

// Close releases the underlying connections.
func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return err
	}
	return c.inspector.Close()
}

// ScheduleSingleAction registers a one-shot job firing at the given instant.
// Returns the job ID.
func (c *Client) ScheduleSingleAction(ctx context.Context, at time.Time, hook string, campaignID int64) (string, error) {
	task, err := NewCampaignEventTask(hook, campaignID)
	if err != nil {
		return "", fmt.Errorf("failed to create %s task: %w", hook, err)
	}

	info, err := c.client.EnqueueContext(ctx, task, asynq.ProcessAt(at.UTC()))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s task: %w", hook, err)
	}

	c.logger.Debug("scheduled one-shot job",
		zap.String("hook", hook),
		zap.Int64("campaign_id", campaignID),
		zap.Time("process_at", at.UTC()),
		zap.String("task_id", info.ID),
	)
	return info.ID, nil
}

// UnscheduleAction removes the registration for a (hook, campaign) pair.
// Removing a job that does not exist is a no-op.
func (c *Client) UnscheduleAction(ctx context.Context, hook string, campaignID int64) error {
	err := c.inspector.DeleteTask(QueueCampaigns, TaskID(hook, campaignID))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil
		}
		return fmt.Errorf("failed to unschedule %s for campaign %d: %w", hook, campaignID, err)
	}
	return nil
}
