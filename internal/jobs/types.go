// internal/jobs/types.go
package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Hook names for per-campaign one-shot jobs. The pair (hook, campaign ID)
// identifies a registration, so re-scheduling replaces rather than duplicates.
const (
	HookCampaignActivate   = "campaign:activate"
	HookCampaignDeactivate = "campaign:deactivate"
	HookCampaignEndingSoon = "campaign:ending_soon"
	HookCampaignRotate     = "campaign:rotate_products"
)

// QueueCampaigns is the asynq queue carrying all campaign lifecycle jobs.
const QueueCampaigns = "campaigns"

// CampaignEventPayload is the payload for every per-campaign one-shot job.
type CampaignEventPayload struct {
	CampaignID int64 `json:"campaign_id"`
}

// TaskID builds the deterministic task ID for a (hook, campaign) pair.
func TaskID(hook string, campaignID int64) string {
	return fmt.Sprintf("%s:%d", hook, campaignID)
}

// NewCampaignEventTask creates a one-shot task for the given hook.
func NewCampaignEventTask(hook string, campaignID int64) (*asynq.Task, error) {
	data, err := json.Marshal(CampaignEventPayload{CampaignID: campaignID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(hook, data,
		asynq.Queue(QueueCampaigns),
		asynq.TaskID(TaskID(hook, campaignID)),
		asynq.MaxRetry(3),
	), nil
}
