// internal/jobs/worker.go
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// EventHandler is implemented by the campaign event scheduler; the worker
// binary only needs these entry points.
type EventHandler interface {
	HandleActivationEvent(ctx context.Context, campaignID int64)
	HandleDeactivationEvent(ctx context.Context, campaignID int64)
	HandleEndingSoonEvent(ctx context.Context, campaignID int64)
	HandleRotateEvent(ctx context.Context, campaignID int64)
}

// NewMux registers the campaign lifecycle hooks on an asynq mux. Handlers
// never return errors: a failed activation must not crash or retry-storm the
// job runner, the reconciliation loop is the fallback.
func NewMux(h EventHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()

	mux.HandleFunc(HookCampaignActivate, func(ctx context.Context, t *asynq.Task) error {
		id, err := campaignID(t)
		if err != nil {
			return err
		}
		h.HandleActivationEvent(ctx, id)
		return nil
	})

	mux.HandleFunc(HookCampaignDeactivate, func(ctx context.Context, t *asynq.Task) error {
		id, err := campaignID(t)
		if err != nil {
			return err
		}
		h.HandleDeactivationEvent(ctx, id)
		return nil
	})

	mux.HandleFunc(HookCampaignEndingSoon, func(ctx context.Context, t *asynq.Task) error {
		id, err := campaignID(t)
		if err != nil {
			return err
		}
		h.HandleEndingSoonEvent(ctx, id)
		return nil
	})

	mux.HandleFunc(HookCampaignRotate, func(ctx context.Context, t *asynq.Task) error {
		id, err := campaignID(t)
		if err != nil {
			return err
		}
		h.HandleRotateEvent(ctx, id)
		return nil
	})

	return mux
}

func campaignID(t *asynq.Task) (int64, error) {
	var p CampaignEventPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return 0, fmt.Errorf("failed to unmarshal campaign event payload: %w", err)
	}
	return p.CampaignID, nil
}
