// internal/service/occurrence/materializer.go
package occurrence

import (
	"context"
	"fmt"
	"time"

	domain "smartdeals-service/internal/domain/campaign"
	occ "smartdeals-service/internal/domain/occurrence"

	"go.uber.org/zap"
)

// CampaignManager is the slice of the campaign façade the materializer needs
// to spawn instances.
type CampaignManager interface {
	Get(ctx context.Context, id int64) (*domain.Campaign, error)
	Duplicate(ctx context.Context, id int64, ov *domain.DuplicateOverrides) (*domain.Campaign, error)
	Update(ctx context.Context, id int64, req *domain.UpdateCampaignRequest) (*domain.Campaign, error)
}

// Materializer drains due occurrence entries, turning each into a real
// campaign instance cloned from its recurring parent. Each entry transitions
// exactly once: the repository only moves pending rows, so a redelivered or
// concurrent run cannot double-materialize.
type Materializer struct {
	svc       *Service
	campaigns CampaignManager
	lookahead time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewMaterializer(svc *Service, campaigns CampaignManager, lookahead time.Duration, batchSize int, logger *zap.Logger) *Materializer {
	if lookahead <= 0 {
		lookahead = 5 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 25
	}
	return &Materializer{
		svc:       svc,
		campaigns: campaigns,
		lookahead: lookahead,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run processes one batch of due entries and returns how many materialized.
// Per-entry failures are recorded on the entry and do not stop the batch.
func (m *Materializer) Run(ctx context.Context) (int, error) {
	due, err := m.svc.GetDueOccurrences(ctx, m.lookahead, m.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load due occurrences: %w", err)
	}

	done := 0
	for _, entry := range due {
		if err := m.materialize(ctx, entry); err != nil {
			m.logger.Error("occurrence materialization failed",
				zap.Int64("occurrence_id", entry.ID),
				zap.Int64("campaign_id", entry.CampaignID),
				zap.Error(err),
			)
			if ferr := m.svc.MarkFailed(ctx, entry.ID, err); ferr != nil {
				m.logger.Warn("failed to record materialization failure",
					zap.Int64("occurrence_id", entry.ID), zap.Error(ferr))
			}
			continue
		}
		done++
	}
	return done, nil
}

func (m *Materializer) materialize(ctx context.Context, entry *occ.Entry) error {
	parent, err := m.campaigns.Get(ctx, entry.CampaignID)
	if err != nil {
		return fmt.Errorf("parent campaign lookup: %w", err)
	}

	name := fmt.Sprintf("%s #%d", parent.Name, entry.OccurrenceNumber)
	instance, err := m.campaigns.Duplicate(ctx, parent.ID, &domain.DuplicateOverrides{Name: name})
	if err != nil {
		return fmt.Errorf("clone parent: %w", err)
	}

	// Instances run once on the entry's window; they never recur themselves.
	status := domain.StatusScheduled
	if !entry.StartsAt.After(m.svc.clock.Now()) {
		status = domain.StatusActive
	}
	recurring := false
	if _, err := m.campaigns.Update(ctx, instance.ID, &domain.UpdateCampaignRequest{
		Status:          &status,
		HasSchedule:     true,
		StartsAt:        &entry.StartsAt,
		EndsAt:          &entry.EndsAt,
		EnableRecurring: &recurring,
	}); err != nil {
		return fmt.Errorf("configure instance: %w", err)
	}

	if err := m.svc.MarkMaterialized(ctx, entry.ID, instance.ID); err != nil {
		return fmt.Errorf("mark materialized: %w", err)
	}

	m.logger.Info("occurrence materialized",
		zap.Int64("occurrence_id", entry.ID),
		zap.Int64("parent_id", parent.ID),
		zap.Int64("instance_id", instance.ID),
		zap.Int("occurrence_number", entry.OccurrenceNumber),
	)
	return nil
}
