// internal/service/campaign/reconcile.go
package campaign

import (
	"context"
	"errors"
	"fmt"

	domain "smartdeals-service/internal/domain/campaign"
	"smartdeals-service/internal/pkg/history"
	"smartdeals-service/internal/pkg/lock"

	"go.uber.org/zap"
)

// reconcileLockKey serializes reconciliation across processes.
const reconcileLockKey = "scd_process_campaigns_lock"

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Activated int      `json:"activated"`
	Expired   int      `json:"expired"`
	Errors    []string `json:"errors,omitempty"`
	Skipped   string   `json:"skipped,omitempty"`
}

// ProcessScheduledCampaigns is the safety net behind the one-shot timers: it
// activates scheduled campaigns whose start has passed and expires active or
// paused campaigns whose end has passed, under a short-lived distributed lock
// so overlapping runs cannot double-fire. A campaign that is both overdue to
// start and overdue to end is expired, never activated.
func (m *Manager) ProcessScheduledCampaigns(ctx context.Context) (*ReconcileResult, error) {
	guard, err := m.locker.Acquire(ctx, reconcileLockKey, m.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			m.logger.Debug("reconciliation already running elsewhere")
			return &ReconcileResult{Skipped: "locked"}, nil
		}
		return nil, fmt.Errorf("failed to acquire reconciliation lock: %w", err)
	}
	defer func() {
		if rerr := guard.Release(ctx); rerr != nil {
			m.logger.Warn("failed to release reconciliation lock", zap.Error(rerr))
		}
	}()

	result := &ReconcileResult{}
	now := m.clock.Now()

	scheduled, err := m.repo.FindByStatus(ctx, domain.StatusScheduled)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduled campaigns: %w", err)
	}
	for _, c := range scheduled {
		switch {
		case c.EndsAt.Valid && !c.EndsAt.Time.After(now):
			// End date already passed: never activate, go straight to expired.
			m.reconcileExpire(ctx, c, result)
		case c.StartsAt.Valid && !c.StartsAt.Time.After(now):
			from := c.Status
			tc := TransitionContext{Reason: ReasonAutoScheduled}
			if err := m.sm.Transition(ctx, c, domain.StatusActive, tc); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("campaign %d: %v", c.ID, err))
				continue
			}
			if err := m.repo.Save(ctx, c); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("campaign %d: %v", c.ID, err))
				continue
			}
			m.dispatchStatusEvents(ctx, from, c, tc)
			result.Activated++
		}
	}

	running, err := m.repo.FindByStatus(ctx, domain.StatusActive, domain.StatusPaused)
	if err != nil {
		return nil, fmt.Errorf("failed to load running campaigns: %w", err)
	}
	for _, c := range running {
		if c.EndsAt.Valid && !c.EndsAt.Time.After(now) {
			m.reconcileExpire(ctx, c, result)
		}
	}

	if result.Activated > 0 || result.Expired > 0 || len(result.Errors) > 0 {
		m.logger.Info("reconciliation pass completed",
			zap.Int("activated", result.Activated),
			zap.Int("expired", result.Expired),
			zap.Int("errors", len(result.Errors)),
		)
	}
	return result, nil
}

func (m *Manager) reconcileExpire(ctx context.Context, c *domain.Campaign, result *ReconcileResult) {
	from := c.Status
	tc := TransitionContext{Reason: ReasonAutoExpired}
	if err := m.sm.Transition(ctx, c, domain.StatusExpired, tc); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("campaign %d: %v", c.ID, err))
		return
	}
	if err := m.repo.Save(ctx, c); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("campaign %d: %v", c.ID, err))
		return
	}
	m.dispatchStatusEvents(ctx, from, c, tc)
	result.Expired++

	if m.expiry != nil {
		entry := history.ExpiredEntry{
			CampaignID: c.ID,
			Name:       c.Name,
			ExpiredAt:  m.clock.Now(),
		}
		if err := m.expiry.Record(ctx, entry); err != nil {
			m.logger.Warn("failed to record expired campaign",
				zap.Int64("campaign_id", c.ID), zap.Error(err))
		}
	}
}
