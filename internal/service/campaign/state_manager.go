// internal/service/campaign/state_manager.go
package campaign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "smartdeals-service/internal/domain/campaign"
	"smartdeals-service/internal/jobs"
	"smartdeals-service/internal/pkg/clock"
	"smartdeals-service/internal/pkg/events"

	"go.uber.org/zap"
)

// Transition reasons. The auto_* reasons mark system-driven transitions and
// leave updated_by null; everything else records the acting user.
const (
	ReasonManual        = "manual"
	ReasonAutoScheduled = "auto_scheduled"
	ReasonAutoExpired   = "auto_expired"
)

var (
	ErrInvalidTransition  = errors.New("status transition not allowed")
	ErrStartDateNotFuture = errors.New("cannot schedule: starts_at must be set and in the future")
	ErrEndDateStillAhead  = errors.New("cannot expire: ends_at has not passed yet")
)

// endingSoonLead is how far before ends_at the "ending soon" notice fires.
const endingSoonLead = 24 * time.Hour

// TransitionContext carries who and why for one transition.
type TransitionContext struct {
	Reason  string
	ActorID int64 // ignored for auto_* reasons
}

func (tc TransitionContext) isSystem() bool {
	return tc.Reason == ReasonAutoScheduled || tc.Reason == ReasonAutoExpired
}

// StateManager is the single authority over campaign status changes: it
// validates legality against the transition table, checks target-specific
// guard conditions, mutates the entity, schedules/clears time-based side
// effects and dispatches lifecycle events. It never persists; callers save
// the mutated entity.
type StateManager struct {
	scheduler  JobScheduler
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

func NewStateManager(scheduler JobScheduler, dispatcher events.Dispatcher, clk clock.Clock, logger *zap.Logger) *StateManager {
	return &StateManager{
		scheduler:  scheduler,
		dispatcher: dispatcher,
		clock:      clk,
		logger:     logger,
	}
}

// CanTransition reports edge legality only; guard conditions are checked in
// Transition because they need the campaign's dates.
func (sm *StateManager) CanTransition(from, to domain.Status) bool {
	return domain.CanTransition(from, to)
}

// Transition moves the campaign to newStatus, enforcing the transition table
// and the target's guard conditions. Business-data validation (name, discount
// config, product selection) is the caller's job before this point.
func (sm *StateManager) Transition(ctx context.Context, c *domain.Campaign, newStatus domain.Status, tc TransitionContext) error {
	from := c.Status

	if !sm.CanTransition(from, newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, newStatus)
	}
	if from == newStatus {
		return nil
	}

	now := sm.clock.Now()
	if err := sm.checkGuards(c, newStatus, now); err != nil {
		return err
	}

	actor := actorOf(tc)
	sm.dispatch(ctx, events.Event{
		Type:       events.TypeCampaignTransitionStarted,
		CampaignID: c.ID,
		FromStatus: string(from),
		ToStatus:   string(newStatus),
		Reason:     tc.Reason,
		ActorID:    actor,
		OccurredAt: now,
	})

	c.Status = newStatus
	c.UpdatedAt = now
	if tc.isSystem() {
		c.UpdatedBy = sql.NullInt64{}
	} else {
		c.UpdatedBy = sql.NullInt64{Int64: tc.ActorID, Valid: tc.ActorID != 0}
	}

	sm.applySideEffects(ctx, c, now)

	sm.logger.Info("campaign status transitioned",
		zap.Int64("campaign_id", c.ID),
		zap.String("from", string(from)),
		zap.String("to", string(newStatus)),
		zap.String("reason", tc.Reason),
		zap.Bool("system", tc.isSystem()),
	)

	sm.dispatch(ctx, events.Event{
		Type:       events.TypeCampaignStateChanged,
		CampaignID: c.ID,
		FromStatus: string(from),
		ToStatus:   string(newStatus),
		Reason:     tc.Reason,
		ActorID:    actor,
		OccurredAt: now,
	})

	return nil
}

// AutoTransition is the reconciliation primitive: it applies whichever
// time-driven transition is due and reports whether one occurred. Transition
// errors are swallowed; the next tick retries.
func (sm *StateManager) AutoTransition(ctx context.Context, c *domain.Campaign) bool {
	now := sm.clock.Now()

	switch c.Status {
	case domain.StatusDraft, domain.StatusScheduled:
		// Drafts only reach here through a timer they registered by carrying
		// a start date; the reconciliation pass never touches drafts.
		if c.EndsAt.Valid && !c.EndsAt.Time.After(now) {
			// The whole window is behind us: never flash active. A scheduled
			// campaign expires directly; a draft just stays put.
			if c.Status != domain.StatusScheduled {
				return false
			}
			if err := sm.Transition(ctx, c, domain.StatusExpired, TransitionContext{Reason: ReasonAutoExpired}); err != nil {
				sm.logger.Warn("auto expiration failed",
					zap.Int64("campaign_id", c.ID), zap.Error(err))
				return false
			}
			return true
		}
		if c.StartsAt.Valid && !c.StartsAt.Time.After(now) {
			if err := sm.Transition(ctx, c, domain.StatusActive, TransitionContext{Reason: ReasonAutoScheduled}); err != nil {
				sm.logger.Warn("auto activation failed",
					zap.Int64("campaign_id", c.ID), zap.Error(err))
				return false
			}
			return true
		}
	case domain.StatusActive, domain.StatusPaused:
		if c.EndsAt.Valid && !c.EndsAt.Time.After(now) {
			if err := sm.Transition(ctx, c, domain.StatusExpired, TransitionContext{Reason: ReasonAutoExpired}); err != nil {
				sm.logger.Warn("auto expiration failed",
					zap.Int64("campaign_id", c.ID), zap.Error(err))
				return false
			}
			return true
		}
	}
	return false
}

// checkGuards enforces feasibility conditions specific to the target state.
func (sm *StateManager) checkGuards(c *domain.Campaign, target domain.Status, now time.Time) error {
	switch target {
	case domain.StatusScheduled:
		if !c.StartsAt.Valid || !c.StartsAt.Time.After(now) {
			return ErrStartDateNotFuture
		}
	case domain.StatusExpired:
		// Manual expiry must not preempt a legitimate future end date.
		if c.EndsAt.Valid && c.EndsAt.Time.After(now) {
			return ErrEndDateStillAhead
		}
	}
	return nil
}

// applySideEffects registers or clears time-based jobs for the status just
// entered. Scheduling failures are logged and non-fatal: the reconciliation
// loop is the designed fallback.
func (sm *StateManager) applySideEffects(ctx context.Context, c *domain.Campaign, now time.Time) {
	switch {
	case c.Status == domain.StatusActive:
		if c.EndsAt.Valid && c.EndsAt.Time.After(now) {
			sm.reschedule(ctx, c.ID, jobs.HookCampaignDeactivate, c.EndsAt.Time)

			if notice := c.EndsAt.Time.Add(-endingSoonLead); notice.After(now) {
				sm.reschedule(ctx, c.ID, jobs.HookCampaignEndingSoon, notice)
			}
		}
	case c.Status.IsTerminal():
		for _, hook := range []string{
			jobs.HookCampaignActivate,
			jobs.HookCampaignDeactivate,
			jobs.HookCampaignEndingSoon,
			jobs.HookCampaignRotate,
		} {
			if err := sm.scheduler.UnscheduleAction(ctx, hook, c.ID); err != nil {
				sm.logger.Warn("failed to clear scheduled job",
					zap.Int64("campaign_id", c.ID),
					zap.String("hook", hook),
					zap.Error(err),
				)
			}
		}
	}
}

func (sm *StateManager) reschedule(ctx context.Context, campaignID int64, hook string, at time.Time) {
	if err := sm.scheduler.UnscheduleAction(ctx, hook, campaignID); err != nil {
		sm.logger.Warn("failed to clear stale job before rescheduling",
			zap.Int64("campaign_id", campaignID),
			zap.String("hook", hook),
			zap.Error(err),
		)
	}
	if _, err := sm.scheduler.ScheduleSingleAction(ctx, at, hook, campaignID); err != nil {
		sm.logger.Warn("failed to schedule job",
			zap.Int64("campaign_id", campaignID),
			zap.String("hook", hook),
			zap.Time("at", at),
			zap.Error(err),
		)
	}
}

func (sm *StateManager) dispatch(ctx context.Context, ev events.Event) {
	if sm.dispatcher != nil {
		sm.dispatcher.Dispatch(ctx, ev)
	}
}

func actorOf(tc TransitionContext) *int64 {
	if tc.isSystem() || tc.ActorID == 0 {
		return nil
	}
	id := tc.ActorID
	return &id
}
