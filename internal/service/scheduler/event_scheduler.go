// internal/service/scheduler/event_scheduler.go
package scheduler

import (
	"context"
	"time"

	domain "smartdeals-service/internal/domain/campaign"
	"smartdeals-service/internal/jobs"
	"smartdeals-service/internal/pkg/clock"
	"smartdeals-service/internal/pkg/events"

	"go.uber.org/zap"
)

// endingSoonLead is how far before ends_at the ending-soon notice fires.
const endingSoonLead = 24 * time.Hour

// rotateInterval is how often an active random-selection campaign re-rolls
// its product set.
const rotateInterval = 24 * time.Hour

// CampaignStore is the slice of persistence the scheduler needs.
type CampaignStore interface {
	FindByID(ctx context.Context, id int64) (*domain.Campaign, error)
	FindByStatus(ctx context.Context, statuses ...domain.Status) ([]*domain.Campaign, error)
	Save(ctx context.Context, c *domain.Campaign) error
}

// LifecycleManager applies whichever time-driven transition is due.
type LifecycleManager interface {
	AutoTransition(ctx context.Context, c *domain.Campaign) bool
}

// JobScheduler is the one-shot job facility backing the timers.
type JobScheduler interface {
	ScheduleSingleAction(ctx context.Context, at time.Time, hook string, campaignID int64) (string, error)
	UnscheduleAction(ctx context.Context, hook string, campaignID int64) error
}

// EventScheduler owns the one-shot timers that drive campaign lifecycle
// boundaries, and handles the jobs when they fire. Registration is always
// clear-then-set, so re-registering after a date change cannot leave a stale
// timer behind.
type EventScheduler struct {
	store      CampaignStore
	lifecycle  LifecycleManager
	scheduler  JobScheduler
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

func NewEventScheduler(
	store CampaignStore,
	lifecycle LifecycleManager,
	scheduler JobScheduler,
	dispatcher events.Dispatcher,
	clk clock.Clock,
	logger *zap.Logger,
) *EventScheduler {
	return &EventScheduler{
		store:      store,
		lifecycle:  lifecycle,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		clock:      clk,
		logger:     logger,
	}
}

// ScheduleCampaignEvents re-derives the campaign's timers from its persisted
// dates. Terminal campaigns get their timers cleared and nothing new; past
// timestamps are never registered, the reconciliation pass covers anything
// already overdue. Returns false only when the campaign cannot be found.
func (s *EventScheduler) ScheduleCampaignEvents(ctx context.Context, campaignID int64) bool {
	c, err := s.store.FindByID(ctx, campaignID)
	if err != nil {
		s.logger.Warn("cannot schedule events for unknown campaign",
			zap.Int64("campaign_id", campaignID), zap.Error(err))
		return false
	}

	s.ClearCampaignEvents(ctx, campaignID)

	if c.Status.IsTerminal() {
		return true
	}

	now := s.clock.Now()

	waiting := c.Status == domain.StatusDraft || c.Status == domain.StatusScheduled
	if waiting && c.StartsAt.Valid && c.StartsAt.Time.After(now) {
		s.register(ctx, c.ID, jobs.HookCampaignActivate, c.StartsAt.Time)
	}

	if c.EndsAt.Valid && c.EndsAt.Time.After(now) {
		s.register(ctx, c.ID, jobs.HookCampaignDeactivate, c.EndsAt.Time)
		if notice := c.EndsAt.Time.Add(-endingSoonLead); notice.After(now) {
			s.register(ctx, c.ID, jobs.HookCampaignEndingSoon, notice)
		}
	}

	if c.Status == domain.StatusActive && c.SelectionType == domain.SelectionRandomProducts {
		s.register(ctx, c.ID, jobs.HookCampaignRotate, now.Add(rotateInterval))
	}

	return true
}

// ClearCampaignEvents removes every timer registered for the campaign.
// Clearing timers that were never set is a no-op.
func (s *EventScheduler) ClearCampaignEvents(ctx context.Context, campaignID int64) {
	for _, hook := range []string{
		jobs.HookCampaignActivate,
		jobs.HookCampaignDeactivate,
		jobs.HookCampaignEndingSoon,
		jobs.HookCampaignRotate,
	} {
		if err := s.scheduler.UnscheduleAction(ctx, hook, campaignID); err != nil {
			s.logger.Warn("failed to unschedule hook",
				zap.Int64("campaign_id", campaignID),
				zap.String("hook", hook),
				zap.Error(err),
			)
		}
	}
}

// HandleActivationEvent fires when a campaign's start timer elapses. The
// campaign may have been edited or cancelled since the timer was set, so the
// current state decides; a timer firing against a terminal or draft campaign
// is a silent no-op.
func (s *EventScheduler) HandleActivationEvent(ctx context.Context, campaignID int64) {
	s.applyDueTransition(ctx, campaignID, "activation")
}

// HandleDeactivationEvent fires when a campaign's end timer elapses.
func (s *EventScheduler) HandleDeactivationEvent(ctx context.Context, campaignID int64) {
	s.applyDueTransition(ctx, campaignID, "deactivation")
}

// HandleEndingSoonEvent publishes the ending-soon notice for subscribers
// (admin notifications). It never mutates the campaign.
func (s *EventScheduler) HandleEndingSoonEvent(ctx context.Context, campaignID int64) {
	c, err := s.store.FindByID(ctx, campaignID)
	if err != nil {
		s.logger.Warn("ending-soon fired for unknown campaign",
			zap.Int64("campaign_id", campaignID), zap.Error(err))
		return
	}
	if c.Status != domain.StatusActive {
		return
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, events.Event{
			Type:       events.TypeCampaignEndingSoon,
			CampaignID: c.ID,
			FromStatus: string(c.Status),
			ToStatus:   string(c.Status),
			OccurredAt: s.clock.Now(),
		})
	}
}

// HandleRotateEvent fires when an active random-selection campaign is due for
// a fresh product roll. It publishes the rotation notice for the compiler and
// arms the next rotation; campaigns that left the active state or switched
// selection type since the timer was set simply stop rotating.
func (s *EventScheduler) HandleRotateEvent(ctx context.Context, campaignID int64) {
	c, err := s.store.FindByID(ctx, campaignID)
	if err != nil {
		s.logger.Warn("rotation fired for unknown campaign",
			zap.Int64("campaign_id", campaignID), zap.Error(err))
		return
	}
	if c.Status != domain.StatusActive || c.SelectionType != domain.SelectionRandomProducts {
		return
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, events.Event{
			Type:       events.TypeCampaignRotateDue,
			CampaignID: c.ID,
			FromStatus: string(c.Status),
			ToStatus:   string(c.Status),
			OccurredAt: s.clock.Now(),
		})
	}

	s.register(ctx, c.ID, jobs.HookCampaignRotate, s.clock.Now().Add(rotateInterval))
}

// RunSafetyCheck re-registers timers for every non-terminal campaign with a
// future boundary. Timers in the job backend can be lost (flushed Redis,
// pruned queues); this pass restores them from the database, which is the
// source of truth.
func (s *EventScheduler) RunSafetyCheck(ctx context.Context) int {
	campaigns, err := s.store.FindByStatus(ctx,
		domain.StatusScheduled, domain.StatusActive, domain.StatusPaused)
	if err != nil {
		s.logger.Error("safety check failed to load campaigns", zap.Error(err))
		return 0
	}

	checked := 0
	for _, c := range campaigns {
		if s.ScheduleCampaignEvents(ctx, c.ID) {
			checked++
		}
	}

	if checked > 0 {
		s.logger.Info("safety check re-registered campaign timers",
			zap.Int("campaigns", checked))
	}
	return checked
}

func (s *EventScheduler) applyDueTransition(ctx context.Context, campaignID int64, kind string) {
	c, err := s.store.FindByID(ctx, campaignID)
	if err != nil {
		s.logger.Warn("timer fired for unknown campaign",
			zap.Int64("campaign_id", campaignID),
			zap.String("kind", kind),
			zap.Error(err),
		)
		return
	}

	if !s.lifecycle.AutoTransition(ctx, c) {
		s.logger.Debug("timer fired but no transition was due",
			zap.Int64("campaign_id", campaignID),
			zap.String("kind", kind),
			zap.String("status", string(c.Status)),
		)
		return
	}

	if err := s.store.Save(ctx, c); err != nil {
		s.logger.Error("failed to persist timed transition",
			zap.Int64("campaign_id", campaignID),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
}

func (s *EventScheduler) register(ctx context.Context, campaignID int64, hook string, at time.Time) bool {
	if _, err := s.scheduler.ScheduleSingleAction(ctx, at, hook, campaignID); err != nil {
		s.logger.Warn("failed to register timer",
			zap.Int64("campaign_id", campaignID),
			zap.String("hook", hook),
			zap.Time("at", at),
			zap.Error(err),
		)
		return false
	}
	return true
}
