// internal/service/campaign/manager.go
package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "smartdeals-service/internal/domain/campaign"
	"smartdeals-service/internal/pkg/clock"
	xerrors "smartdeals-service/internal/pkg/errors"
	"smartdeals-service/internal/pkg/events"
	"smartdeals-service/internal/pkg/history"

	"go.uber.org/zap"
)

// reconcileLockTTL bounds how long a crashed reconciliation run can block the
// next one.
const reconcileLockTTL = 60 * time.Second

// Manager is the façade over the campaign lifecycle: CRUD, status commands,
// duplication and the scheduled-campaign reconciliation pass. All status
// mutations route through the state manager.
type Manager struct {
	repo       Repository
	sm         *StateManager
	locker     Locker
	scheduler  EventRegistrar
	occ        OccurrenceRegenerator
	expiry     ExpiryRecorder
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
	lockTTL    time.Duration
}

func NewManager(
	repo Repository,
	sm *StateManager,
	locker Locker,
	expiry ExpiryRecorder,
	dispatcher events.Dispatcher,
	clk clock.Clock,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		repo:       repo,
		sm:         sm,
		locker:     locker,
		expiry:     expiry,
		dispatcher: dispatcher,
		clock:      clk,
		logger:     logger,
		lockTTL:    reconcileLockTTL,
	}
}

// SetEventScheduler wires the event scheduler after construction; the
// scheduler itself depends on this manager, so one side has to be attached
// late.
func (m *Manager) SetEventScheduler(s EventRegistrar) {
	m.scheduler = s
}

// SetOccurrenceRegenerator attaches the occurrence cache service.
func (m *Manager) SetOccurrenceRegenerator(o OccurrenceRegenerator) {
	m.occ = o
}

// SetLockTTL overrides the reconciliation lock TTL. Non-positive values are
// ignored.
func (m *Manager) SetLockTTL(d time.Duration) {
	if d > 0 {
		m.lockTTL = d
	}
}

// Create persists a new campaign. All validation, activation readiness
// included, runs before anything is stored; the entity is then stored as a
// draft and moved to the requested status through the state manager so every
// guard and side effect applies. A scheduled campaign whose start already
// passed is activated immediately rather than left waiting for a timer that
// will never fire.
func (m *Manager) Create(ctx context.Context, req *domain.CreateCampaignRequest) (*domain.Campaign, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", xerrors.ErrInvalidInput)
	}
	if err := validateDiscount(req.DiscountType, req.DiscountValue, req.DiscountRules); err != nil {
		return nil, err
	}

	target := req.Status
	if target == "" {
		target = domain.StatusDraft
	}
	if target == domain.StatusScheduled && req.StartsAt == nil {
		return nil, fmt.Errorf("%w: scheduled campaign requires starts_at", xerrors.ErrInvalidInput)
	}

	c := domain.New(name)
	if req.Description != "" {
		c.Description.String = req.Description
		c.Description.Valid = true
	}
	c.SetSchedule(req.StartsAt, req.EndsAt, req.Timezone)
	c.DiscountType = req.DiscountType
	c.DiscountValue = req.DiscountValue
	c.DiscountRules = req.DiscountRules
	if req.Priority != 0 {
		c.SetPriority(req.Priority)
	}
	if req.SelectionType != "" {
		c.SelectionType = req.SelectionType
	}
	c.SetProductIDs(req.ProductIDs)
	c.SetCategoryIDs(req.CategoryIDs)
	c.SetTagIDs(req.TagIDs)
	c.Conditions = req.Conditions
	if req.ConditionsLogic != "" {
		c.ConditionsLogic = req.ConditionsLogic
	}
	c.EnableRecurring = req.EnableRecurring
	c.RecurringConfig = req.RecurringConfig
	if req.ActorID > 0 {
		c.CreatedBy.Int64 = req.ActorID
		c.CreatedBy.Valid = true
		c.UpdatedBy = c.CreatedBy
	}

	tc := TransitionContext{Reason: ReasonManual, ActorID: req.ActorID}
	if target == domain.StatusScheduled && !c.StartsAt.Time.After(m.clock.Now()) {
		// Start date already reached: skip the waiting state entirely.
		target = domain.StatusActive
		tc = TransitionContext{Reason: ReasonAutoScheduled}
	}
	// Readiness runs before anything is persisted: a rejected create-as-active
	// request must not leave a draft row behind.
	if target == domain.StatusActive {
		if err := m.checkActivationReadiness(c); err != nil {
			return nil, err
		}
	}

	slug, err := m.uniqueSlug(ctx, c.Slug)
	if err != nil {
		return nil, err
	}
	c.Slug = slug

	if err := m.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	if target != domain.StatusDraft {
		from := c.Status
		if err := m.sm.Transition(ctx, c, target, tc); err != nil {
			return nil, err
		}
		if err := m.repo.Save(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to persist initial status: %w", err)
		}
		m.dispatchStatusEvents(ctx, from, c, tc)
	}

	if m.scheduler != nil && !c.Status.IsTerminal() {
		m.scheduler.ScheduleCampaignEvents(ctx, c.ID)
	}
	m.regenerateOccurrences(ctx, c)

	m.logger.Info("campaign created",
		zap.Int64("campaign_id", c.ID),
		zap.String("slug", c.Slug),
		zap.String("status", string(c.Status)),
	)
	return c, nil
}

// Update applies a partial update. Data fields merge first; a status change
// riding along then goes through the state manager against the merged state,
// and an illegal transition rejects the whole request.
func (m *Manager) Update(ctx context.Context, id int64, req *domain.UpdateCampaignRequest) (*domain.Campaign, error) {
	c, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := c.Status

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", xerrors.ErrInvalidInput)
		}
		c.Name = name
	}
	if req.Description != nil {
		c.Description.String = *req.Description
		c.Description.Valid = *req.Description != ""
	}
	if req.HasSchedule {
		c.SetSchedule(req.StartsAt, req.EndsAt, req.Timezone)
	}
	if req.DiscountType != nil {
		c.DiscountType = *req.DiscountType
	}
	if req.DiscountValue != nil {
		c.DiscountValue = *req.DiscountValue
	}
	if req.DiscountRules != nil {
		c.DiscountRules = req.DiscountRules
	}
	if req.Priority != nil {
		c.SetPriority(*req.Priority)
	}
	if req.SelectionType != nil {
		c.SelectionType = *req.SelectionType
		if c.HasDynamicSelection() {
			// Force a fresh compile under the new selection type.
			c.CompiledAt.Valid = false
			c.CompilationMethod.Valid = false
		}
	}
	if req.ProductIDs != nil {
		c.SetProductIDs(req.ProductIDs)
	}
	if req.CategoryIDs != nil {
		c.SetCategoryIDs(req.CategoryIDs)
	}
	if req.TagIDs != nil {
		c.SetTagIDs(req.TagIDs)
	}
	if req.Conditions != nil {
		c.Conditions = req.Conditions
	}
	if req.ConditionsLogic != nil {
		c.ConditionsLogic = *req.ConditionsLogic
	}
	if req.EnableRecurring != nil {
		c.EnableRecurring = *req.EnableRecurring
	}
	if req.RecurringConfig != nil {
		c.RecurringConfig = req.RecurringConfig
	}
	if err := validateDiscount(c.DiscountType, c.DiscountValue, c.DiscountRules); err != nil {
		return nil, err
	}

	// Status changes apply after the data merge so a request that sets both a
	// schedule and a status is judged against the new dates.
	if req.Status != nil && *req.Status != c.Status {
		tc := TransitionContext{Reason: ReasonManual, ActorID: req.ActorID}
		if *req.Status == domain.StatusActive {
			if err := m.checkActivationReadiness(c); err != nil {
				return nil, err
			}
		}
		if err := m.sm.Transition(ctx, c, *req.Status, tc); err != nil {
			return nil, err
		}
	}

	c.UpdatedAt = m.clock.Now()
	if req.ActorID > 0 {
		c.UpdatedBy.Int64 = req.ActorID
		c.UpdatedBy.Valid = true
	}

	if err := m.repo.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}

	if from != c.Status {
		m.dispatchStatusEvents(ctx, from, c, TransitionContext{Reason: ReasonManual, ActorID: req.ActorID})
	}

	if m.scheduler != nil {
		if c.Status.IsTerminal() {
			m.scheduler.ClearCampaignEvents(ctx, c.ID)
		} else {
			m.scheduler.ScheduleCampaignEvents(ctx, c.ID)
		}
	}
	if req.HasSchedule || req.RecurringConfig != nil || req.EnableRecurring != nil {
		m.regenerateOccurrences(ctx, c)
	}

	return c, nil
}

// Activate moves a campaign into active after checking it is ready to sell:
// a valid discount and at least one way to resolve products.
func (m *Manager) Activate(ctx context.Context, id int64, actorID int64) (*domain.Campaign, error) {
	c, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.checkActivationReadiness(c); err != nil {
		return nil, err
	}
	return m.changeStatus(ctx, c, domain.StatusActive, TransitionContext{Reason: ReasonManual, ActorID: actorID})
}

// Pause suspends an active campaign without touching its schedule.
func (m *Manager) Pause(ctx context.Context, id int64, actorID int64) (*domain.Campaign, error) {
	c, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.changeStatus(ctx, c, domain.StatusPaused, TransitionContext{Reason: ReasonManual, ActorID: actorID})
}

// Archive retires a campaign. Archived campaigns keep their history and can
// only come back as drafts.
func (m *Manager) Archive(ctx context.Context, id int64, actorID int64) (*domain.Campaign, error) {
	c, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.changeStatus(ctx, c, domain.StatusArchived, TransitionContext{Reason: ReasonManual, ActorID: actorID})
}

// Expire ends a campaign ahead of (or without) an end date, subject to the
// state manager's guard against preempting a future ends_at.
func (m *Manager) Expire(ctx context.Context, id int64, actorID int64) (*domain.Campaign, error) {
	c, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.changeStatus(ctx, c, domain.StatusExpired, TransitionContext{Reason: ReasonManual, ActorID: actorID})
}

// Delete soft-deletes the campaign and clears its scheduled events.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	if _, err := m.repo.FindByID(ctx, id); err != nil {
		return err
	}
	if m.scheduler != nil {
		m.scheduler.ClearCampaignEvents(ctx, id)
	}
	if err := m.repo.SoftDelete(ctx, id, m.clock.Now()); err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	m.logger.Info("campaign deleted", zap.Int64("campaign_id", id))
	return nil
}

// HardDelete removes the row permanently. Used for purging soft-deleted rows.
func (m *Manager) HardDelete(ctx context.Context, id int64) error {
	if m.scheduler != nil {
		m.scheduler.ClearCampaignEvents(ctx, id)
	}
	return m.repo.HardDelete(ctx, id)
}

// Duplicate clones a campaign into a fresh draft. Schedule, counters,
// compilation state and audit fields reset; targeting and discount carry over.
func (m *Manager) Duplicate(ctx context.Context, id int64, ov *domain.DuplicateOverrides) (*domain.Campaign, error) {
	src, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name := src.Name + " (Copy)"
	if ov != nil && strings.TrimSpace(ov.Name) != "" {
		name = strings.TrimSpace(ov.Name)
	}

	clone := domain.New(name)
	clone.Description = src.Description
	clone.Timezone = src.Timezone
	clone.SelectionType = src.SelectionType
	clone.SetProductIDs(src.ProductIDs)
	clone.SetCategoryIDs(src.CategoryIDs)
	clone.SetTagIDs(src.TagIDs)
	clone.Conditions = append([]domain.Condition(nil), src.Conditions...)
	clone.ConditionsLogic = src.ConditionsLogic
	clone.DiscountType = src.DiscountType
	clone.DiscountValue = src.DiscountValue
	if src.DiscountRules != nil {
		clone.DiscountRules = make(map[string]interface{}, len(src.DiscountRules))
		for k, v := range src.DiscountRules {
			clone.DiscountRules[k] = v
		}
	}
	clone.Priority = src.Priority
	clone.EnableRecurring = src.EnableRecurring
	if src.RecurringConfig != nil {
		rc := *src.RecurringConfig
		clone.RecurringConfig = &rc
	}
	clone.ResetCounters()
	if ov != nil && ov.ActorID > 0 {
		clone.CreatedBy.Int64 = ov.ActorID
		clone.CreatedBy.Valid = true
		clone.UpdatedBy = clone.CreatedBy
	}

	slug, err := m.uniqueSlug(ctx, clone.Slug)
	if err != nil {
		return nil, err
	}
	clone.Slug = slug

	if err := m.repo.Create(ctx, clone); err != nil {
		return nil, fmt.Errorf("failed to duplicate campaign: %w", err)
	}

	m.logger.Info("campaign duplicated",
		zap.Int64("source_id", src.ID),
		zap.Int64("campaign_id", clone.ID),
	)
	return clone, nil
}

// Get returns one campaign by ID.
func (m *Manager) Get(ctx context.Context, id int64) (*domain.Campaign, error) {
	return m.repo.FindByID(ctx, id)
}

// List returns a filtered, paginated page of campaigns.
func (m *Manager) List(ctx context.Context, filters *domain.ListFilters) (*domain.ListResponse, error) {
	if filters == nil {
		filters = &domain.ListFilters{}
	}
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	items, total, err := m.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	totalPages := int((total + int64(filters.PageSize) - 1) / int64(filters.PageSize))
	return &domain.ListResponse{
		Campaigns:  items,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalPages: totalPages,
	}, nil
}

// Stats returns the dashboard counters.
func (m *Manager) Stats(ctx context.Context) (*domain.Stats, error) {
	return m.repo.GetStats(ctx)
}

// RecentlyExpired returns the rolling list of campaigns expired by the
// reconciliation pass, newest first.
func (m *Manager) RecentlyExpired(ctx context.Context) ([]history.ExpiredEntry, error) {
	return m.expiry.Recent(ctx)
}

func (m *Manager) changeStatus(ctx context.Context, c *domain.Campaign, target domain.Status, tc TransitionContext) (*domain.Campaign, error) {
	from := c.Status
	if err := m.sm.Transition(ctx, c, target, tc); err != nil {
		return nil, err
	}
	if from == c.Status {
		return c, nil
	}
	if err := m.repo.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to persist status change: %w", err)
	}
	m.dispatchStatusEvents(ctx, from, c, tc)
	return c, nil
}

// dispatchStatusEvents publishes the per-status domain event plus the generic
// status-changed event, mirroring the WooCommerce-facing hook names.
func (m *Manager) dispatchStatusEvents(ctx context.Context, from domain.Status, c *domain.Campaign, tc TransitionContext) {
	if m.dispatcher == nil {
		return
	}

	base := events.Event{
		CampaignID: c.ID,
		FromStatus: string(from),
		ToStatus:   string(c.Status),
		Reason:     tc.Reason,
		ActorID:    actorOf(tc),
		OccurredAt: m.clock.Now(),
	}

	switch c.Status {
	case domain.StatusActive:
		ev := base
		ev.Type = events.TypeCampaignActivated
		m.dispatcher.Dispatch(ctx, ev)
	case domain.StatusPaused:
		ev := base
		ev.Type = events.TypeCampaignPaused
		m.dispatcher.Dispatch(ctx, ev)
	case domain.StatusExpired:
		ev := base
		ev.Type = events.TypeCampaignExpired
		m.dispatcher.Dispatch(ctx, ev)
	case domain.StatusArchived:
		ev := base
		ev.Type = events.TypeCampaignArchived
		m.dispatcher.Dispatch(ctx, ev)
	}

	changed := base
	changed.Type = events.TypeCampaignStatusChanged
	m.dispatcher.Dispatch(ctx, changed)
}

// checkActivationReadiness is the pre-flight for entering active: the
// discount must be usable and the campaign must be able to resolve products.
func (m *Manager) checkActivationReadiness(c *domain.Campaign) error {
	if err := validateDiscount(c.DiscountType, c.DiscountValue, c.DiscountRules); err != nil {
		return err
	}
	if !c.HasProductTargeting() {
		return fmt.Errorf("%w: campaign has no product targeting", xerrors.ErrInvalidInput)
	}
	return nil
}

func (m *Manager) regenerateOccurrences(ctx context.Context, c *domain.Campaign) {
	if m.occ == nil || !c.EnableRecurring || c.RecurringConfig == nil {
		return
	}
	n, err := m.occ.Regenerate(ctx, c)
	if err != nil {
		m.logger.Warn("failed to regenerate occurrences",
			zap.Int64("campaign_id", c.ID), zap.Error(err))
		return
	}
	m.logger.Debug("occurrences regenerated",
		zap.Int64("campaign_id", c.ID), zap.Int("count", n))
}

// uniqueSlug appends a numeric suffix until the slug is free.
func (m *Manager) uniqueSlug(ctx context.Context, base string) (string, error) {
	if base == "" {
		base = "campaign"
	}
	slug := base
	for i := 2; ; i++ {
		exists, err := m.repo.ExistsBySlug(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("failed to check slug uniqueness: %w", err)
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func validateDiscount(dt domain.DiscountType, value float64, rules map[string]interface{}) error {
	switch dt {
	case domain.DiscountTypePercentage:
		if value <= 0 || value > 100 {
			return fmt.Errorf("%w: percentage discount must be between 0 and 100", xerrors.ErrInvalidInput)
		}
	case domain.DiscountTypeFixed:
		if value <= 0 {
			return fmt.Errorf("%w: fixed discount must be positive", xerrors.ErrInvalidInput)
		}
	case domain.DiscountTypeBOGO, domain.DiscountTypeTiered, domain.DiscountTypeSpendThreshold:
		if len(rules) == 0 {
			return fmt.Errorf("%w: %s discount requires discount_rules", xerrors.ErrInvalidInput, dt)
		}
	default:
		return fmt.Errorf("%w: unknown discount type %q", xerrors.ErrInvalidInput, dt)
	}
	return nil
}
