package campaign

import (
	"context"
	"testing"
	"time"

	domain "smartdeals-service/internal/domain/campaign"
	xerrors "smartdeals-service/internal/pkg/errors"
	"smartdeals-service/internal/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createReq(name string) *domain.CreateCampaignRequest {
	return &domain.CreateCampaignRequest{
		Name:          name,
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: 20,
	}
}

func TestCreateDefaults(t *testing.T) {
	env := newTestEnv()

	c, err := env.manager.Create(context.Background(), createReq("Summer Sale"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDraft, c.Status)
	assert.Equal(t, domain.DefaultPriority, c.Priority)
	assert.Equal(t, domain.SelectionAllProducts, c.SelectionType)
	assert.Equal(t, "summer-sale", c.Slug)
	assert.NotEmpty(t, c.UUID)
	assert.NotZero(t, c.ID)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv()

	t.Run("blank name", func(t *testing.T) {
		req := createReq("   ")
		_, err := env.manager.Create(context.Background(), req)
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})

	t.Run("percentage over 100", func(t *testing.T) {
		req := createReq("Over")
		req.DiscountValue = 150
		_, err := env.manager.Create(context.Background(), req)
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})

	t.Run("bogo without rules", func(t *testing.T) {
		req := createReq("BOGO")
		req.DiscountType = domain.DiscountTypeBOGO
		_, err := env.manager.Create(context.Background(), req)
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})

	t.Run("scheduled without start date", func(t *testing.T) {
		req := createReq("No Start")
		req.Status = domain.StatusScheduled
		_, err := env.manager.Create(context.Background(), req)
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})
}

func TestCreateActiveWithoutTargetingPersistsNothing(t *testing.T) {
	env := newTestEnv()
	req := createReq("Empty Targeting")
	req.Status = domain.StatusActive
	req.SelectionType = domain.SelectionSpecificProducts

	_, err := env.manager.Create(context.Background(), req)
	require.ErrorIs(t, err, xerrors.ErrInvalidInput)

	// The readiness check fires before the insert, so nothing survives the
	// rejected request, not even a draft.
	drafts, err := env.repo.FindByStatus(context.Background(), domain.StatusDraft)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestCreateUniquifiesSlug(t *testing.T) {
	env := newTestEnv()

	first, err := env.manager.Create(context.Background(), createReq("Summer Sale"))
	require.NoError(t, err)
	second, err := env.manager.Create(context.Background(), createReq("Summer Sale"))
	require.NoError(t, err)
	third, err := env.manager.Create(context.Background(), createReq("Summer Sale"))
	require.NoError(t, err)

	assert.Equal(t, "summer-sale", first.Slug)
	assert.Equal(t, "summer-sale-2", second.Slug)
	assert.Equal(t, "summer-sale-3", third.Slug)
}

func TestCreateScheduledRegistersEvents(t *testing.T) {
	env := newTestEnv()
	req := createReq("Weekend Deal")
	req.Status = domain.StatusScheduled
	starts := env.clock.Now().Add(48 * time.Hour)
	ends := env.clock.Now().Add(96 * time.Hour)
	req.StartsAt = &starts
	req.EndsAt = &ends

	c, err := env.manager.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusScheduled, c.Status)
	assert.Equal(t, 1, env.registrar.scheduled[c.ID])
}

func TestCreateScheduledWithPastStartActivatesImmediately(t *testing.T) {
	env := newTestEnv()
	req := createReq("Already Started")
	req.Status = domain.StatusScheduled
	starts := env.clock.Now().Add(-time.Hour)
	ends := env.clock.Now().Add(48 * time.Hour)
	req.StartsAt = &starts
	req.EndsAt = &ends

	c, err := env.manager.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActive, c.Status)
	// System-driven catch-up: no acting user on the transition.
	assert.False(t, c.UpdatedBy.Valid)

	activated := env.dispatcher.ofType(events.TypeCampaignActivated)
	require.Len(t, activated, 1)
	assert.Equal(t, ReasonAutoScheduled, activated[0].Reason)
}

func TestActivateRequiresTargeting(t *testing.T) {
	env := newTestEnv()
	req := createReq("No Products")
	req.SelectionType = domain.SelectionSpecificProducts
	c, err := env.manager.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = env.manager.Activate(context.Background(), c.ID, 1)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestStatusCommands(t *testing.T) {
	env := newTestEnv()
	c, err := env.manager.Create(context.Background(), createReq("Lifecycle"))
	require.NoError(t, err)

	active, err := env.manager.Activate(context.Background(), c.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, active.Status)
	assert.Equal(t, int64(9), active.UpdatedBy.Int64)

	paused, err := env.manager.Pause(context.Background(), c.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, paused.Status)

	expired, err := env.manager.Expire(context.Background(), c.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, expired.Status)

	archived, err := env.manager.Archive(context.Background(), c.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, archived.Status)

	// Archived campaigns can only come back as drafts.
	_, err = env.manager.Activate(context.Background(), c.ID, 9)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateAppliesScheduleBeforeStatus(t *testing.T) {
	env := newTestEnv()
	c, err := env.manager.Create(context.Background(), createReq("Reschedule"))
	require.NoError(t, err)

	status := domain.StatusScheduled
	starts := env.clock.Now().Add(24 * time.Hour)
	updated, err := env.manager.Update(context.Background(), c.ID, &domain.UpdateCampaignRequest{
		Status:      &status,
		HasSchedule: true,
		StartsAt:    &starts,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, updated.Status)
	assert.Equal(t, starts.UTC(), updated.StartsAt.Time)
}

func TestUpdateRejectsIllegalStatus(t *testing.T) {
	env := newTestEnv()
	c, err := env.manager.Create(context.Background(), createReq("Stuck"))
	require.NoError(t, err)

	status := domain.StatusPaused // draft -> paused is not in the table
	_, err = env.manager.Update(context.Background(), c.ID, &domain.UpdateCampaignRequest{Status: &status})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeleteClearsEvents(t *testing.T) {
	env := newTestEnv()
	c, err := env.manager.Create(context.Background(), createReq("Goner"))
	require.NoError(t, err)

	require.NoError(t, env.manager.Delete(context.Background(), c.ID))
	assert.Equal(t, 1, env.registrar.cleared[c.ID])

	_, err = env.manager.Get(context.Background(), c.ID)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestDuplicate(t *testing.T) {
	env := newTestEnv()
	req := createReq("Original")
	req.ProductIDs = []int64{10, 20}
	starts := env.clock.Now().Add(time.Hour)
	ends := env.clock.Now().Add(48 * time.Hour)
	req.StartsAt = &starts
	req.EndsAt = &ends
	src, err := env.manager.Create(context.Background(), req)
	require.NoError(t, err)
	src.UsageCount = 55
	require.NoError(t, env.repo.Save(context.Background(), src))

	dup, err := env.manager.Duplicate(context.Background(), src.ID, nil)
	require.NoError(t, err)

	assert.NotEqual(t, src.ID, dup.ID)
	assert.NotEqual(t, src.UUID, dup.UUID)
	assert.Equal(t, "Original (Copy)", dup.Name)
	assert.Equal(t, domain.StatusDraft, dup.Status)
	assert.False(t, dup.StartsAt.Valid, "schedule must not carry over")
	assert.False(t, dup.EndsAt.Valid)
	assert.Zero(t, dup.UsageCount)
	assert.Equal(t, src.DiscountValue, dup.DiscountValue)
	assert.EqualValues(t, src.ProductIDs, dup.ProductIDs)
}

func TestDuplicateWithNameOverride(t *testing.T) {
	env := newTestEnv()
	src, err := env.manager.Create(context.Background(), createReq("Original"))
	require.NoError(t, err)

	dup, err := env.manager.Duplicate(context.Background(), src.ID, &domain.DuplicateOverrides{Name: "Relaunch"})
	require.NoError(t, err)
	assert.Equal(t, "Relaunch", dup.Name)
	assert.Equal(t, "relaunch", dup.Slug)
}
