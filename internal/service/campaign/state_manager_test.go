package campaign

import (
	"context"
	"database/sql"
	"testing"
	"time"

	domain "smartdeals-service/internal/domain/campaign"
	"smartdeals-service/internal/jobs"
	"smartdeals-service/internal/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scheduledCampaign(env *testEnv, startIn, endIn time.Duration) *domain.Campaign {
	c := domain.New("Summer Sale")
	c.ID = 1
	c.Status = domain.StatusScheduled
	now := env.clock.Now()
	c.StartsAt = sql.NullTime{Time: now.Add(startIn), Valid: true}
	c.EndsAt = sql.NullTime{Time: now.Add(endIn), Valid: true}
	return c
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	env := newTestEnv()
	c := domain.New("Flash Deal")
	c.Status = domain.StatusExpired

	err := env.sm.Transition(context.Background(), c, domain.StatusActive, TransitionContext{Reason: ReasonManual})
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, domain.StatusExpired, c.Status)
}

func TestTransitionSameStatusIsNoOp(t *testing.T) {
	env := newTestEnv()
	c := domain.New("Flash Deal")
	c.Status = domain.StatusActive

	err := env.sm.Transition(context.Background(), c, domain.StatusActive, TransitionContext{Reason: ReasonManual})
	require.NoError(t, err)
	assert.Empty(t, env.dispatcher.events, "no-op transition must not emit events")
}

func TestTransitionScheduledRequiresFutureStart(t *testing.T) {
	env := newTestEnv()
	c := domain.New("Flash Deal")

	err := env.sm.Transition(context.Background(), c, domain.StatusScheduled, TransitionContext{Reason: ReasonManual})
	require.ErrorIs(t, err, ErrStartDateNotFuture)

	c.StartsAt = sql.NullTime{Time: env.clock.Now().Add(-time.Hour), Valid: true}
	err = env.sm.Transition(context.Background(), c, domain.StatusScheduled, TransitionContext{Reason: ReasonManual})
	require.ErrorIs(t, err, ErrStartDateNotFuture)

	c.StartsAt = sql.NullTime{Time: env.clock.Now().Add(time.Hour), Valid: true}
	require.NoError(t, env.sm.Transition(context.Background(), c, domain.StatusScheduled, TransitionContext{Reason: ReasonManual}))
	assert.Equal(t, domain.StatusScheduled, c.Status)
}

func TestTransitionExpireGuardsFutureEndDate(t *testing.T) {
	env := newTestEnv()
	c := scheduledCampaign(env, -2*time.Hour, 48*time.Hour)
	c.Status = domain.StatusActive

	err := env.sm.Transition(context.Background(), c, domain.StatusExpired, TransitionContext{Reason: ReasonManual})
	require.ErrorIs(t, err, ErrEndDateStillAhead)

	env.clock.advance(49 * time.Hour)
	require.NoError(t, env.sm.Transition(context.Background(), c, domain.StatusExpired, TransitionContext{Reason: ReasonManual}))
}

func TestTransitionAuditFields(t *testing.T) {
	t.Run("manual transition records actor", func(t *testing.T) {
		env := newTestEnv()
		c := domain.New("Flash Deal")

		err := env.sm.Transition(context.Background(), c, domain.StatusActive,
			TransitionContext{Reason: ReasonManual, ActorID: 42})
		require.NoError(t, err)
		require.True(t, c.UpdatedBy.Valid)
		assert.Equal(t, int64(42), c.UpdatedBy.Int64)
	})

	t.Run("system transition leaves updated_by null", func(t *testing.T) {
		env := newTestEnv()
		c := scheduledCampaign(env, -time.Minute, 24*time.Hour)
		c.UpdatedBy = sql.NullInt64{Int64: 7, Valid: true}

		err := env.sm.Transition(context.Background(), c, domain.StatusActive,
			TransitionContext{Reason: ReasonAutoScheduled, ActorID: 7})
		require.NoError(t, err)
		assert.False(t, c.UpdatedBy.Valid)
	})
}

func TestTransitionIntoActiveSchedulesTimers(t *testing.T) {
	env := newTestEnv()
	c := scheduledCampaign(env, -time.Minute, 72*time.Hour)

	require.NoError(t, env.sm.Transition(context.Background(), c, domain.StatusActive,
		TransitionContext{Reason: ReasonAutoScheduled}))

	assert.True(t, env.jobs.has(jobs.HookCampaignDeactivate, c.ID))
	assert.Equal(t, c.EndsAt.Time, env.jobs.at(jobs.HookCampaignDeactivate, c.ID))

	assert.True(t, env.jobs.has(jobs.HookCampaignEndingSoon, c.ID))
	assert.Equal(t, c.EndsAt.Time.Add(-24*time.Hour), env.jobs.at(jobs.HookCampaignEndingSoon, c.ID))
}

func TestTransitionIntoActiveSkipsPastEndingSoon(t *testing.T) {
	env := newTestEnv()
	// Ends in 10h: the 24h-ahead notice would be in the past.
	c := scheduledCampaign(env, -time.Minute, 10*time.Hour)

	require.NoError(t, env.sm.Transition(context.Background(), c, domain.StatusActive,
		TransitionContext{Reason: ReasonAutoScheduled}))

	assert.True(t, env.jobs.has(jobs.HookCampaignDeactivate, c.ID))
	assert.False(t, env.jobs.has(jobs.HookCampaignEndingSoon, c.ID))
}

func TestTransitionIntoTerminalClearsTimers(t *testing.T) {
	env := newTestEnv()
	c := scheduledCampaign(env, -time.Minute, 72*time.Hour)
	require.NoError(t, env.sm.Transition(context.Background(), c, domain.StatusActive,
		TransitionContext{Reason: ReasonAutoScheduled}))
	require.True(t, env.jobs.has(jobs.HookCampaignDeactivate, c.ID))

	env.clock.advance(73 * time.Hour)
	require.NoError(t, env.sm.Transition(context.Background(), c, domain.StatusExpired,
		TransitionContext{Reason: ReasonAutoExpired}))

	assert.False(t, env.jobs.has(jobs.HookCampaignActivate, c.ID))
	assert.False(t, env.jobs.has(jobs.HookCampaignDeactivate, c.ID))
	assert.False(t, env.jobs.has(jobs.HookCampaignEndingSoon, c.ID))
}

func TestTransitionEmitsLifecycleEvents(t *testing.T) {
	env := newTestEnv()
	c := scheduledCampaign(env, -time.Minute, 72*time.Hour)

	require.NoError(t, env.sm.Transition(context.Background(), c, domain.StatusActive,
		TransitionContext{Reason: ReasonAutoScheduled}))

	started := env.dispatcher.ofType(events.TypeCampaignTransitionStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "scheduled", started[0].FromStatus)
	assert.Equal(t, "active", started[0].ToStatus)

	changed := env.dispatcher.ofType(events.TypeCampaignStateChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, ReasonAutoScheduled, changed[0].Reason)
	assert.Nil(t, changed[0].ActorID)
}

func TestAutoTransition(t *testing.T) {
	t.Run("activates overdue scheduled campaign", func(t *testing.T) {
		env := newTestEnv()
		c := scheduledCampaign(env, -time.Minute, 72*time.Hour)

		assert.True(t, env.sm.AutoTransition(context.Background(), c))
		assert.Equal(t, domain.StatusActive, c.Status)
	})

	t.Run("expires overdue active campaign", func(t *testing.T) {
		env := newTestEnv()
		c := scheduledCampaign(env, -48*time.Hour, -time.Hour)
		c.Status = domain.StatusActive

		assert.True(t, env.sm.AutoTransition(context.Background(), c))
		assert.Equal(t, domain.StatusExpired, c.Status)
	})

	t.Run("expires overdue paused campaign", func(t *testing.T) {
		env := newTestEnv()
		c := scheduledCampaign(env, -48*time.Hour, -time.Hour)
		c.Status = domain.StatusPaused

		assert.True(t, env.sm.AutoTransition(context.Background(), c))
		assert.Equal(t, domain.StatusExpired, c.Status)
	})

	t.Run("leaves future campaigns alone", func(t *testing.T) {
		env := newTestEnv()
		c := scheduledCampaign(env, time.Hour, 72*time.Hour)

		assert.False(t, env.sm.AutoTransition(context.Background(), c))
		assert.Equal(t, domain.StatusScheduled, c.Status)
	})

	t.Run("expires overdue scheduled campaign without activating", func(t *testing.T) {
		env := newTestEnv()
		c := scheduledCampaign(env, -48*time.Hour, -time.Hour)

		assert.True(t, env.sm.AutoTransition(context.Background(), c))
		assert.Equal(t, domain.StatusExpired, c.Status)
	})

	t.Run("activates draft whose start timer came due", func(t *testing.T) {
		env := newTestEnv()
		c := scheduledCampaign(env, -time.Minute, 72*time.Hour)
		c.Status = domain.StatusDraft

		assert.True(t, env.sm.AutoTransition(context.Background(), c))
		assert.Equal(t, domain.StatusActive, c.Status)
	})

	t.Run("draft with a fully elapsed window stays put", func(t *testing.T) {
		env := newTestEnv()
		c := scheduledCampaign(env, -time.Hour, -time.Minute)
		c.Status = domain.StatusDraft

		assert.False(t, env.sm.AutoTransition(context.Background(), c))
		assert.Equal(t, domain.StatusDraft, c.Status)
	})
}
