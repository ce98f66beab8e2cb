package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leganyst/clinic-scheduling/internal/model"
)

func TestSession_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.confirmed(t, monday.Add(10*time.Hour), 30)

	f.now = monday.Add(10*time.Hour + 2*time.Minute)
	started, err := f.sched.StartSession(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingPhaseActiveSession, started.MeetingPhase)
	assert.Equal(t, model.AppointmentStatusConfirmed, started.Status)
	require.NotNil(t, started.MeetingStartedAt)
	assert.True(t, started.MeetingStartedAt.Equal(f.now))
	assert.Equal(t, started.MeetingPhase, started.DerivedPhase())

	f.now = monday.Add(10*time.Hour + 35*time.Minute)
	ended, err := f.sched.EndSession(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingPhasePostSession, ended.MeetingPhase)
	assert.Equal(t, model.AppointmentStatusCompleted, ended.Status)
	require.NotNil(t, ended.MeetingEndedAt)
	assert.Equal(t, ended.MeetingPhase, ended.DerivedPhase())
	assert.True(t, ended.StatusPhaseConsistent())

	assert.ElementsMatch(t, []model.EventType{
		model.EventTypeAppointmentCreated,
		model.EventTypeAppointmentConfirmed,
		model.EventTypeSessionStarted,
		model.EventTypeSessionEnded,
	}, f.events(t, a.ID))
}

func TestSession_InvalidTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// scheduled без подтверждения начать нельзя
	pending := f.book(t, monday.Add(9*time.Hour), 30)
	_, err := f.sched.StartSession(ctx, pending.ID)
	requireKind(t, err, KindInvalidPhaseTransition)

	a := f.confirmed(t, monday.Add(10*time.Hour), 30)
	_, err = f.sched.EndSession(ctx, a.ID)
	requireKind(t, err, KindInvalidPhaseTransition)

	_, err = f.sched.StartSession(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.sched.StartSession(ctx, a.ID)
	requireKind(t, err, KindInvalidPhaseTransition)

	_, err = f.sched.EndSession(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.sched.EndSession(ctx, a.ID)
	requireKind(t, err, KindInvalidPhaseTransition)
	_, err = f.sched.CancelSession(ctx, a.ID, "")
	requireKind(t, err, KindInvalidPhaseTransition)

	_, err = f.sched.StartSession(ctx, uuid.New())
	requireKind(t, err, KindNotFound)

	// неудачные переходы не оставляют следов в аудите
	assert.ElementsMatch(t, []model.EventType{model.EventTypeAppointmentCreated}, f.events(t, pending.ID))
}

func TestCancelSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := f.confirmed(t, monday.Add(10*time.Hour), 30)
	cancelled, err := f.sched.CancelSession(ctx, before.ID, "врач заболел")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	assert.Equal(t, model.MeetingPhasePostSession, cancelled.MeetingPhase)
	assert.True(t, cancelled.WasCancelledFromSession)
	assert.Equal(t, "врач заболел", cancelled.CancellationReason)

	active := f.confirmed(t, monday.Add(11*time.Hour), 30)
	_, err = f.sched.StartSession(ctx, active.ID)
	require.NoError(t, err)
	f.now = monday.Add(11*time.Hour + 10*time.Minute)
	cancelled, err = f.sched.CancelSession(ctx, active.ID, "обрыв связи")
	require.NoError(t, err)
	require.NotNil(t, cancelled.MeetingStartedAt)
	require.NotNil(t, cancelled.MeetingEndedAt)
	assert.Equal(t, model.MeetingPhasePostSession, cancelled.DerivedPhase())

	// неподтверждённую запись отменяют обычной отменой
	pending := f.book(t, monday.Add(12*time.Hour), 30)
	_, err = f.sched.CancelSession(ctx, pending.ID, "")
	requireKind(t, err, KindInvalidPhaseTransition)

	f.sched.Wait()
	var cancellations int
	for _, k := range f.notifier.kinds() {
		if k == "cancellation" {
			cancellations++
		}
	}
	assert.Equal(t, 2, cancellations)

	// время освободилось
	f.book(t, monday.Add(10*time.Hour), 30)
}

func TestDerivedPhaseMatchesStored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	scheduled := f.book(t, monday.Add(9*time.Hour), 30)
	confirmed := f.confirmed(t, monday.Add(10*time.Hour), 30)
	active := f.confirmed(t, monday.Add(11*time.Hour), 30)
	_, err := f.sched.StartSession(ctx, active.ID)
	require.NoError(t, err)
	done := f.confirmed(t, monday.Add(12*time.Hour), 30)
	_, err = f.sched.StartSession(ctx, done.ID)
	require.NoError(t, err)
	_, err = f.sched.EndSession(ctx, done.ID)
	require.NoError(t, err)
	cancelled := f.book(t, monday.Add(13*time.Hour), 30)
	_, err = f.sched.CancelAppointment(ctx, cancelled.ID, "")
	require.NoError(t, err)

	ids := []uuid.UUID{scheduled.ID, confirmed.ID, active.ID, done.ID, cancelled.ID}
	// до окон, внутри окон 9:00 и 10:00 и после всех окон
	clocks := []time.Time{f.now, monday.Add(9*time.Hour + 10*time.Minute), monday.Add(10*time.Hour + 10*time.Minute), monday.Add(20 * time.Hour)}
	for _, now := range clocks {
		f.now = now
		for _, id := range ids {
			a, err := f.sched.GetAppointment(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, a.MeetingPhase, a.DerivedPhase(), "appointment at %s, now %s", a.StartTime, now)
			assert.True(t, a.StatusPhaseConsistent(), "appointment at %s, now %s", a.StartTime, now)
		}
	}

	// неоплаченная запись в своём окне не становится активной
	got, err := f.sched.GetAppointment(ctx, scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingPhasePreSession, got.DerivedPhase())

	// встречу, которую не начали вовремя, можно начать позже, фаза остаётся согласованной
	f.now = monday.Add(20 * time.Hour)
	late, err := f.sched.StartSession(ctx, confirmed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingPhaseActiveSession, late.MeetingPhase)
	assert.Equal(t, late.MeetingPhase, late.DerivedPhase())
}

func TestAppointmentJSONCarriesDerivedPhase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.confirmed(t, monday.Add(10*time.Hour), 30)
	_, err := f.sched.StartSession(ctx, a.ID)
	require.NoError(t, err)

	got, err := f.sched.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	raw, err := json.Marshal(got)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "active_session", fields["meeting_phase"])
	assert.Equal(t, "active_session", fields["derived_phase"])
	assert.Equal(t, a.ID.String(), fields["id"])
}

func TestExpireStaleSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := f.confirmed(t, monday.Add(9*time.Hour), 30)
	fresh := f.confirmed(t, monday.Add(10*time.Hour), 30)
	for _, id := range []uuid.UUID{stale.ID, fresh.ID} {
		_, err := f.sched.StartSession(ctx, id)
		require.NoError(t, err)
	}

	// 9:00–9:30 + 15 минут grace истекли к 10:00, 10:00–10:30 ещё нет
	now := monday.Add(10 * time.Hour)
	ended, err := f.sched.ExpireStaleSessions(ctx, now, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, ended)

	got, err := f.sched.GetAppointment(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, got.Status)
	assert.Equal(t, model.MeetingPhasePostSession, got.MeetingPhase)
	require.NotNil(t, got.MeetingEndedAt)
	assert.True(t, got.MeetingEndedAt.Equal(now))
	assert.Contains(t, f.events(t, stale.ID), model.EventTypeSessionAutoEnded)

	got, err = f.sched.GetAppointment(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingPhaseActiveSession, got.MeetingPhase)

	ended, err = f.sched.ExpireStaleSessions(ctx, now, 15*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, ended)

	_, err = f.sched.ExpireStaleSessions(ctx, now, -time.Minute)
	requireKind(t, err, KindValidation)
}
