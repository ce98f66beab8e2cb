package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Leganyst/clinic-scheduling/internal/model"
	"github.com/Leganyst/clinic-scheduling/internal/observability"
	"github.com/Leganyst/clinic-scheduling/internal/repository"
)

// transition описывает один переход фазы встречи: проверку и изменение записи.
type transition struct {
	name   string
	action model.EventType
	check  func(a *model.Appointment) error
	apply  func(a *model.Appointment, now time.Time)
}

var (
	startSession = transition{
		name:   "start",
		action: model.EventTypeSessionStarted,
		check: func(a *model.Appointment) error {
			if a.Status != model.AppointmentStatusConfirmed || a.MeetingPhase != model.MeetingPhasePreSession {
				return invalidTransition("cannot start session: status %s, phase %s", a.Status, a.MeetingPhase)
			}
			return nil
		},
		apply: func(a *model.Appointment, now time.Time) {
			a.MeetingPhase = model.MeetingPhaseActiveSession
			a.MeetingStartedAt = &now
		},
	}

	endSession = transition{
		name:   "end",
		action: model.EventTypeSessionEnded,
		check: func(a *model.Appointment) error {
			if a.MeetingPhase != model.MeetingPhaseActiveSession {
				return invalidTransition("cannot end session: phase %s", a.MeetingPhase)
			}
			return nil
		},
		apply: func(a *model.Appointment, now time.Time) {
			a.MeetingPhase = model.MeetingPhasePostSession
			a.MeetingEndedAt = &now
			a.Status = model.AppointmentStatusCompleted
		},
	}
)

func cancelSession(reason string) transition {
	return transition{
		name:   "cancel",
		action: model.EventTypeSessionCancelled,
		check: func(a *model.Appointment) error {
			if a.Status != model.AppointmentStatusConfirmed || a.MeetingPhase == model.MeetingPhasePostSession {
				return invalidTransition("cannot cancel session: status %s, phase %s", a.Status, a.MeetingPhase)
			}
			return nil
		},
		apply: func(a *model.Appointment, now time.Time) {
			cancelRow(a, now, reason)
			a.MeetingEndedAt = &now
			a.WasCancelledFromSession = true
		},
	}
}

// StartSession: confirmed + pre_session → active_session.
func (s *Scheduler) StartSession(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, id, startSession)
}

// EndSession: active_session → post_session, запись становится completed.
func (s *Scheduler) EndSession(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, id, endSession)
}

// CancelSession отменяет подтверждённую запись до или во время встречи.
func (s *Scheduler) CancelSession(ctx context.Context, id uuid.UUID, reason string) (*model.Appointment, error) {
	appt, err := s.transition(ctx, id, cancelSession(reason))
	if err != nil {
		return nil, err
	}
	s.metrics.AppointmentsCancelled.Add(ctx, 1)
	s.invalidateSlots(ctx, appt.ProviderID)
	s.dispatch(ctx, *appt, "cancellation", func(ctx context.Context, a model.Appointment) error {
		return s.notifier.SendCancellation(ctx, a, reason)
	})
	return appt, nil
}

func (s *Scheduler) transition(ctx context.Context, id uuid.UUID, t transition) (appt *model.Appointment, err error) {
	ctx, span := observability.StartSpan(ctx, "scheduling.Session."+t.name,
		attribute.String("appointment_id", id.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	var before model.Appointment
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		row, err := tx.Appointments().GetByID(ctx, id)
		if err != nil {
			return storageErr(err, "appointment "+id.String())
		}
		if err := t.check(row); err != nil {
			return err
		}
		before = *row
		t.apply(row, s.clock())
		if err := tx.Appointments().Save(ctx, row); err != nil {
			return err
		}
		appt = row
		return nil
	})
	if err != nil {
		return nil, storageErr(err, "session "+t.name)
	}

	s.metrics.PhaseTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("transition", t.name)))
	s.record(ctx, t.action, appt, "session "+t.name, snapshot(before), snapshot(*appt))
	return appt, nil
}

// ExpireStaleSessions завершает встречи, которые висят в active_session дольше,
// чем плановое окончание + grace. Каждая запись завершается в своей транзакции.
func (s *Scheduler) ExpireStaleSessions(ctx context.Context, now time.Time, grace time.Duration) (ended int, err error) {
	ctx, span := observability.StartSpan(ctx, "scheduling.ExpireStaleSessions")
	defer func() { observability.EndSpan(span, err) }()

	if grace < 0 {
		return 0, validation("grace must not be negative")
	}

	stale, err := s.store.Appointments().ListActiveSessionsEndedBefore(ctx, now.Add(-grace))
	if err != nil {
		return 0, storageErr(err, "list stale sessions")
	}

	log := observability.LoggerFromContext(ctx)
	for _, a := range stale {
		var (
			before model.Appointment
			after  *model.Appointment
		)
		err := s.store.InTx(ctx, func(tx repository.Store) error {
			after = nil
			row, err := tx.Appointments().GetByID(ctx, a.ID)
			if err != nil {
				return err
			}
			// за время между выборкой и транзакцией сессию могли закрыть вручную
			if row.MeetingPhase != model.MeetingPhaseActiveSession {
				return nil
			}
			before = *row
			endSession.apply(row, now.UTC())
			if err := tx.Appointments().Save(ctx, row); err != nil {
				return err
			}
			after = row
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("auto end session failed")
			continue
		}
		if after == nil {
			continue
		}

		ended++
		s.metrics.PhaseTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("transition", "auto_end")))
		s.record(ctx, model.EventTypeSessionAutoEnded, after, "session auto-ended after grace period", snapshot(before), snapshot(*after))
	}

	if ended > 0 {
		log.Info().Int("ended", ended).Msg("stale sessions expired")
	}
	return ended, nil
}
