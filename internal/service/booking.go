package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Leganyst/clinic-scheduling/internal/calendar"
	"github.com/Leganyst/clinic-scheduling/internal/model"
	"github.com/Leganyst/clinic-scheduling/internal/observability"
	"github.com/Leganyst/clinic-scheduling/internal/repository"
)

// CreateAppointmentInput: запрос на запись к провайдеру.
type CreateAppointmentInput struct {
	PatientID         uuid.UUID
	ProviderID        uuid.UUID
	StartTime         time.Time
	DurationMinutes   int
	Notes             string
	CreateMeetingLink bool
}

func (in CreateAppointmentInput) validate() error {
	if in.PatientID == uuid.Nil {
		return validation("patient_id is required")
	}
	if in.ProviderID == uuid.Nil {
		return validation("provider_id is required")
	}
	if in.StartTime.IsZero() {
		return validation("start_time is required")
	}
	return validateDuration(in.DurationMinutes)
}

// AppointmentFilter: фильтр списка записей.
type AppointmentFilter = repository.AppointmentFilter

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// CreateAppointment бронирует окно [start, start+duration) у провайдера.
// Проверка пересечений и вставка идут в одной SERIALIZABLE-транзакции.
func (s *Scheduler) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (appt *model.Appointment, err error) {
	ctx, span := observability.StartSpan(ctx, "scheduling.CreateAppointment",
		attribute.String("provider_id", in.ProviderID.String()),
		attribute.String("patient_id", in.PatientID.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.directory.FindActiveUserByID(ctx, in.PatientID); err != nil {
		return nil, storageErr(err, "patient "+in.PatientID.String())
	}
	_, loc, err := s.activeProvider(ctx, in.ProviderID)
	if err != nil {
		return nil, err
	}

	draft := model.Appointment{
		ID:              uuid.New(),
		PatientID:       in.PatientID,
		ProviderID:      in.ProviderID,
		StartTime:       in.StartTime.UTC(),
		DurationMinutes: in.DurationMinutes,
		Status:          model.AppointmentStatusScheduled,
		MeetingPhase:    model.MeetingPhasePreSession,
		Notes:           in.Notes,
	}
	if in.CreateMeetingLink {
		draft.MeetingLink = s.meetingLink(ctx, draft)
	}

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		// повторная попытка транзакции начинает с чистой копии
		row := draft
		if err := s.ensureFree(ctx, tx, in.ProviderID, loc, row.Range()); err != nil {
			return err
		}
		if err := tx.Appointments().Create(ctx, &row); err != nil {
			return err
		}
		appt = &row
		return nil
	})
	if err != nil {
		err = storageErr(err, "create appointment")
		if KindOf(err) == KindSlotUnavailable {
			s.metrics.SlotConflicts.Add(ctx, 1)
		}
		return nil, err
	}

	s.metrics.AppointmentsBooked.Add(ctx, 1)
	s.invalidateSlots(ctx, appt.ProviderID)
	s.record(ctx, model.EventTypeAppointmentCreated, appt, "appointment created", nil, snapshot(*appt))
	s.dispatch(ctx, *appt, "confirmation", s.notifier.SendConfirmation)

	observability.LoggerFromContext(ctx).Info().
		Str("appointment_id", appt.ID.String()).
		Str("provider_id", appt.ProviderID.String()).
		Time("start_time", appt.StartTime).
		Msg("appointment created")
	return appt, nil
}

// ensureFree проверяет, что окно не пересекает неотменённые записи и блокировки провайдера.
func (s *Scheduler) ensureFree(ctx context.Context, tx repository.Store, providerID uuid.UUID, loc *time.Location, window calendar.TimeRange, exclude ...uuid.UUID) error {
	busy, err := s.busyRanges(ctx, tx, providerID, window, exclude...)
	if err != nil {
		return err
	}
	if len(busy) > 0 {
		return slotUnavailable("provider already has an appointment at %s", window.Start.In(loc).Format(time.RFC3339))
	}

	blocked, err := s.blockedRanges(ctx, tx, providerID, loc, window)
	if err != nil {
		return err
	}
	if has, _ := calendar.HasOverlap(window, blocked); has {
		return slotUnavailable("provider is unavailable at %s", window.Start.In(loc).Format(time.RFC3339))
	}
	return nil
}

func (s *Scheduler) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.store.Appointments().GetByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, "appointment "+id.String())
	}
	return appt, nil
}

func (s *Scheduler) ListAppointments(ctx context.Context, f AppointmentFilter) ([]model.Appointment, int64, error) {
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return nil, 0, validation("to must be after from")
	}
	if f.Offset < 0 {
		return nil, 0, validation("offset must not be negative")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}

	items, total, err := s.store.Appointments().List(ctx, f)
	if err != nil {
		return nil, 0, storageErr(err, "list appointments")
	}
	return items, total, nil
}

// RescheduleAppointment переносит запись на новое время, сохраняя её id.
// newDurationMinutes <= 0 оставляет прежнюю длительность.
func (s *Scheduler) RescheduleAppointment(ctx context.Context, id uuid.UUID, newStart time.Time, newDurationMinutes int) (appt *model.Appointment, err error) {
	ctx, span := observability.StartSpan(ctx, "scheduling.RescheduleAppointment",
		attribute.String("appointment_id", id.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	if newStart.IsZero() {
		return nil, validation("start_time is required")
	}
	if newDurationMinutes != 0 {
		if err := validateDuration(newDurationMinutes); err != nil {
			return nil, err
		}
	}

	var before model.Appointment
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		row, err := tx.Appointments().GetByID(ctx, id)
		if err != nil {
			return storageErr(err, "appointment "+id.String())
		}
		before = *row

		if err := ensureReschedulable(row); err != nil {
			return err
		}
		loc, err := providerLocation(ctx, tx, row.ProviderID)
		if err != nil {
			return err
		}

		row.StartTime = newStart.UTC()
		if newDurationMinutes > 0 {
			row.DurationMinutes = newDurationMinutes
		}
		if err := s.ensureFree(ctx, tx, row.ProviderID, loc, row.Range(), row.ID); err != nil {
			return err
		}
		if err := tx.Appointments().Save(ctx, row); err != nil {
			return err
		}
		appt = row
		return nil
	})
	if err != nil {
		err = storageErr(err, "reschedule appointment")
		if KindOf(err) == KindSlotUnavailable {
			s.metrics.SlotConflicts.Add(ctx, 1)
		}
		return nil, err
	}

	s.invalidateSlots(ctx, appt.ProviderID)
	s.record(ctx, model.EventTypeAppointmentRescheduled, appt, "appointment rescheduled", snapshot(before), snapshot(*appt))
	oldStart := before.StartTime
	s.dispatch(ctx, *appt, "rescheduled", func(ctx context.Context, a model.Appointment) error {
		return s.notifier.SendRescheduled(ctx, a, oldStart)
	})
	return appt, nil
}

// ensureReschedulable: переносить можно только будущую, не начатую встречу.
func ensureReschedulable(a *model.Appointment) error {
	if a.Status != model.AppointmentStatusScheduled && a.Status != model.AppointmentStatusConfirmed {
		return invalidTransition("cannot reschedule appointment in status %s", a.Status)
	}
	if a.MeetingPhase != model.MeetingPhasePreSession {
		return invalidTransition("cannot reschedule appointment in phase %s", a.MeetingPhase)
	}
	return nil
}

func providerLocation(ctx context.Context, tx repository.Store, providerID uuid.UUID) (*time.Location, error) {
	provider, err := tx.Providers().GetByID(ctx, providerID)
	if err != nil {
		return nil, storageErr(err, "provider "+providerID.String())
	}
	loc, err := calendar.ResolveLocation(provider.TimeZone)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Message: "provider time zone", Err: err}
	}
	return loc, nil
}

// CancelAppointment отменяет запись. Повторная отмена ничего не меняет и не считается ошибкой.
// Идущую сессию отменяют через CancelSession.
func (s *Scheduler) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (appt *model.Appointment, err error) {
	ctx, span := observability.StartSpan(ctx, "scheduling.CancelAppointment",
		attribute.String("appointment_id", id.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	var (
		before  model.Appointment
		changed bool
	)
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		changed = false
		row, err := tx.Appointments().GetByID(ctx, id)
		if err != nil {
			return storageErr(err, "appointment "+id.String())
		}
		before = *row
		appt = row

		switch {
		case row.Status == model.AppointmentStatusCancelled:
			return nil
		case row.Status == model.AppointmentStatusCompleted:
			return invalidTransition("cannot cancel a completed appointment")
		case row.MeetingPhase == model.MeetingPhaseActiveSession:
			return invalidTransition("appointment is in an active session, cancel the session instead")
		}

		cancelRow(row, s.clock(), reason)
		changed = true
		return tx.Appointments().Save(ctx, row)
	})
	if err != nil {
		return nil, storageErr(err, "cancel appointment")
	}
	if !changed {
		return appt, nil
	}

	s.metrics.AppointmentsCancelled.Add(ctx, 1)
	s.invalidateSlots(ctx, appt.ProviderID)
	s.record(ctx, model.EventTypeAppointmentCancelled, appt, "appointment cancelled", snapshot(before), snapshot(*appt))
	s.dispatch(ctx, *appt, "cancellation", func(ctx context.Context, a model.Appointment) error {
		return s.notifier.SendCancellation(ctx, a, reason)
	})
	return appt, nil
}

func cancelRow(a *model.Appointment, now time.Time, reason string) {
	a.Status = model.AppointmentStatusCancelled
	a.CancelledAt = &now
	a.CancellationReason = reason
	a.MeetingPhase = model.MeetingPhasePostSession
}

// ConfirmAppointment принимает сигнал об оплате: scheduled → confirmed.
func (s *Scheduler) ConfirmAppointment(ctx context.Context, id uuid.UUID) (appt *model.Appointment, err error) {
	ctx, span := observability.StartSpan(ctx, "scheduling.ConfirmAppointment",
		attribute.String("appointment_id", id.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	var (
		before  model.Appointment
		changed bool
	)
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		changed = false
		row, err := tx.Appointments().GetByID(ctx, id)
		if err != nil {
			return storageErr(err, "appointment "+id.String())
		}
		before = *row
		appt = row

		switch row.Status {
		case model.AppointmentStatusConfirmed:
			return nil
		case model.AppointmentStatusScheduled:
		default:
			return invalidTransition("cannot confirm appointment in status %s", row.Status)
		}

		now := s.clock()
		row.Status = model.AppointmentStatusConfirmed
		row.ConfirmedAt = &now
		changed = true
		return tx.Appointments().Save(ctx, row)
	})
	if err != nil {
		return nil, storageErr(err, "confirm appointment")
	}
	if !changed {
		return appt, nil
	}

	s.record(ctx, model.EventTypeAppointmentConfirmed, appt, "appointment confirmed", snapshot(before), snapshot(*appt))
	s.dispatch(ctx, *appt, "confirmation", s.notifier.SendConfirmation)
	return appt, nil
}
