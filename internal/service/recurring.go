package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Leganyst/clinic-scheduling/internal/calendar"
	"github.com/Leganyst/clinic-scheduling/internal/model"
	"github.com/Leganyst/clinic-scheduling/internal/observability"
	"github.com/Leganyst/clinic-scheduling/internal/repository"
)

// CreateSeriesInput: запрос на серию записей. Нужно задать RecurrenceCount или RecurrenceEndDate.
type CreateSeriesInput struct {
	CreateAppointmentInput
	Frequency         string
	RecurrenceCount   int
	RecurrenceEndDate *time.Time // дата включительно, в поясе провайдера
}

func (in CreateSeriesInput) validate() (calendar.Frequency, error) {
	if err := in.CreateAppointmentInput.validate(); err != nil {
		return "", err
	}
	freq, err := calendar.ParseFrequency(in.Frequency)
	if err != nil {
		return "", validation("frequency must be one of daily, weekly, biweekly, monthly, got %q", in.Frequency)
	}
	if in.RecurrenceCount < 0 {
		return "", validation("recurrence_count must not be negative")
	}
	if in.RecurrenceCount > calendar.MaxOccurrences {
		return "", validation("recurrence_count must not exceed %d", calendar.MaxOccurrences)
	}
	if in.RecurrenceCount == 0 && in.RecurrenceEndDate == nil {
		return "", validation("recurrence_count or recurrence_end_date is required")
	}
	return freq, nil
}

// CreateRecurringSeries создаёт серию целиком в одной транзакции: при конфликте
// любого повторения не сохраняется ничего.
func (s *Scheduler) CreateRecurringSeries(ctx context.Context, in CreateSeriesInput) (series []model.Appointment, err error) {
	ctx, span := observability.StartSpan(ctx, "scheduling.CreateRecurringSeries",
		attribute.String("provider_id", in.ProviderID.String()),
		attribute.String("frequency", in.Frequency),
	)
	defer func() { observability.EndSpan(span, err) }()

	freq, err := in.validate()
	if err != nil {
		return nil, err
	}
	if _, err := s.directory.FindActiveUserByID(ctx, in.PatientID); err != nil {
		return nil, storageErr(err, "patient "+in.PatientID.String())
	}
	_, loc, err := s.activeProvider(ctx, in.ProviderID)
	if err != nil {
		return nil, err
	}

	// повторения считаются в поясе провайдера, чтобы время приёма не плыло через DST
	rule := calendar.Recurrence{
		Frequency: freq,
		Start:     in.StartTime.In(loc),
		Count:     in.RecurrenceCount,
	}
	if in.RecurrenceEndDate != nil {
		until := calendar.DayBounds(*in.RecurrenceEndDate, loc).End.Add(-time.Nanosecond)
		rule.Until = &until
	}
	starts, err := calendar.ExpandRecurrence(rule)
	if err != nil {
		return nil, validation("%v", err)
	}
	if len(starts) == 0 {
		return nil, validation("recurrence produces no occurrences")
	}

	seriesID := uuid.New()
	drafts := make([]model.Appointment, 0, len(starts))
	for i, start := range starts {
		a := model.Appointment{
			ID:                  uuid.New(),
			PatientID:           in.PatientID,
			ProviderID:          in.ProviderID,
			StartTime:           start.UTC(),
			DurationMinutes:     in.DurationMinutes,
			Status:              model.AppointmentStatusScheduled,
			MeetingPhase:        model.MeetingPhasePreSession,
			Notes:               in.Notes,
			IsRecurring:         true,
			RecurringSeriesID:   &seriesID,
			RecurrenceFrequency: string(freq),
			RecurrencePosition:  i + 1,
		}
		if in.CreateMeetingLink {
			a.MeetingLink = s.meetingLink(ctx, a)
		}
		drafts = append(drafts, a)
	}

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		rows := make([]model.Appointment, len(drafts))
		copy(rows, drafts)
		for i := range rows {
			if err := s.ensureFree(ctx, tx, in.ProviderID, loc, rows[i].Range()); err != nil {
				if KindOf(err) != KindSlotUnavailable {
					return err
				}
				return slotUnavailable("occurrence %d at %s is unavailable",
					rows[i].RecurrencePosition, rows[i].StartTime.In(loc).Format(time.RFC3339))
			}
			if err := tx.Appointments().Create(ctx, &rows[i]); err != nil {
				return err
			}
		}
		series = rows
		return nil
	})
	if err != nil {
		err = storageErr(err, "create recurring series")
		if KindOf(err) == KindSlotUnavailable {
			s.metrics.SlotConflicts.Add(ctx, 1)
		}
		return nil, err
	}

	s.metrics.AppointmentsBooked.Add(ctx, int64(len(series)))
	s.invalidateSlots(ctx, in.ProviderID)
	first := series[0]
	s.record(ctx, model.EventTypeSeriesCreated, &first, "recurring series created", nil, map[string]any{
		"recurring_series_id": seriesID.String(),
		"frequency":           freq,
		"occurrences":         len(series),
	})
	s.dispatch(ctx, first, "confirmation", s.notifier.SendConfirmation)
	return series, nil
}

// GetRecurringSeries: участники серии по порядку.
func (s *Scheduler) GetRecurringSeries(ctx context.Context, seriesID uuid.UUID) ([]model.Appointment, error) {
	items, err := s.store.Appointments().ListBySeries(ctx, seriesID)
	if err != nil {
		return nil, storageErr(err, "list series")
	}
	if len(items) == 0 {
		return nil, notFound("recurring series %s not found", seriesID)
	}
	return items, nil
}

// CancelRecurringSeries отменяет участников серии начиная с позиции fromInstance (1, если <= 0).
// Завершённые, уже отменённые и идущие сейчас встречи не трогаются. Возвращает отменённые записи.
func (s *Scheduler) CancelRecurringSeries(ctx context.Context, seriesID uuid.UUID, reason string, fromInstance int) (cancelled []model.Appointment, err error) {
	ctx, span := observability.StartSpan(ctx, "scheduling.CancelRecurringSeries",
		attribute.String("recurring_series_id", seriesID.String()),
		attribute.Int("from_instance", fromInstance),
	)
	defer func() { observability.EndSpan(span, err) }()

	if fromInstance <= 0 {
		fromInstance = 1
	}

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		cancelled = nil
		members, err := tx.Appointments().ListBySeries(ctx, seriesID)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return notFound("recurring series %s not found", seriesID)
		}

		now := s.clock()
		for i := range members {
			m := &members[i]
			if m.RecurrencePosition < fromInstance || m.IsTerminal() || m.MeetingPhase == model.MeetingPhaseActiveSession {
				continue
			}
			cancelRow(m, now, reason)
			if err := tx.Appointments().Save(ctx, m); err != nil {
				return err
			}
			cancelled = append(cancelled, *m)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(err, "cancel recurring series")
	}
	if len(cancelled) == 0 {
		return []model.Appointment{}, nil
	}

	s.metrics.AppointmentsCancelled.Add(ctx, int64(len(cancelled)))
	s.invalidateSlots(ctx, cancelled[0].ProviderID)

	ids := make([]string, 0, len(cancelled))
	for _, a := range cancelled {
		ids = append(ids, a.ID.String())
		s.dispatch(ctx, a, "cancellation", func(ctx context.Context, a model.Appointment) error {
			return s.notifier.SendCancellation(ctx, a, reason)
		})
	}
	s.record(ctx, model.EventTypeSeriesCancelled, &cancelled[0], "recurring series cancelled", nil, map[string]any{
		"recurring_series_id": seriesID.String(),
		"from_instance":       fromInstance,
		"cancelled_ids":       ids,
		"reason":              reason,
	})
	return cancelled, nil
}

// SeriesUpdate: изменения одного повторения. nil-поля не меняются.
type SeriesUpdate struct {
	StartTime       *time.Time
	DurationMinutes *int
	Notes           *string
}

// SeriesUpdateResult: отредактированная запись и сдвинутые вслед за ней.
type SeriesUpdateResult struct {
	Updated model.Appointment   `json:"updated"`
	Shifted []model.Appointment `json:"shifted"`
}

// UpdateRecurringAppointment правит одно повторение и отвязывает его от серии.
// С updateAllFollowing последующие активные повторения сдвигаются на ту же дельту
// времени начала, сохраняя взаимные интервалы. Всё в одной транзакции.
func (s *Scheduler) UpdateRecurringAppointment(ctx context.Context, id uuid.UUID, upd SeriesUpdate, updateAllFollowing bool) (res *SeriesUpdateResult, err error) {
	ctx, span := observability.StartSpan(ctx, "scheduling.UpdateRecurringAppointment",
		attribute.String("appointment_id", id.String()),
		attribute.Bool("update_all_following", updateAllFollowing),
	)
	defer func() { observability.EndSpan(span, err) }()

	if upd.StartTime != nil && upd.StartTime.IsZero() {
		return nil, validation("start_time must not be empty")
	}
	if upd.DurationMinutes != nil {
		if err := validateDuration(*upd.DurationMinutes); err != nil {
			return nil, err
		}
	}

	var (
		before   model.Appointment
		seriesID uuid.UUID
		oldStart = map[uuid.UUID]time.Time{}
	)
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		res = nil
		row, err := tx.Appointments().GetByID(ctx, id)
		if err != nil {
			return storageErr(err, "appointment "+id.String())
		}
		if !row.IsRecurring || row.RecurringSeriesID == nil {
			return validation("appointment %s is not part of a recurring series", id)
		}
		if err := ensureReschedulable(row); err != nil {
			return err
		}
		before = *row
		seriesID = *row.RecurringSeriesID

		loc, err := providerLocation(ctx, tx, row.ProviderID)
		if err != nil {
			return err
		}

		delta := time.Duration(0)
		if upd.StartTime != nil {
			delta = upd.StartTime.UTC().Sub(row.StartTime)
		}

		var followers []model.Appointment
		if updateAllFollowing && delta != 0 {
			members, err := tx.Appointments().ListBySeries(ctx, seriesID)
			if err != nil {
				return err
			}
			for _, m := range members {
				if m.RecurrencePosition <= row.RecurrencePosition || m.IsTerminal() || m.MeetingPhase != model.MeetingPhasePreSession {
					continue
				}
				followers = append(followers, m)
			}
		}

		// применяем изменения в памяти
		moved := make([]*model.Appointment, 0, len(followers)+1)
		exclude := make([]uuid.UUID, 0, len(followers)+1)
		oldStart[row.ID] = row.StartTime
		row.StartTime = row.StartTime.Add(delta)
		if upd.DurationMinutes != nil {
			row.DurationMinutes = *upd.DurationMinutes
		}
		if upd.Notes != nil {
			row.Notes = *upd.Notes
		}
		row.IsRecurring = false
		row.RecurringSeriesID = nil
		row.RecurrenceFrequency = ""
		row.RecurrencePosition = 0
		moved = append(moved, row)
		exclude = append(exclude, row.ID)
		for i := range followers {
			f := &followers[i]
			oldStart[f.ID] = f.StartTime
			f.StartTime = f.StartTime.Add(delta)
			moved = append(moved, f)
			exclude = append(exclude, f.ID)
		}

		// новые окна не должны пересекаться ни между собой, ни с остальными записями
		windows := make([]calendar.TimeRange, 0, len(moved))
		for _, m := range moved {
			w := m.Range()
			if has, _ := calendar.HasOverlap(w, windows); has {
				return slotUnavailable("shifted occurrences overlap at %s", w.Start.In(loc).Format(time.RFC3339))
			}
			windows = append(windows, w)
			if err := s.ensureFree(ctx, tx, m.ProviderID, loc, w, exclude...); err != nil {
				return err
			}
		}

		// порядок записи: сдвиг вперёд начинаем с последних, назад с первых,
		// чтобы уникальный индекс (provider_id, start_time) не срабатывал на промежуточных состояниях
		sort.Slice(moved, func(i, j int) bool {
			if delta > 0 {
				return moved[i].StartTime.After(moved[j].StartTime)
			}
			return moved[i].StartTime.Before(moved[j].StartTime)
		})
		for _, m := range moved {
			if err := tx.Appointments().Save(ctx, m); err != nil {
				return err
			}
		}

		res = &SeriesUpdateResult{Updated: *row, Shifted: followers}
		if res.Shifted == nil {
			res.Shifted = []model.Appointment{}
		}
		return nil
	})
	if err != nil {
		err = storageErr(err, "update recurring appointment")
		if KindOf(err) == KindSlotUnavailable {
			s.metrics.SlotConflicts.Add(ctx, 1)
		}
		return nil, err
	}

	s.invalidateSlots(ctx, res.Updated.ProviderID)
	s.record(ctx, model.EventTypeSeriesUpdated, &res.Updated, "recurring appointment updated", snapshot(before), map[string]any{
		"appointment":          snapshot(res.Updated),
		"recurring_series_id":  seriesID.String(),
		"update_all_following": updateAllFollowing,
		"shifted":              len(res.Shifted),
	})

	notify := append([]model.Appointment{res.Updated}, res.Shifted...)
	for _, a := range notify {
		prev := oldStart[a.ID]
		if prev.Equal(a.StartTime) {
			continue
		}
		s.dispatch(ctx, a, "rescheduled", func(ctx context.Context, a model.Appointment) error {
			return s.notifier.SendRescheduled(ctx, a, prev)
		})
	}
	return res, nil
}
