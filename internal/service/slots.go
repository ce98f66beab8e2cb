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

// DaySlots: свободные окна на одну дату.
type DaySlots struct {
	Date  string               `json:"date"`
	Slots []calendar.TimeRange `json:"slots"`
}

// GetAvailableSlots возвращает свободные окна провайдера на календарную дату date.
// Берутся год/месяц/день date, сутки считаются в поясе провайдера.
// При durationMinutes <= 0 берётся длительность по умолчанию из правила доступности.
func (s *Scheduler) GetAvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time, durationMinutes int) (slots []calendar.TimeRange, err error) {
	ctx, span := observability.StartSpan(ctx, "scheduling.GetAvailableSlots",
		attribute.String("provider_id", providerID.String()),
		attribute.Int("duration_minutes", durationMinutes),
	)
	defer func() { observability.EndSpan(span, err) }()

	provider, loc, err := s.activeProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return s.slotsForDay(ctx, provider, loc, date, durationMinutes)
}

// GetWeeklyAvailability делает то же для 7 дней подряд, начиная со startDate.
func (s *Scheduler) GetWeeklyAvailability(ctx context.Context, providerID uuid.UUID, startDate time.Time, durationMinutes int) (week []DaySlots, err error) {
	ctx, span := observability.StartSpan(ctx, "scheduling.GetWeeklyAvailability",
		attribute.String("provider_id", providerID.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	provider, loc, err := s.activeProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	week = make([]DaySlots, 0, 7)
	for i := 0; i < 7; i++ {
		day := startDate.AddDate(0, 0, i)
		slots, err := s.slotsForDay(ctx, provider, loc, day, durationMinutes)
		if err != nil {
			return nil, err
		}
		week = append(week, DaySlots{Date: day.Format(calendar.DateLayout), Slots: slots})
	}
	return week, nil
}

func (s *Scheduler) activeProvider(ctx context.Context, providerID uuid.UUID) (*model.Provider, *time.Location, error) {
	if providerID == uuid.Nil {
		return nil, nil, validation("provider_id is required")
	}
	provider, err := s.directory.FindActiveProviderByID(ctx, providerID)
	if err != nil {
		return nil, nil, storageErr(err, "provider "+providerID.String())
	}
	loc, err := calendar.ResolveLocation(provider.TimeZone)
	if err != nil {
		return nil, nil, &Error{Kind: KindInternal, Message: "provider time zone", Err: err}
	}
	return provider, loc, nil
}

func (s *Scheduler) slotsForDay(ctx context.Context, provider *model.Provider, loc *time.Location, date time.Time, durationMinutes int) ([]calendar.TimeRange, error) {
	if durationMinutes > MaxDurationMinutes {
		return nil, validation("duration_minutes must not exceed %d, got %d", MaxDurationMinutes, durationMinutes)
	}

	day := calendar.AtClock(date, 0, loc)
	key := day.Format(calendar.DateLayout)

	if cached, ok, err := s.cache.Get(ctx, provider.ID, key, durationMinutes); err == nil && ok {
		s.metrics.CacheHits.Add(ctx, 1)
		return cached, nil
	} else if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("provider_id", provider.ID.String()).Msg("slot cache read failed")
	}
	s.metrics.CacheMisses.Add(ctx, 1)

	rules, err := s.store.AvailabilityRules().ListForWeekday(ctx, provider.ID, day.Weekday())
	if err != nil {
		return nil, storageErr(err, "list availability rules")
	}
	if len(rules) == 0 {
		return []calendar.TimeRange{}, nil
	}

	var candidates []calendar.TimeRange
	for _, rule := range rules {
		dur := durationMinutes
		if dur <= 0 {
			dur = rule.DefaultDurationMinutes
		}
		if err := validateDuration(dur); err != nil {
			return nil, err
		}
		window := calendar.TimeRange{
			Start: calendar.AtClock(day, time.Duration(rule.StartTime), loc),
			End:   calendar.AtClock(day, time.Duration(rule.EndTime), loc),
		}
		split, err := calendar.SplitToTimeSlots(window, time.Duration(dur)*time.Minute)
		if err != nil {
			return nil, validation("%v", err)
		}
		candidates = append(candidates, split...)
	}

	bounds := calendar.DayBounds(day, loc)
	busy, err := s.busyRanges(ctx, s.store, provider.ID, bounds)
	if err != nil {
		return nil, err
	}
	blocked, err := s.blockedRanges(ctx, s.store, provider.ID, loc, bounds)
	if err != nil {
		return nil, err
	}

	free := calendar.SubtractBusy(candidates, busy)
	free = calendar.SubtractBusy(free, blocked)
	free = calendar.SortAndDedup(free)

	if err := s.cache.Set(ctx, provider.ID, key, durationMinutes, free); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("provider_id", provider.ID.String()).Msg("slot cache write failed")
	}
	return free, nil
}

// busyRanges: интервалы неотменённых записей провайдера, пересекающих window.
func (s *Scheduler) busyRanges(ctx context.Context, store repository.Store, providerID uuid.UUID, window calendar.TimeRange, exclude ...uuid.UUID) ([]calendar.TimeRange, error) {
	appts, err := store.Appointments().ListBusy(ctx, providerID, window.Start, window.End, exclude...)
	if err != nil {
		return nil, storageErr(err, "list appointments")
	}
	out := make([]calendar.TimeRange, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.Range())
	}
	return out, nil
}

// blockedRanges: интервалы блокировок провайдера на датах, которых касается window (в поясе loc).
func (s *Scheduler) blockedRanges(ctx context.Context, store repository.Store, providerID uuid.UUID, loc *time.Location, window calendar.TimeRange) ([]calendar.TimeRange, error) {
	from := window.Start.In(loc)
	// конец полуоткрыт: окно до 00:00 следующего дня его не задевает
	to := window.End.Add(-time.Nanosecond).In(loc)

	blocks, err := store.BlockedSlots().ListByRange(ctx, providerID, from, to)
	if err != nil {
		return nil, storageErr(err, "list blocked slots")
	}
	out := make([]calendar.TimeRange, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, blockedRange(b, loc))
	}
	return out, nil
}

func blockedRange(b model.BlockedSlot, loc *time.Location) calendar.TimeRange {
	date := b.CalendarDate()
	if b.IsFullDay() {
		return calendar.DayBounds(date, loc)
	}
	return calendar.TimeRange{
		Start: calendar.AtClock(date, time.Duration(*b.StartTime), loc),
		End:   calendar.AtClock(date, time.Duration(*b.EndTime), loc),
	}
}
