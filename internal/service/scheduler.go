package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/clinic-scheduling/internal/model"
	"github.com/Leganyst/clinic-scheduling/internal/observability"
	"github.com/Leganyst/clinic-scheduling/internal/repository"
)

const (
	// MaxDurationMinutes: верхняя граница длительности одного приёма.
	MaxDurationMinutes = 480

	notifyTimeout = 10 * time.Second
)

// Scheduler держит слоты, записи, серии, фазы встречи и доступность провайдеров.
type Scheduler struct {
	store     repository.Store
	directory Directory
	notifier  Notifier
	audit     AuditSink
	meetings  MeetingLinkProvider
	cache     SlotCache
	metrics   *observability.Metrics

	meetingBaseURL string
	now            func() time.Time

	// фоновые рассылки; Wait дожидается их при остановке
	bg sync.WaitGroup
}

type Option func(*Scheduler)

func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

func WithAuditSink(a AuditSink) Option {
	return func(s *Scheduler) { s.audit = a }
}

func WithMeetingLinkProvider(p MeetingLinkProvider) Option {
	return func(s *Scheduler) { s.meetings = p }
}

func WithSlotCache(c SlotCache) Option {
	return func(s *Scheduler) { s.cache = c }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func WithMeetingBaseURL(u string) Option {
	return func(s *Scheduler) { s.meetingBaseURL = strings.TrimRight(u, "/") }
}

// WithClock подменяет источник текущего времени (тесты, sweeper).
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func NewScheduler(store repository.Store, directory Directory, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:          store,
		directory:      directory,
		notifier:       noopNotifier{},
		audit:          noopAudit{},
		cache:          noopSlotCache{},
		metrics:        observability.NoopMetrics(),
		meetingBaseURL: "https://meet.clinic.local/room",
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait блокируется, пока не завершатся фоновые рассылки уведомлений.
func (s *Scheduler) Wait() {
	s.bg.Wait()
}

func (s *Scheduler) clock() time.Time {
	return s.now().UTC()
}

// dispatch отправляет уведомление в фоне на контексте, отвязанном от запроса.
func (s *Scheduler) dispatch(ctx context.Context, appt model.Appointment, kind string, send func(context.Context, model.Appointment) error) {
	bg := context.WithoutCancel(ctx)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(bg, notifyTimeout)
		defer cancel()
		if err := send(ctx, appt); err != nil {
			observability.LoggerFromContext(ctx).Warn().
				Err(err).
				Str("appointment_id", appt.ID.String()).
				Str("notification", kind).
				Msg("notification dispatch failed")
		}
	}()
}

// record пишет аудит после коммита; сбой аудита не откатывает операцию.
func (s *Scheduler) record(ctx context.Context, action model.EventType, appt *model.Appointment, description string, oldValues, newValues any) {
	entry := AuditEntry{
		ActorID:     actorID(ctx),
		Action:      action,
		Description: description,
		OldValues:   oldValues,
		NewValues:   newValues,
	}
	if appt != nil {
		id := appt.ID
		entry.AppointmentID = &id
	}
	if err := s.audit.LogEvent(ctx, entry); err != nil {
		l := observability.LoggerFromContext(ctx).Warn().Err(err).Str("action", string(action))
		if appt != nil {
			l = l.Str("appointment_id", appt.ID.String())
		}
		l.Msg("audit log failed")
	}
}

func (s *Scheduler) invalidateSlots(ctx context.Context, providerID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, providerID); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("provider_id", providerID.String()).
			Msg("slot cache invalidation failed")
	}
}

// meetingLink спрашивает внешнюю интеграцию, при её отсутствии или ошибке генерирует собственную ссылку.
func (s *Scheduler) meetingLink(ctx context.Context, appt model.Appointment) string {
	if s.meetings != nil {
		link, err := s.meetings.CreateMeetingLink(ctx, appt)
		if err == nil && link != "" {
			return link
		}
		if err != nil {
			observability.LoggerFromContext(ctx).Warn().
				Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("external meeting link failed, using native link")
		}
	}
	return fmt.Sprintf("%s/%s", s.meetingBaseURL, appt.ID)
}

// snapshot: значения записи для old/new в аудите.
func snapshot(a model.Appointment) map[string]any {
	m := map[string]any{
		"status":           a.Status,
		"meeting_phase":    a.MeetingPhase,
		"start_time":       a.StartTime.UTC().Format(time.RFC3339),
		"duration_minutes": a.DurationMinutes,
	}
	if a.MeetingStartedAt != nil {
		m["meeting_started_at"] = a.MeetingStartedAt.UTC().Format(time.RFC3339)
	}
	if a.MeetingEndedAt != nil {
		m["meeting_ended_at"] = a.MeetingEndedAt.UTC().Format(time.RFC3339)
	}
	if a.CancelledAt != nil {
		m["cancelled_at"] = a.CancelledAt.UTC().Format(time.RFC3339)
		m["cancellation_reason"] = a.CancellationReason
	}
	if a.RecurringSeriesID != nil {
		m["recurring_series_id"] = a.RecurringSeriesID.String()
		m["recurrence_position"] = a.RecurrencePosition
	}
	return m
}

func validateDuration(minutes int) error {
	if minutes <= 0 || minutes > MaxDurationMinutes {
		return validation("duration_minutes must be in 1..%d, got %d", MaxDurationMinutes, minutes)
	}
	return nil
}
