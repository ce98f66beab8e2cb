package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/clinic-scheduling/internal/calendar"
	"github.com/Leganyst/clinic-scheduling/internal/model"
)

// Directory: справочник участников записи. Отсутствующий и неактивный
// участник неразличимы: оба дают gorm.ErrRecordNotFound.
type Directory interface {
	FindActiveUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindActiveProviderByID(ctx context.Context, id uuid.UUID) (*model.Provider, error)
}

// Notifier рассылает уведомления участникам. Вызывается в фоне, ошибки только логируются.
type Notifier interface {
	SendConfirmation(ctx context.Context, appt model.Appointment) error
	SendCancellation(ctx context.Context, appt model.Appointment, reason string) error
	SendRescheduled(ctx context.Context, appt model.Appointment, oldStart time.Time) error
}

// AuditEntry: одна запись аудита.
type AuditEntry struct {
	ActorID       *uuid.UUID
	Action        model.EventType
	AppointmentID *uuid.UUID
	Description   string
	OldValues     any
	NewValues     any
}

type AuditSink interface {
	LogEvent(ctx context.Context, entry AuditEntry) error
}

// MeetingLinkProvider: внешняя интеграция с календарём/видеосвязью.
type MeetingLinkProvider interface {
	CreateMeetingLink(ctx context.Context, appt model.Appointment) (string, error)
}

// SlotCache кэширует результат генерации слотов на дату.
type SlotCache interface {
	Get(ctx context.Context, providerID uuid.UUID, date string, durationMinutes int) ([]calendar.TimeRange, bool, error)
	Set(ctx context.Context, providerID uuid.UUID, date string, durationMinutes int, slots []calendar.TimeRange) error
	Invalidate(ctx context.Context, providerID uuid.UUID) error
}

type noopNotifier struct{}

func (noopNotifier) SendConfirmation(context.Context, model.Appointment) error { return nil }

func (noopNotifier) SendCancellation(context.Context, model.Appointment, string) error { return nil }

func (noopNotifier) SendRescheduled(context.Context, model.Appointment, time.Time) error { return nil }

type noopSlotCache struct{}

func (noopSlotCache) Get(context.Context, uuid.UUID, string, int) ([]calendar.TimeRange, bool, error) {
	return nil, false, nil
}

func (noopSlotCache) Set(context.Context, uuid.UUID, string, int, []calendar.TimeRange) error {
	return nil
}

func (noopSlotCache) Invalidate(context.Context, uuid.UUID) error { return nil }
