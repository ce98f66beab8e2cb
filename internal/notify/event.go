// Package notify доставляет уведомления о записях пациентам и врачам.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/clinic-scheduling/internal/calendar"
	"github.com/Leganyst/clinic-scheduling/internal/model"
	"github.com/Leganyst/clinic-scheduling/internal/repository"
)

// Типы уведомлений.
const (
	KindConfirmation = "appointment_confirmation"
	KindCancellation = "appointment_cancellation"
	KindRescheduled  = "appointment_rescheduled"
)

// Event: сообщение, которое уходит в канал уведомлений.
type Event struct {
	Type          string     `json:"type"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	ProviderID    uuid.UUID  `json:"provider_id"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	OldStartTime  *time.Time `json:"old_start_time,omitempty"`
	Status        string     `json:"status"`
	MeetingLink   string     `json:"meeting_link,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Text          string     `json:"text"`
	SentAt        time.Time  `json:"sent_at"`
}

// Builder собирает Event и текст для человека в поясе провайдера.
type Builder struct {
	providers repository.ProviderRepository
	now       func() time.Time
}

// NewBuilder: providers может быть nil, тогда время в тексте выводится в UTC.
func NewBuilder(providers repository.ProviderRepository) *Builder {
	return &Builder{providers: providers, now: time.Now}
}

func (b *Builder) location(ctx context.Context, providerID uuid.UUID) *time.Location {
	if b.providers == nil {
		return time.UTC
	}
	p, err := b.providers.GetByID(ctx, providerID)
	if err != nil {
		return time.UTC
	}
	loc, err := calendar.ResolveLocation(p.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (b *Builder) Confirmation(ctx context.Context, a model.Appointment) Event {
	ev := b.base(KindConfirmation, a)
	ev.Text = "Вы записаны на приём: " + calendar.FormatSlotForUser(a.Range(), b.location(ctx, a.ProviderID), a.ID.String())
	if a.MeetingLink != "" {
		ev.Text += "\nСсылка на встречу: " + a.MeetingLink
	}
	return ev
}

func (b *Builder) Cancellation(ctx context.Context, a model.Appointment, reason string) Event {
	ev := b.base(KindCancellation, a)
	ev.Reason = reason
	ev.Text = "Запись отменена: " + calendar.FormatSlotForUser(a.Range(), b.location(ctx, a.ProviderID), a.ID.String())
	if reason != "" {
		ev.Text += "\nПричина: " + reason
	}
	return ev
}

func (b *Builder) Rescheduled(ctx context.Context, a model.Appointment, oldStart time.Time) Event {
	ev := b.base(KindRescheduled, a)
	old := oldStart.UTC()
	ev.OldStartTime = &old

	loc := b.location(ctx, a.ProviderID)
	was := calendar.TimeRange{Start: old, End: old.Add(a.Duration())}
	ev.Text = fmt.Sprintf("Запись перенесена: %s\nБыло: %s",
		calendar.FormatSlotForUser(a.Range(), loc, a.ID.String()),
		calendar.FormatSlotForUser(was, loc, ""),
	)
	return ev
}

func (b *Builder) base(kind string, a model.Appointment) Event {
	return Event{
		Type:          kind,
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		ProviderID:    a.ProviderID,
		StartTime:     a.StartTime.UTC(),
		EndTime:       a.StartTime.Add(a.Duration()).UTC(),
		Status:        string(a.Status),
		MeetingLink:   a.MeetingLink,
		SentAt:        b.now().UTC(),
	}
}
