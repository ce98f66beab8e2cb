package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/clinic-scheduling/internal/calendar"
)

// Статус записи на приём.
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Фаза встречи хранится как кэш производной calendar.DerivePhase.
type MeetingPhase = calendar.Phase

const (
	MeetingPhasePreSession    = calendar.PhasePreSession
	MeetingPhaseActiveSession = calendar.PhaseActiveSession
	MeetingPhasePostSession   = calendar.PhasePostSession
)

// appointments
//
// Частичный уникальный индекс (provider_id, start_time) среди неотменённых записей
// страхует от двойного бронирования на уровне БД.
type Appointment struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	PatientID  uuid.UUID `gorm:"type:uuid;not null;index" json:"patient_id"`
	ProviderID uuid.UUID `gorm:"type:uuid;not null;index;index:idx_appointments_provider_start,unique,where:status <> 'cancelled'" json:"provider_id"`

	StartTime       time.Time `gorm:"not null;index;index:idx_appointments_provider_start,unique" json:"start_time"`
	EndTime         time.Time `gorm:"not null;index" json:"end_time"`
	DurationMinutes int       `gorm:"not null" json:"duration_minutes"`

	Status AppointmentStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	Notes  string            `gorm:"type:text" json:"notes,omitempty"`

	MeetingLink      string       `gorm:"type:varchar(512)" json:"meeting_link,omitempty"`
	MeetingPhase     MeetingPhase `gorm:"type:varchar(32);not null" json:"meeting_phase"`
	MeetingStartedAt *time.Time   `json:"meeting_started_at,omitempty"`
	MeetingEndedAt   *time.Time   `json:"meeting_ended_at,omitempty"`

	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `gorm:"type:text" json:"cancellation_reason,omitempty"`

	IsRecurring         bool       `gorm:"not null" json:"is_recurring"`
	RecurringSeriesID   *uuid.UUID `gorm:"type:uuid;index" json:"recurring_series_id,omitempty"`
	RecurrenceFrequency string     `gorm:"type:varchar(16)" json:"recurrence_frequency,omitempty"`
	RecurrencePosition  int        `json:"recurrence_position,omitempty"`

	WasCancelledFromSession bool `gorm:"not null" json:"was_cancelled_from_session"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	Patient  *User     `gorm:"foreignKey:PatientID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Provider *Provider `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// BeforeSave поддерживает денормализованный EndTime.
func (a *Appointment) BeforeSave(tx *gorm.DB) error {
	a.EndTime = a.StartTime.Add(a.Duration())
	return nil
}

func (a *Appointment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

func (a *Appointment) Range() calendar.TimeRange {
	return calendar.TimeRange{Start: a.StartTime, End: a.StartTime.Add(a.Duration())}
}

// DerivedPhase пересчитывает фазу по отметкам времени, не глядя на MeetingPhase.
func (a *Appointment) DerivedPhase() MeetingPhase {
	return calendar.DerivePhase(calendar.PhaseInput{
		StartedAt:   a.MeetingStartedAt,
		EndedAt:     a.MeetingEndedAt,
		CancelledAt: a.CancelledAt,
	})
}

// MarshalJSON добавляет к записи derived_phase рядом с сохранённой meeting_phase.
func (a Appointment) MarshalJSON() ([]byte, error) {
	type plain Appointment
	return json.Marshal(struct {
		plain
		DerivedPhase MeetingPhase `json:"derived_phase"`
	}{plain(a), a.DerivedPhase()})
}

// IsTerminal: отменённая или завершённая запись больше не меняется.
func (a *Appointment) IsTerminal() bool {
	return a.Status == AppointmentStatusCancelled || a.Status == AppointmentStatusCompleted
}

// StatusPhaseConsistent проверяет согласованность статуса и сохранённой фазы.
func (a *Appointment) StatusPhaseConsistent() bool {
	switch a.Status {
	case AppointmentStatusScheduled:
		return a.MeetingPhase == MeetingPhasePreSession
	case AppointmentStatusConfirmed:
		return a.MeetingPhase == MeetingPhasePreSession || a.MeetingPhase == MeetingPhaseActiveSession
	case AppointmentStatusCompleted, AppointmentStatusCancelled:
		return a.MeetingPhase == MeetingPhasePostSession
	default:
		return false
	}
}
