package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип события аудита.
type EventType string

const (
	EventTypeAppointmentCreated     EventType = "appointment_created"
	EventTypeAppointmentConfirmed   EventType = "appointment_confirmed"
	EventTypeAppointmentRescheduled EventType = "appointment_rescheduled"
	EventTypeAppointmentCancelled   EventType = "appointment_cancelled"
	EventTypeSeriesCreated          EventType = "recurring_series_created"
	EventTypeSeriesCancelled        EventType = "recurring_series_cancelled"
	EventTypeSeriesUpdated          EventType = "recurring_series_updated"
	EventTypeSessionStarted         EventType = "session_started"
	EventTypeSessionEnded           EventType = "session_ended"
	EventTypeSessionCancelled       EventType = "session_cancelled"
	EventTypeSessionAutoEnded       EventType = "session_auto_ended"
)

// events: события аудита
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	EventType EventType `gorm:"type:varchar(64);not null;index" json:"event_type"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`

	UserID        *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	AppointmentID *uuid.UUID `gorm:"type:uuid;index" json:"appointment_id,omitempty"`

	Description string `gorm:"type:text" json:"description"`

	OldValues datatypes.JSON `json:"old_values,omitempty"`
	NewValues datatypes.JSON `json:"new_values,omitempty"`

	// Навигационные поля
	User        *User        `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	Appointment *Appointment `gorm:"foreignKey:AppointmentID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
