package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// availability_rules: недельный шаблон приёма провайдера.
// На один день недели может быть несколько правил; уникальность не требуется.
type AvailabilityRule struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ProviderID uuid.UUID `gorm:"type:uuid;not null;index:idx_availability_provider_day" json:"provider_id"`

	// 0 воскресенье … 6 суббота, как time.Weekday.
	DayOfWeek int `gorm:"not null;index:idx_availability_provider_day" json:"day_of_week"`

	// Время суток в поясе провайдера.
	StartTime datatypes.Time `gorm:"not null" json:"start_time"`
	EndTime   datatypes.Time `gorm:"not null" json:"end_time"`

	IsAvailable            bool `gorm:"not null" json:"is_available"`
	DefaultDurationMinutes int  `gorm:"not null" json:"default_duration_minutes"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (r *AvailabilityRule) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// Weekday возвращает день недели правила.
func (r AvailabilityRule) Weekday() time.Weekday {
	return time.Weekday(r.DayOfWeek)
}

// blocked_slots: разовое исключение (отпуск, отгул) на конкретную дату.
// Если StartTime/EndTime не заданы, заблокированы целые сутки.
type BlockedSlot struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ProviderID uuid.UUID `gorm:"type:uuid;not null;index:idx_blocked_provider_date" json:"provider_id"`

	// Дата хранится как полночь UTC, календарный день считается в поясе провайдера.
	Date datatypes.Date `gorm:"not null;index:idx_blocked_provider_date" json:"date"`

	StartTime *datatypes.Time `json:"start_time,omitempty"`
	EndTime   *datatypes.Time `json:"end_time,omitempty"`

	Reason string `gorm:"type:text" json:"reason"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (b *BlockedSlot) BeforeCreate(tx *gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// IsFullDay: блокировка на весь день.
func (b BlockedSlot) IsFullDay() bool {
	return b.StartTime == nil || b.EndTime == nil
}

// CalendarDate возвращает календарную дату блокировки (полночь UTC).
func (b BlockedSlot) CalendarDate() time.Time {
	return time.Time(b.Date).UTC()
}

// DateKey нормализует календарную дату к полуночи UTC, в таком виде она хранится в blocked_slots.
func DateKey(date time.Time) datatypes.Date {
	year, month, day := date.Date()
	return datatypes.Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}
