package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Provider: врач или диетолог, ведущий приём.
// Привязан к базе пользователей через UserID.
type Provider struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	// Внешний ключ на таблицу пользователей.
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`

	DisplayName string `gorm:"type:varchar(255);not null" json:"display_name"`

	// doctor / dietitian
	Specialty string `gorm:"type:varchar(32);not null" json:"specialty"`

	// IANA-пояс, в котором заданы правила доступности и блокировки.
	TimeZone string `gorm:"type:varchar(64);not null" json:"time_zone"`

	IsActive bool `gorm:"not null;index" json:"is_active"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`

	AvailabilityRules []AvailabilityRule `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	BlockedSlots      []BlockedSlot      `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func (p *Provider) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	if p.TimeZone == "" {
		p.TimeZone = "UTC"
	}
	return nil
}
