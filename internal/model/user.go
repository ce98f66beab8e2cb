package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// users: пациенты, врачи, диетологи и администраторы платформы.
type User struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	DisplayName  string `gorm:"type:varchar(255)" json:"display_name"`
	Email        string `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	ContactPhone string `gorm:"type:varchar(32)" json:"contact_phone,omitempty"`

	// Неактивных пользователей нельзя записывать на приём.
	IsActive bool `gorm:"not null;index" json:"is_active"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	// Навигационные поля (опционально)
	Provider *Provider `gorm:"foreignKey:UserID" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
