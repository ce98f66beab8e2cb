// Package testutil поднимает in-memory SQLite с полной схемой для тестов.
package testutil

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Leganyst/clinic-scheduling/internal/db"
	"github.com/Leganyst/clinic-scheduling/internal/model"
)

// NewDB открывает отдельную in-memory базу и мигрирует её.
// Одно соединение: каждое новое соединение к :memory: видит пустую базу.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := db.GormConfig()
	cfg.Logger = gormlogger.Discard

	gdb, err := gorm.Open(sqlite.Open(":memory:"), cfg)
	require.NoError(t, err, "open sqlite")

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, model.AutoMigrate(gdb), "auto migrate")
	return gdb
}

// SeedPatient создаёт активного пациента.
func SeedPatient(t *testing.T, gdb *gorm.DB) *model.User {
	t.Helper()
	u := &model.User{
		DisplayName: "Пациент",
		Email:       uuid.NewString() + "@patients.test",
		IsActive:    true,
	}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

// SeedProvider создаёт активного провайдера в поясе tz.
func SeedProvider(t *testing.T, gdb *gorm.DB, tz string) *model.Provider {
	t.Helper()
	u := &model.User{
		DisplayName: "Доктор",
		Email:       uuid.NewString() + "@providers.test",
		IsActive:    true,
	}
	require.NoError(t, gdb.Create(u).Error)

	p := &model.Provider{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Specialty:   model.RoleCodeDoctor,
		TimeZone:    tz,
		IsActive:    true,
	}
	require.NoError(t, gdb.Create(p).Error)
	return p
}

// SeedRule добавляет правило доступности с часами в формате HH:MM.
func SeedRule(t *testing.T, gdb *gorm.DB, providerID uuid.UUID, day time.Weekday, from, to string, durationMin int) *model.AvailabilityRule {
	t.Helper()
	r := &model.AvailabilityRule{
		ProviderID:             providerID,
		DayOfWeek:              int(day),
		StartTime:              Clock(t, from),
		EndTime:                Clock(t, to),
		IsAvailable:            true,
		DefaultDurationMinutes: durationMin,
	}
	require.NoError(t, gdb.Create(r).Error)
	return r
}

// Clock разбирает HH:MM в datatypes.Time.
func Clock(t *testing.T, hhmm string) datatypes.Time {
	t.Helper()
	c, err := time.Parse("15:04", hhmm)
	require.NoError(t, err)
	return datatypes.NewTime(c.Hour(), c.Minute(), 0, 0)
}
