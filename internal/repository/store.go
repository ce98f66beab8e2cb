package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Leganyst/clinic-scheduling/internal/db"
)

// Store собирает репозитории над одним соединением или одной транзакцией.
type Store interface {
	Users() UserRepository
	Providers() ProviderRepository
	AvailabilityRules() AvailabilityRuleRepository
	BlockedSlots() BlockedSlotRepository
	Appointments() AppointmentRepository
	Events() EventRepository

	// InTx выполняет fn в SERIALIZABLE-транзакции; Store внутри fn привязан к ней.
	// Вложенный вызов переиспользует текущую транзакцию.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

type GormStore struct {
	conn   *gorm.DB
	runner *db.TxRunner
	inTx   bool
}

func NewGormStore(conn *gorm.DB, maxRetries int) *GormStore {
	return &GormStore{conn: conn, runner: db.NewTxRunner(conn, maxRetries)}
}

func (s *GormStore) Users() UserRepository {
	return NewGormUserRepository(s.conn)
}

func (s *GormStore) Providers() ProviderRepository {
	return NewGormProviderRepository(s.conn)
}

func (s *GormStore) AvailabilityRules() AvailabilityRuleRepository {
	return NewGormAvailabilityRuleRepository(s.conn)
}

func (s *GormStore) BlockedSlots() BlockedSlotRepository {
	return NewGormBlockedSlotRepository(s.conn)
}

func (s *GormStore) Appointments() AppointmentRepository {
	return NewGormAppointmentRepository(s.conn)
}

func (s *GormStore) Events() EventRepository {
	return NewGormEventRepository(s.conn)
}

func (s *GormStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.runner.Serializable(ctx, func(tx *gorm.DB) error {
		return fn(&GormStore{conn: tx, runner: s.runner, inTx: true})
	})
}
