package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// SQLSTATE, при которых транзакцию можно безопасно повторить.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

// TxRunner выполняет функции в SERIALIZABLE-транзакции и повторяет их
// при конфликтах сериализации.
type TxRunner struct {
	db         *gorm.DB
	maxRetries uint64
}

func NewTxRunner(db *gorm.DB, maxRetries int) *TxRunner {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &TxRunner{db: db, maxRetries: uint64(maxRetries)}
}

// DB возвращает соединение вне транзакции (для чтений).
func (r *TxRunner) DB() *gorm.DB {
	return r.db
}

// Serializable запускает fn в транзакции с уровнем изоляции SERIALIZABLE.
// fn может быть вызвана несколько раз, поэтому не должна иметь побочных эффектов вне tx.
// Ошибки fn, кроме конфликтов сериализации, возвращаются без повторов.
func (r *TxRunner) Serializable(ctx context.Context, fn func(tx *gorm.DB) error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(newBackOff(), r.maxRetries),
		ctx,
	)

	return backoff.Retry(func() error {
		err := r.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err == nil {
			return nil
		}
		if IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return b
}

// IsRetryable сообщает, что транзакция упала из-за конкурентного доступа и её стоит повторить.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
	}
	return false
}

// IsUniqueViolation распознаёт нарушение уникального индекса у postgres и sqlite,
// в том числе уже переведённое gorm в ErrDuplicatedKey.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
