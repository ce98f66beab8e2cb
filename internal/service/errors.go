package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Leganyst/clinic-scheduling/internal/db"
)

// ErrorKind: класс ошибки ядра расписания; транспорт маппит его в HTTP/gRPC-коды.
type ErrorKind string

const (
	KindNotFound               ErrorKind = "not_found"
	KindSlotUnavailable        ErrorKind = "slot_unavailable"
	KindInvalidPhaseTransition ErrorKind = "invalid_phase_transition"
	KindValidation             ErrorKind = "validation_error"
	KindInternal               ErrorKind = "internal"
)

// Error: доменная ошибка с сообщением для вызывающей стороны.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает только Kind, поэтому errors.Is(err, ErrNotFound) работает для любого сообщения.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrSlotUnavailable        = &Error{Kind: KindSlotUnavailable}
	ErrInvalidPhaseTransition = &Error{Kind: KindInvalidPhaseTransition}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrInternal               = &Error{Kind: KindInternal}
)

// KindOf возвращает класс ошибки; всё, что не *Error, считается внутренней ошибкой.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf: текст ошибки для клиента без префикса класса.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

func notFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func slotUnavailable(format string, args ...any) error {
	return &Error{Kind: KindSlotUnavailable, Message: fmt.Sprintf(format, args...)}
}

func invalidTransition(format string, args ...any) error {
	return &Error{Kind: KindInvalidPhaseTransition, Message: fmt.Sprintf(format, args...)}
}

func validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// storageErr переводит ошибку хранилища в доменную. Доменные ошибки, вернувшиеся
// из транзакции, пропускаются как есть.
func storageErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Message: what + " not found", Err: err}
	case db.IsUniqueViolation(err):
		return &Error{Kind: KindSlotUnavailable, Message: "time slot is already booked", Err: err}
	default:
		return &Error{Kind: KindInternal, Message: what, Err: err}
	}
}
