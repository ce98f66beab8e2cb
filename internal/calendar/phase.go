package calendar

import "time"

// Phase: фаза встречи подтверждённой записи.
type Phase string

const (
	PhasePreSession    Phase = "pre_session"
	PhaseActiveSession Phase = "active_session"
	PhasePostSession   Phase = "post_session"
)

// PhaseInput: отметки времени, из которых выводится фаза без сохранённого поля.
type PhaseInput struct {
	StartedAt   *time.Time
	EndedAt     *time.Time
	CancelledAt *time.Time
}

// DerivePhase вычисляет фазу встречи только по отметкам переходов.
//
// Плановое время записи фазу не двигает: неоплаченная запись в своём окне
// остаётся pre_session, а встречу, которую так и не начали, по-прежнему можно начать.
// Отмена или завершение дают post_session, начатая сессия даёт active_session.
func DerivePhase(in PhaseInput) Phase {
	switch {
	case in.CancelledAt != nil || in.EndedAt != nil:
		return PhasePostSession
	case in.StartedAt != nil:
		return PhaseActiveSession
	default:
		return PhasePreSession
	}
}
