package calendar

import (
	"fmt"
	"time"
)

var ruWeekdays = map[time.Weekday]string{
	time.Monday:    "Понедельник",
	time.Tuesday:   "Вторник",
	time.Wednesday: "Среда",
	time.Thursday:  "Четверг",
	time.Friday:    "Пятница",
	time.Saturday:  "Суббота",
	time.Sunday:    "Воскресенье",
}

// FormatSlotForUser форматирует интервал в человекочитаемую строку для уведомлений.
// Если loc != nil, время переводится в указанный часовой пояс.
// Если ref не пустой, в конце добавляется идентификатор записи в скобках.
func FormatSlotForUser(tr TimeRange, loc *time.Location, ref string) string {
	start := tr.Start
	end := tr.End

	if loc != nil {
		start = start.In(loc)
		end = end.In(loc)
	}

	base := fmt.Sprintf("%s, %s, %s–%s",
		ruWeekdays[start.Weekday()],
		start.Format("02.01.2006"),
		start.Format("15:04"),
		end.Format("15:04"),
	)

	if ref != "" {
		return fmt.Sprintf("%s (ID: %s)", base, ref)
	}
	return base
}
