package calendar

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate разбирает дату YYYY-MM-DD в указанном часовом поясе.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// AtClock возвращает момент на календарную дату date (в поясе loc) с временем суток clock.
// clock задаётся смещением от полуночи.
func AtClock(date time.Time, clock time.Duration, loc *time.Location) time.Time {
	if loc == nil {
		loc = date.Location()
	}
	year, month, day := date.Date()
	h := int(clock / time.Hour)
	m := int((clock % time.Hour) / time.Minute)
	s := int((clock % time.Minute) / time.Second)
	return time.Date(year, month, day, h, m, s, 0, loc)
}

// DayBounds возвращает сутки [00:00, 00:00 следующего дня) для даты date в поясе loc.
// Сутки на переходе DST могут длиться 23 или 25 часов.
func DayBounds(date time.Time, loc *time.Location) TimeRange {
	start := AtClock(date, 0, loc)
	year, month, day := date.Date()
	end := time.Date(year, month, day+1, 0, 0, 0, 0, start.Location())
	return TimeRange{Start: start, End: end}
}

// ResolveLocation загружает часовой пояс по IANA-имени, при пустом имени UTC.
func ResolveLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}

// ParseClock разбирает время суток HH:MM или HH:MM:SS в смещение от полуночи.
// 24:00 допускается как конец суток.
func ParseClock(s string) (time.Duration, error) {
	if s == "24:00" || s == "24:00:00" {
		return 24 * time.Hour, nil
	}
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("parse clock %q: expected HH:MM", s)
}

// FormatClock обратна ParseClock, в формате HH:MM.
func FormatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int((d%time.Hour)/time.Minute))
}
