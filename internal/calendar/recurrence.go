package calendar

import (
	"errors"
	"fmt"
	"time"
)

// MaxOccurrences ограничивает длину одной серии.
const MaxOccurrences = 52

type Frequency string

const (
	FreqDaily    Frequency = "daily"
	FreqWeekly   Frequency = "weekly"
	FreqBiweekly Frequency = "biweekly"
	FreqMonthly  Frequency = "monthly"
)

var ErrUnknownFrequency = errors.New("unknown recurrence frequency")

func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(s); f {
	case FreqDaily, FreqWeekly, FreqBiweekly, FreqMonthly:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFrequency, s)
	}
}

// Recurrence описывает правило генерации серии.
// Нужно задать хотя бы одно из Count или Until.
type Recurrence struct {
	Frequency Frequency
	Start     time.Time
	Count     int        // 0: не задано
	Until     *time.Time // включительно
}

// Occurrence возвращает k-е (с нуля) повторение от якоря anchor.
// Повторения считаются от якоря, а не накопительно, поэтому
// месячная серия с 31-го числа возвращается к 31-му, где это возможно.
func Occurrence(anchor time.Time, freq Frequency, k int) time.Time {
	switch freq {
	case FreqDaily:
		return anchor.AddDate(0, 0, k)
	case FreqWeekly:
		return anchor.AddDate(0, 0, 7*k)
	case FreqBiweekly:
		return anchor.AddDate(0, 0, 14*k)
	case FreqMonthly:
		return AddMonthsClamped(anchor, k)
	default:
		return anchor
	}
}

// AddMonthsClamped прибавляет n календарных месяцев, прижимая день месяца
// к последнему дню целевого месяца (31 янв + 1 мес = 28/29 фев), без перетекания в следующий месяц.
func AddMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := daysIn(first.Year(), first.Month(), t.Location())
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	// нулевой день следующего месяца равен последнему дню текущего
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// ExpandRecurrence разворачивает правило в список моментов начала.
// Генерация всегда останавливается на MaxOccurrences.
func ExpandRecurrence(rule Recurrence) ([]time.Time, error) {
	if rule.Start.IsZero() {
		return nil, errors.New("recurrence: start is required")
	}
	if _, err := ParseFrequency(string(rule.Frequency)); err != nil {
		return nil, err
	}
	if rule.Count < 0 {
		return nil, errors.New("recurrence: count must not be negative")
	}
	if rule.Count == 0 && rule.Until == nil {
		return nil, errors.New("recurrence: count or end date is required")
	}
	if rule.Count > MaxOccurrences {
		return nil, fmt.Errorf("recurrence: count must not exceed %d", MaxOccurrences)
	}
	if rule.Until != nil && rule.Until.Before(rule.Start) {
		return nil, errors.New("recurrence: end date is before start")
	}

	limit := MaxOccurrences
	if rule.Count > 0 {
		limit = rule.Count
	}

	out := make([]time.Time, 0, limit)
	for k := 0; k < limit; k++ {
		occ := Occurrence(rule.Start, rule.Frequency, k)
		if rule.Until != nil && occ.After(*rule.Until) {
			break
		}
		out = append(out, occ)
	}
	return out, nil
}
