package calendar

import (
	"errors"
	"testing"
	"time"
)

//
// ExpandRecurrence
//

func TestExpandRecurrence_DailyCount(t *testing.T) {
	starts, err := ExpandRecurrence(Recurrence{
		Frequency: FreqDaily,
		Start:     mustTime(t, 2025, 1, 1, 10, 0),
		Count:     3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []time.Time{
		mustTime(t, 2025, 1, 1, 10, 0),
		mustTime(t, 2025, 1, 2, 10, 0),
		mustTime(t, 2025, 1, 3, 10, 0),
	}
	if len(starts) != len(expected) {
		t.Fatalf("expected %d starts, got %d", len(expected), len(starts))
	}
	for i := range expected {
		if !starts[i].Equal(expected[i]) {
			t.Fatalf("start %d: expected %v, got %v", i, expected[i], starts[i])
		}
	}
}

func TestExpandRecurrence_Biweekly(t *testing.T) {
	starts, err := ExpandRecurrence(Recurrence{
		Frequency: FreqBiweekly,
		Start:     mustTime(t, 2025, 1, 6, 9, 0),
		Count:     3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !starts[2].Equal(mustTime(t, 2025, 2, 3, 9, 0)) {
		t.Fatalf("third biweekly start must be 2025-02-03, got %v", starts[2])
	}
}

func TestExpandRecurrence_MonthlyClampsFromAnchor(t *testing.T) {
	starts, err := ExpandRecurrence(Recurrence{
		Frequency: FreqMonthly,
		Start:     mustTime(t, 2024, 1, 31, 9, 0),
		Count:     4,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 2024 високосный
	expected := []int{31, 29, 31, 30}
	for i, day := range expected {
		if starts[i].Day() != day {
			t.Fatalf("occurrence %d: expected day %d, got %v", i, day, starts[i])
		}
	}
}

func TestExpandRecurrence_UntilInclusive(t *testing.T) {
	until := mustTime(t, 2025, 1, 20, 23, 59)
	starts, err := ExpandRecurrence(Recurrence{
		Frequency: FreqWeekly,
		Start:     mustTime(t, 2025, 1, 6, 9, 0),
		Until:     &until,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(starts) != 3 {
		t.Fatalf("expected 3 starts (06, 13, 20), got %d", len(starts))
	}
}

func TestExpandRecurrence_CappedWithoutCount(t *testing.T) {
	until := mustTime(t, 2030, 1, 1, 0, 0)
	starts, err := ExpandRecurrence(Recurrence{
		Frequency: FreqDaily,
		Start:     mustTime(t, 2025, 1, 1, 9, 0),
		Until:     &until,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(starts) != MaxOccurrences {
		t.Fatalf("expected %d starts, got %d", MaxOccurrences, len(starts))
	}
}

// На переходе на летнее время локальное время начала сохраняется.
func TestExpandRecurrence_KeepsWallClockAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}
	starts, err := ExpandRecurrence(Recurrence{
		Frequency: FreqWeekly,
		Start:     time.Date(2025, 3, 24, 9, 0, 0, 0, berlin),
		Count:     2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h := starts[1].In(berlin).Hour(); h != 9 {
		t.Fatalf("expected 09:00 local after DST switch, got %d:00", h)
	}
	if starts[1].Sub(starts[0]) != 7*24*time.Hour-time.Hour {
		t.Fatalf("expected 167h between occurrences, got %v", starts[1].Sub(starts[0]))
	}
}

func TestExpandRecurrence_Invalid(t *testing.T) {
	start := mustTime(t, 2025, 1, 1, 10, 0)
	before := start.Add(-time.Hour)

	cases := map[string]Recurrence{
		"zero start":        {Frequency: FreqDaily, Count: 1},
		"unknown frequency": {Frequency: "hourly", Start: start, Count: 1},
		"negative count":    {Frequency: FreqDaily, Start: start, Count: -1},
		"no bound":          {Frequency: FreqDaily, Start: start},
		"too many":          {Frequency: FreqDaily, Start: start, Count: MaxOccurrences + 1},
		"until before":      {Frequency: FreqDaily, Start: start, Until: &before},
	}
	for name, rule := range cases {
		if _, err := ExpandRecurrence(rule); err == nil {
			t.Fatalf("%s: expected error, got nil", name)
		}
	}
}

func TestParseFrequency(t *testing.T) {
	for _, s := range []string{"daily", "weekly", "biweekly", "monthly"} {
		if f, err := ParseFrequency(s); err != nil || string(f) != s {
			t.Fatalf("%s: got %q, %v", s, f, err)
		}
	}
	if _, err := ParseFrequency("Weekly"); !errors.Is(err, ErrUnknownFrequency) {
		t.Fatalf("expected ErrUnknownFrequency, got %v", err)
	}
}
