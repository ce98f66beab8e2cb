package calendar

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestParseClock(t *testing.T) {
	cases := map[string]time.Duration{
		"00:00":    0,
		"09:30":    9*time.Hour + 30*time.Minute,
		"17:45:10": 17*time.Hour + 45*time.Minute + 10*time.Second,
		"24:00":    24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", in, err)
		}
		if got != want {
			t.Fatalf("%s: expected %v, got %v", in, want, got)
		}
	}

	for _, bad := range []string{"", "9", "25:00", "12:60", "noon"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(9*time.Hour + 5*time.Minute); got != "09:05" {
		t.Fatalf("expected 09:05, got %s", got)
	}
	if got := FormatClock(24 * time.Hour); got != "24:00" {
		t.Fatalf("expected 24:00, got %s", got)
	}
}

func TestAtClock_ProviderZone(t *testing.T) {
	moscow, err := ResolveLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	date := mustTime(t, 2025, 1, 6, 0, 0)

	got := AtClock(date, 9*time.Hour, moscow)
	if !got.Equal(mustTime(t, 2025, 1, 6, 6, 0)) {
		t.Fatalf("09:00 MSK must be 06:00 UTC, got %v", got.UTC())
	}

	// 24:00 означает полночь следующих суток
	end := AtClock(date, 24*time.Hour, moscow)
	if !end.Equal(mustTime(t, 2025, 1, 6, 21, 0)) {
		t.Fatalf("24:00 MSK must be 21:00 UTC, got %v", end.UTC())
	}
}

func TestDayBounds_DST(t *testing.T) {
	berlin, err := ResolveLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	day := DayBounds(time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC), berlin)
	if day.Duration() != 23*time.Hour {
		t.Fatalf("expected 23h day on DST switch, got %v", day.Duration())
	}
}

func TestResolveLocation(t *testing.T) {
	loc, err := ResolveLocation("")
	if err != nil || loc != time.UTC {
		t.Fatalf("empty zone must resolve to UTC, got %v, %v", loc, err)
	}
	if _, err := ResolveLocation("Mars/Olympus"); err == nil || !strings.Contains(err.Error(), "Mars/Olympus") {
		t.Fatalf("expected error naming the zone, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-02-28", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Equal(mustTime(t, 2025, 2, 28, 0, 0)) {
		t.Fatalf("unexpected date %v", d)
	}
	if _, err := ParseDate("2025-02-30", nil); err == nil {
		t.Fatalf("expected error for 2025-02-30")
	}
}
