package calendar

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func equalTimeRangeSlices(a, b []TimeRange) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Start.Equal(b[i].Start) || !a[i].End.Equal(b[i].End) {
			return false
		}
	}
	return true
}

//
// SplitToTimeSlots
//

func TestSplitToTimeSlots_Basic(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 12, 0)}

	slots, err := SplitToTimeSlots(tr, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 10, 30)},
		{Start: mustTime(t, 2025, 1, 1, 10, 30), End: mustTime(t, 2025, 1, 1, 11, 0)},
		{Start: mustTime(t, 2025, 1, 1, 11, 0), End: mustTime(t, 2025, 1, 1, 11, 30)},
		{Start: mustTime(t, 2025, 1, 1, 11, 30), End: mustTime(t, 2025, 1, 1, 12, 0)},
	}
	if !equalTimeRangeSlices(slots, expected) {
		t.Fatalf("expected %+v, got %+v", expected, slots)
	}
}

func TestSplitToTimeSlots_TailDropped(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 11, 10)}

	slots, err := SplitToTimeSlots(tr, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[1].End.Equal(mustTime(t, 2025, 1, 1, 11, 0)) {
		t.Fatalf("last slot must end at 11:00, got %v", slots[1].End)
	}
}

// Число окон равно floor((end-start)/duration) для любых длительностей.
func TestSplitToTimeSlots_Count(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 9, 0), End: mustTime(t, 2025, 1, 1, 17, 0)}
	for _, minutes := range []int{1, 7, 15, 25, 45, 60, 90, 480, 481} {
		d := time.Duration(minutes) * time.Minute
		slots, err := SplitToTimeSlots(tr, d)
		if err != nil {
			t.Fatalf("%d min: unexpected error: %v", minutes, err)
		}
		if want := int(tr.Duration() / d); len(slots) != want {
			t.Fatalf("%d min: expected %d slots, got %d", minutes, want, len(slots))
		}
	}
}

func TestSplitToTimeSlots_EmptyRange(t *testing.T) {
	at := mustTime(t, 2025, 1, 1, 10, 0)
	slots, err := SplitToTimeSlots(TimeRange{Start: at, End: at}, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", slots)
	}
}

func TestSplitToTimeSlots_InvalidDuration(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 11, 0)}

	if _, err := SplitToTimeSlots(tr, 0); err != ErrSlotDuration {
		t.Fatalf("expected ErrSlotDuration, got %v", err)
	}
}

//
// HasOverlap / SubtractBusy
//

func TestHasOverlap_TouchingIsNotOverlap(t *testing.T) {
	newRange := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 11, 0)}
	existing := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 11, 0), End: mustTime(t, 2025, 1, 1, 12, 0)},
		{Start: mustTime(t, 2025, 1, 1, 9, 0), End: mustTime(t, 2025, 1, 1, 10, 0)},
	}

	has, conflicts := HasOverlap(newRange, existing)
	if has {
		t.Fatalf("expected no overlap, got conflicts: %+v", conflicts)
	}
}

func TestHasOverlap_OverlapFound(t *testing.T) {
	newRange := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 30), End: mustTime(t, 2025, 1, 1, 11, 30)}
	existing := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 9, 0), End: mustTime(t, 2025, 1, 1, 10, 0)},
		{Start: mustTime(t, 2025, 1, 1, 11, 0), End: mustTime(t, 2025, 1, 1, 12, 0)},
	}

	has, conflicts := HasOverlap(newRange, existing)
	if !has {
		t.Fatalf("expected overlap, got none")
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
}

func TestHasOverlap_Containment(t *testing.T) {
	outer := TimeRange{Start: mustTime(t, 2025, 1, 1, 9, 0), End: mustTime(t, 2025, 1, 1, 12, 0)}
	inner := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 10, 30)}

	if !outer.Overlaps(inner) || !inner.Overlaps(outer) {
		t.Fatalf("containment must overlap in both directions")
	}
}

func TestSubtractBusy_DropsWholeWindow(t *testing.T) {
	candidates := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 9, 0), End: mustTime(t, 2025, 1, 1, 10, 0)},
		{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 11, 0)},
		{Start: mustTime(t, 2025, 1, 1, 11, 0), End: mustTime(t, 2025, 1, 1, 12, 0)},
	}
	busy := []TimeRange{{Start: mustTime(t, 2025, 1, 1, 10, 45), End: mustTime(t, 2025, 1, 1, 11, 0)}}

	free := SubtractBusy(candidates, busy)
	expected := []TimeRange{candidates[0], candidates[2]}
	if !equalTimeRangeSlices(free, expected) {
		t.Fatalf("expected %+v, got %+v", expected, free)
	}
}

func TestSortAndDedup(t *testing.T) {
	a := TimeRange{Start: mustTime(t, 2025, 1, 1, 9, 0), End: mustTime(t, 2025, 1, 1, 9, 30)}
	b := TimeRange{Start: mustTime(t, 2025, 1, 1, 9, 30), End: mustTime(t, 2025, 1, 1, 10, 0)}
	// тот же момент в другом поясе считается дубликатом
	bMoscow := TimeRange{Start: b.Start.In(time.FixedZone("MSK", 3*3600)), End: b.End.In(time.FixedZone("MSK", 3*3600))}

	got := SortAndDedup([]TimeRange{b, a, bMoscow, a})
	if !equalTimeRangeSlices(got, []TimeRange{a, b}) {
		t.Fatalf("expected [a b], got %+v", got)
	}
}
