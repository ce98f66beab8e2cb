package calendar

import (
	"errors"
	"sort"
	"time"
)

var ErrSlotDuration = errors.New("slot duration must be positive")

// TimeRange представляет временной интервал [Start, End).
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration возвращает длину интервала.
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Overlaps: полуоткрытые интервалы пересекаются, если a.Start < b.End && b.Start < a.End.
// Касание концами пересечением не считается.
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return tr.Start.Before(other.End) && other.Start.Before(tr.End)
}

// SplitToTimeSlots разбивает интервал на слоты фиксированной длительности
// с шагом, равным длительности. "Хвост" короче slotDuration отбрасывается.
func SplitToTimeSlots(tr TimeRange, slotDuration time.Duration) ([]TimeRange, error) {
	if slotDuration <= 0 {
		return nil, ErrSlotDuration
	}
	if !tr.End.After(tr.Start) {
		return []TimeRange{}, nil
	}

	slots := make([]TimeRange, 0, int(tr.Duration()/slotDuration))
	for cur := tr.Start; !cur.Add(slotDuration).After(tr.End); cur = cur.Add(slotDuration) {
		slots = append(slots, TimeRange{Start: cur, End: cur.Add(slotDuration)})
	}
	return slots, nil
}

// HasOverlap проверяет, пересекается ли newRange хотя бы с одним из existing,
// и возвращает конфликтующие интервалы.
func HasOverlap(newRange TimeRange, existing []TimeRange) (bool, []TimeRange) {
	var conflicts []TimeRange
	for _, tr := range existing {
		if newRange.Overlaps(tr) {
			conflicts = append(conflicts, tr)
		}
	}
	return len(conflicts) > 0, conflicts
}

// SubtractBusy убирает из candidates любые окна, задевающие хотя бы один busy-интервал.
// Окно не дробится: частичное пересечение исключает его целиком.
func SubtractBusy(candidates, busy []TimeRange) []TimeRange {
	free := make([]TimeRange, 0, len(candidates))
	for _, c := range candidates {
		if has, _ := HasOverlap(c, busy); !has {
			free = append(free, c)
		}
	}
	return free
}

// SortAndDedup сортирует окна по началу и удаляет точные дубликаты.
func SortAndDedup(ranges []TimeRange) []TimeRange {
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].Start.Equal(ranges[j].Start) {
			return ranges[i].End.Before(ranges[j].End)
		}
		return ranges[i].Start.Before(ranges[j].Start)
	})

	out := ranges[:0]
	for i, r := range ranges {
		if i > 0 && r.Start.Equal(out[len(out)-1].Start) && r.End.Equal(out[len(out)-1].End) {
			continue
		}
		out = append(out, r)
	}
	return out
}
