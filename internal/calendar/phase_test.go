package calendar

import (
	"testing"
	"time"
)

func TestDerivePhase(t *testing.T) {
	at := func(h, m int) time.Time { return mustTime(t, 2025, 1, 6, h, m) }
	stamp := func(tm time.Time) *time.Time { return &tm }

	cases := []struct {
		name string
		in   PhaseInput
		want Phase
	}{
		{"no marks", PhaseInput{}, PhasePreSession},
		{"started", PhaseInput{StartedAt: stamp(at(10, 0))}, PhaseActiveSession},
		{"started early", PhaseInput{StartedAt: stamp(at(9, 50))}, PhaseActiveSession},
		{"ended", PhaseInput{StartedAt: stamp(at(10, 0)), EndedAt: stamp(at(10, 40))}, PhasePostSession},
		{"cancelled before start", PhaseInput{CancelledAt: stamp(at(8, 0))}, PhasePostSession},
		{"cancelled during session", PhaseInput{StartedAt: stamp(at(10, 0)), EndedAt: stamp(at(10, 5)), CancelledAt: stamp(at(10, 5))}, PhasePostSession},
	}
	for _, tc := range cases {
		if got := DerivePhase(tc.in); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}
