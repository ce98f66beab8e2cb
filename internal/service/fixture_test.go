package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Leganyst/clinic-scheduling/internal/model"
	"github.com/Leganyst/clinic-scheduling/internal/repository"
	"github.com/Leganyst/clinic-scheduling/internal/testutil"
)

type sentNotification struct {
	Kind          string
	AppointmentID uuid.UUID
	Reason        string
	OldStart      time.Time
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) add(x sentNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, x)
	return nil
}

func (n *recordingNotifier) SendConfirmation(_ context.Context, a model.Appointment) error {
	return n.add(sentNotification{Kind: "confirmation", AppointmentID: a.ID})
}

func (n *recordingNotifier) SendCancellation(_ context.Context, a model.Appointment, reason string) error {
	return n.add(sentNotification{Kind: "cancellation", AppointmentID: a.ID, Reason: reason})
}

func (n *recordingNotifier) SendRescheduled(_ context.Context, a model.Appointment, oldStart time.Time) error {
	return n.add(sentNotification{Kind: "rescheduled", AppointmentID: a.ID, OldStart: oldStart})
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, x := range n.sent {
		out = append(out, x.Kind)
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	store    *repository.GormStore
	sched    *Scheduler
	notifier *recordingNotifier
	patient  *model.User
	provider *model.Provider
	now      time.Time
}

// 2025-01-06 это понедельник.
var monday = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	gdb := testutil.NewDB(t)

	f := &fixture{
		db:       gdb,
		store:    repository.NewGormStore(gdb, 3),
		notifier: &recordingNotifier{},
		patient:  testutil.SeedPatient(t, gdb),
		provider: testutil.SeedProvider(t, gdb, "UTC"),
		now:      time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC),
	}

	base := []Option{
		WithNotifier(f.notifier),
		WithAuditSink(NewGormAuditSink(repository.NewGormEventRepository(gdb))),
		WithClock(func() time.Time { return f.now }),
	}
	f.sched = NewScheduler(f.store, repository.NewGormDirectory(gdb), append(base, opts...)...)
	t.Cleanup(f.sched.Wait)
	return f
}

func (f *fixture) book(t *testing.T, start time.Time, minutes int) *model.Appointment {
	t.Helper()
	a, err := f.sched.CreateAppointment(context.Background(), CreateAppointmentInput{
		PatientID:       f.patient.ID,
		ProviderID:      f.provider.ID,
		StartTime:       start,
		DurationMinutes: minutes,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) confirmed(t *testing.T, start time.Time, minutes int) *model.Appointment {
	t.Helper()
	a := f.book(t, start, minutes)
	a, err := f.sched.ConfirmAppointment(context.Background(), a.ID)
	require.NoError(t, err)
	return a
}

func (f *fixture) events(t *testing.T, appointmentID uuid.UUID) []model.EventType {
	t.Helper()
	evs, err := repository.NewGormEventRepository(f.db).ListByAppointment(context.Background(), appointmentID)
	require.NoError(t, err)
	out := make([]model.EventType, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.EventType)
	}
	return out
}

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "unexpected error: %v", err)
}
