package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Leganyst/clinic-scheduling/internal/model"
)

// LogNotifier пишет уведомления в лог. Используется, когда Redis не настроен.
type LogNotifier struct {
	logger  zerolog.Logger
	builder *Builder
}

func NewLogNotifier(logger zerolog.Logger, builder *Builder) *LogNotifier {
	if builder == nil {
		builder = NewBuilder(nil)
	}
	return &LogNotifier{logger: logger, builder: builder}
}

func (n *LogNotifier) SendConfirmation(ctx context.Context, a model.Appointment) error {
	n.write(n.builder.Confirmation(ctx, a))
	return nil
}

func (n *LogNotifier) SendCancellation(ctx context.Context, a model.Appointment, reason string) error {
	n.write(n.builder.Cancellation(ctx, a, reason))
	return nil
}

func (n *LogNotifier) SendRescheduled(ctx context.Context, a model.Appointment, oldStart time.Time) error {
	n.write(n.builder.Rescheduled(ctx, a, oldStart))
	return nil
}

func (n *LogNotifier) write(ev Event) {
	n.logger.Info().
		Str("type", ev.Type).
		Str("appointment_id", ev.AppointmentID.String()).
		Str("patient_id", ev.PatientID.String()).
		Str("provider_id", ev.ProviderID.String()).
		Str("text", ev.Text).
		Msg("notification")
}
