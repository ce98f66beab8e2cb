package grpcapi_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/clinic-scheduling/internal/grpcapi"
	"github.com/Leganyst/clinic-scheduling/internal/model"
	"github.com/Leganyst/clinic-scheduling/internal/repository"
	"github.com/Leganyst/clinic-scheduling/internal/service"
	"github.com/Leganyst/clinic-scheduling/internal/testutil"
)

type grpcFixture struct {
	client *grpcapi.SessionClient
	conn   *grpc.ClientConn
	sched  *service.Scheduler
	appt   *model.Appointment
}

func newGRPC(t *testing.T) *grpcFixture {
	t.Helper()
	gdb := testutil.NewDB(t)
	sched := service.NewScheduler(repository.NewGormStore(gdb, 3), repository.NewGormDirectory(gdb))
	t.Cleanup(sched.Wait)

	patient := testutil.SeedPatient(t, gdb)
	provider := testutil.SeedProvider(t, gdb, "UTC")
	appt, err := sched.CreateAppointment(context.Background(), service.CreateAppointmentInput{
		PatientID:       patient.ID,
		ProviderID:      provider.ID,
		StartTime:       time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
	})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := grpcapi.NewServer(sched)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &grpcFixture{client: grpcapi.NewSessionClient(conn), conn: conn, sched: sched, appt: appt}
}

func request(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func TestSessionFlow(t *testing.T) {
	f := newGRPC(t)
	ctx := context.Background()
	req := request(t, map[string]any{"appointment_id": f.appt.ID.String()})

	_, err := f.client.Call(ctx, "StartSession", req)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	out, err := f.client.Call(ctx, "ConfirmAppointment", req)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", out.GetFields()["status"].GetStringValue())

	out, err = f.client.Call(ctx, "StartSession", req)
	require.NoError(t, err)
	assert.Equal(t, "active_session", out.GetFields()["meeting_phase"].GetStringValue())
	assert.Equal(t, "active_session", out.GetFields()["derived_phase"].GetStringValue())
	assert.NotEmpty(t, out.GetFields()["meeting_started_at"].GetStringValue())

	out, err = f.client.Call(ctx, "EndSession", req)
	require.NoError(t, err)
	assert.Equal(t, "completed", out.GetFields()["status"].GetStringValue())
	assert.Equal(t, "post_session", out.GetFields()["meeting_phase"].GetStringValue())

	out, err = f.client.Call(ctx, "GetAppointment", req)
	require.NoError(t, err)
	assert.Equal(t, f.appt.ID.String(), out.GetFields()["id"].GetStringValue())
	assert.Equal(t, "post_session", out.GetFields()["derived_phase"].GetStringValue())
}

func TestCancelSession(t *testing.T) {
	f := newGRPC(t)
	ctx := context.Background()

	// отменить встречу можно только у подтверждённой записи
	_, err := f.client.Call(ctx, "CancelSession", request(t, map[string]any{"appointment_id": f.appt.ID.String()}))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	_, err = f.sched.ConfirmAppointment(ctx, f.appt.ID)
	require.NoError(t, err)

	out, err := f.client.Call(ctx, "CancelSession", request(t, map[string]any{
		"appointment_id": f.appt.ID.String(),
		"reason":         "врач заболел",
	}))
	require.NoError(t, err)
	assert.Equal(t, "cancelled", out.GetFields()["status"].GetStringValue())
	assert.Equal(t, "врач заболел", out.GetFields()["cancellation_reason"].GetStringValue())
}

func TestErrorCodes(t *testing.T) {
	f := newGRPC(t)
	ctx := context.Background()

	_, err := f.client.Call(ctx, "GetAppointment", request(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.client.Call(ctx, "GetAppointment", request(t, map[string]any{"appointment_id": "42"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.client.Call(ctx, "EndSession", request(t, map[string]any{"appointment_id": uuid.NewString()}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = f.client.Call(ctx, "Reschedule", request(t, map[string]any{}))
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestHealth(t *testing.T) {
	f := newGRPC(t)
	resp, err := healthpb.NewHealthClient(f.conn).Check(context.Background(), &healthpb.HealthCheckRequest{
		Service: grpcapi.ServiceName,
	})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
