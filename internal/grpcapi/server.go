// Package grpcapi отдаёт видеосервису подтверждение записи и фазы встречи по gRPC.
//
// Сообщения передаются как google.protobuf.Struct, поэтому сервис описан вручную, без protoc.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/clinic-scheduling/internal/model"
	"github.com/Leganyst/clinic-scheduling/internal/service"
)

const ServiceName = "clinic.scheduling.v1.SessionService"

// Sessions: операции ядра, нужные видеосервису. Реализуется *service.Scheduler.
type Sessions interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	ConfirmAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	StartSession(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	EndSession(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	CancelSession(ctx context.Context, id uuid.UUID, reason string) (*model.Appointment, error)
}

// SessionServiceServer: серверная сторона SessionService.
type SessionServiceServer interface {
	GetAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConfirmAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type SessionService struct {
	sessions Sessions
}

func NewSessionService(sessions Sessions) *SessionService {
	return &SessionService{sessions: sessions}
}

// NewServer создаёт gRPC-сервер с SessionService, health и reflection.
func NewServer(sessions Sessions, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(recoverInterceptor, logInterceptor)}, opts...)
	srv := grpc.NewServer(opts...)

	RegisterSessionServiceServer(srv, NewSessionService(sessions))

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)
	return srv
}

func (s *SessionService) GetAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.byID(ctx, req, s.sessions.GetAppointment)
}

func (s *SessionService) ConfirmAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.byID(ctx, req, s.sessions.ConfirmAppointment)
}

func (s *SessionService) StartSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.byID(ctx, req, s.sessions.StartSession)
}

func (s *SessionService) EndSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.byID(ctx, req, s.sessions.EndSession)
}

func (s *SessionService) CancelSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := appointmentID(req)
	if err != nil {
		return nil, err
	}
	reason := req.GetFields()["reason"].GetStringValue()
	appt, err := s.sessions.CancelSession(ctx, id, reason)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeAppointment(appt)
}

func (s *SessionService) byID(ctx context.Context, req *structpb.Struct, op func(context.Context, uuid.UUID) (*model.Appointment, error)) (*structpb.Struct, error) {
	id, err := appointmentID(req)
	if err != nil {
		return nil, err
	}
	appt, err := op(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeAppointment(appt)
}

func appointmentID(req *structpb.Struct) (uuid.UUID, error) {
	raw := req.GetFields()["appointment_id"].GetStringValue()
	if raw == "" {
		return uuid.Nil, status.Error(codes.InvalidArgument, "appointment_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "appointment_id must be a uuid: %v", err)
	}
	return id, nil
}

// encodeAppointment отдаёт запись в том же JSON-виде, что и HTTP API.
func encodeAppointment(appt *model.Appointment) (*structpb.Struct, error) {
	data, err := json.Marshal(appt)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode appointment: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, status.Errorf(codes.Internal, "encode appointment: %v", err)
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode appointment: %v", err)
	}
	return out, nil
}

// toStatus переводит доменную ошибку в gRPC-код.
func toStatus(err error) error {
	var domainErr *service.Error
	if !errors.As(err, &domainErr) {
		return status.Error(codes.Internal, "internal error")
	}
	switch domainErr.Kind {
	case service.KindNotFound:
		return status.Error(codes.NotFound, service.MessageOf(err))
	case service.KindSlotUnavailable:
		return status.Error(codes.Aborted, service.MessageOf(err))
	case service.KindInvalidPhaseTransition:
		return status.Error(codes.FailedPrecondition, service.MessageOf(err))
	case service.KindValidation:
		return status.Error(codes.InvalidArgument, service.MessageOf(err))
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	started := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	ev := log.Info()
	if code == codes.Internal || code == codes.Unknown {
		ev = log.Error().Err(err)
	}
	ev.Str("method", info.FullMethod).
		Str("code", code.String()).
		Dur("latency", time.Since(started)).
		Msg("grpc request")
	return resp, err
}

func recoverInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("method", info.FullMethod).Msg("grpc handler panic")
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}
