// Package httpapi отдаёт REST-интерфейс ядра расписания поверх echo.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/Leganyst/clinic-scheduling/internal/calendar"
	"github.com/Leganyst/clinic-scheduling/internal/model"
	"github.com/Leganyst/clinic-scheduling/internal/observability"
	"github.com/Leganyst/clinic-scheduling/internal/service"
)

// Scheduling: операции ядра, доступные через HTTP. Реализуется *service.Scheduler.
type Scheduling interface {
	GetAvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time, durationMinutes int) ([]calendar.TimeRange, error)
	GetWeeklyAvailability(ctx context.Context, providerID uuid.UUID, startDate time.Time, durationMinutes int) ([]service.DaySlots, error)

	CreateAppointment(ctx context.Context, in service.CreateAppointmentInput) (*model.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	ListAppointments(ctx context.Context, f service.AppointmentFilter) ([]model.Appointment, int64, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, newStart time.Time, newDurationMinutes int) (*model.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*model.Appointment, error)
	ConfirmAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error)

	StartSession(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	EndSession(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	CancelSession(ctx context.Context, id uuid.UUID, reason string) (*model.Appointment, error)

	CreateRecurringSeries(ctx context.Context, in service.CreateSeriesInput) ([]model.Appointment, error)
	GetRecurringSeries(ctx context.Context, seriesID uuid.UUID) ([]model.Appointment, error)
	CancelRecurringSeries(ctx context.Context, seriesID uuid.UUID, reason string, fromInstance int) ([]model.Appointment, error)
	UpdateRecurringAppointment(ctx context.Context, id uuid.UUID, upd service.SeriesUpdate, updateAllFollowing bool) (*service.SeriesUpdateResult, error)

	ListAvailabilityRules(ctx context.Context, providerID uuid.UUID) ([]model.AvailabilityRule, error)
	ReplaceAvailabilityRules(ctx context.Context, providerID uuid.UUID, in []service.AvailabilityRuleInput) ([]model.AvailabilityRule, error)
	AddAvailabilityRule(ctx context.Context, providerID uuid.UUID, in service.AvailabilityRuleInput) (*model.AvailabilityRule, error)
	DeleteAvailabilityRule(ctx context.Context, providerID, ruleID uuid.UUID) error
	AddBlockedSlot(ctx context.Context, providerID uuid.UUID, in service.BlockedSlotInput) (*model.BlockedSlot, error)
	DeleteBlockedSlot(ctx context.Context, providerID, id uuid.UUID) error
	ListBlockedSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time, page calendar.PageRequest) (calendar.Page[model.BlockedSlot], error)
}

type Options struct {
	// JWTSecret пустой: аутентификация выключена, актор не выставляется.
	JWTSecret string
	Metrics   *observability.Metrics
}

// Handler держит зависимости HTTP-обработчиков.
type Handler struct {
	scheduling Scheduling
}

// New собирает echo со всеми маршрутами и middleware.
func New(scheduling Scheduling, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	if opts.Metrics == nil {
		opts.Metrics = observability.NoopMetrics()
	}

	e.Use(middleware.RequestID())
	e.Use(requestLogger())
	e.Use(telemetry(opts.Metrics))
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	h := &Handler{scheduling: scheduling}
	api := e.Group("/api/v1", identity([]byte(opts.JWTSecret)))
	h.register(api)
	return e
}

func (h *Handler) register(g *echo.Group) {
	p := g.Group("/providers/:id")
	p.GET("/slots", h.GetAvailableSlots)
	p.GET("/slots/week", h.GetWeeklyAvailability)
	p.GET("/rules", h.ListAvailabilityRules)
	p.PUT("/rules", h.ReplaceAvailabilityRules)
	p.POST("/rules", h.AddAvailabilityRule)
	p.DELETE("/rules/:ruleId", h.DeleteAvailabilityRule)
	p.GET("/blocked-slots", h.ListBlockedSlots)
	p.POST("/blocked-slots", h.AddBlockedSlot)
	p.DELETE("/blocked-slots/:blockId", h.DeleteBlockedSlot)

	a := g.Group("/appointments")
	a.POST("", h.CreateAppointment)
	a.GET("", h.ListAppointments)
	a.GET("/:id", h.GetAppointment)
	a.POST("/:id/reschedule", h.RescheduleAppointment)
	a.POST("/:id/cancel", h.CancelAppointment)
	a.POST("/:id/confirm", h.ConfirmAppointment)
	a.POST("/:id/session/start", h.StartSession)
	a.POST("/:id/session/end", h.EndSession)
	a.POST("/:id/session/cancel", h.CancelSession)
	a.PATCH("/:id/recurring", h.UpdateRecurringAppointment)

	s := g.Group("/recurring-series")
	s.POST("", h.CreateRecurringSeries)
	s.GET("/:id", h.GetRecurringSeries)
	s.POST("/:id/cancel", h.CancelRecurringSeries)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor переводит класс доменной ошибки в HTTP-статус.
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindSlotUnavailable, service.KindInvalidPhaseTransition:
		return http.StatusConflict
	case service.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		status = http.StatusInternalServerError
		body   errorBody
	)

	var domainErr *service.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &domainErr):
		status = statusFor(domainErr.Kind)
		body.Error = errorDetail{Code: string(domainErr.Kind), Message: service.MessageOf(domainErr)}
		if domainErr.Kind == service.KindInternal {
			body.Error.Message = "internal error"
		}
	case errors.As(err, &httpErr):
		status = httpErr.Code
		body.Error = errorDetail{Code: httpCode(status), Message: http.StatusText(status)}
		if msg, ok := httpErr.Message.(string); ok && msg != "" {
			body.Error.Message = msg
		}
	default:
		body.Error = errorDetail{Code: string(service.KindInternal), Message: "internal error"}
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
			Str("path", c.Path()).
			Msg("request failed")
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, body)
}

func httpCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(service.KindValidation)
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return string(service.KindNotFound)
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		if status >= http.StatusInternalServerError {
			return string(service.KindInternal)
		}
		return "error"
	}
}
