package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Leganyst/clinic-scheduling/internal/calendar"
	"github.com/Leganyst/clinic-scheduling/internal/model"
	"github.com/Leganyst/clinic-scheduling/internal/service"
)

func invalid(format string, args ...any) error {
	return &service.Error{Kind: service.KindValidation, Message: fmt.Sprintf(format, args...)}
}

func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, invalid("%s must be a uuid", name)
	}
	return id, nil
}

func queryUUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, invalid("%s must be a uuid", name)
	}
	return &id, nil
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid("%s must be an integer", name)
	}
	return n, nil
}

func queryDate(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, invalid("%s is required", name)
	}
	d, err := calendar.ParseDate(raw, time.UTC)
	if err != nil {
		return time.Time{}, invalid("%s must be YYYY-MM-DD", name)
	}
	return d, nil
}

func queryTime(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, invalid("%s must be RFC3339", name)
	}
	return &t, nil
}

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return invalid("malformed request body")
	}
	return nil
}

// ---- slots ----

func (h *Handler) GetAvailableSlots(c echo.Context) error {
	providerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	date, err := queryDate(c, "date")
	if err != nil {
		return err
	}
	duration, err := queryInt(c, "duration")
	if err != nil {
		return err
	}

	slots, err := h.scheduling.GetAvailableSlots(c.Request().Context(), providerID, date, duration)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, service.DaySlots{Date: date.Format(calendar.DateLayout), Slots: slots})
}

func (h *Handler) GetWeeklyAvailability(c echo.Context) error {
	providerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	start, err := queryDate(c, "start")
	if err != nil {
		return err
	}
	duration, err := queryInt(c, "duration")
	if err != nil {
		return err
	}

	week, err := h.scheduling.GetWeeklyAvailability(c.Request().Context(), providerID, start, duration)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"days": week})
}

// ---- appointments ----

type createAppointmentRequest struct {
	PatientID         uuid.UUID `json:"patient_id"`
	ProviderID        uuid.UUID `json:"provider_id"`
	StartTime         time.Time `json:"start_time"`
	DurationMinutes   int       `json:"duration_minutes"`
	Notes             string    `json:"notes"`
	CreateMeetingLink bool      `json:"create_meeting_link"`
}

func (r createAppointmentRequest) input() service.CreateAppointmentInput {
	return service.CreateAppointmentInput{
		PatientID:         r.PatientID,
		ProviderID:        r.ProviderID,
		StartTime:         r.StartTime,
		DurationMinutes:   r.DurationMinutes,
		Notes:             r.Notes,
		CreateMeetingLink: r.CreateMeetingLink,
	}
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var req createAppointmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	appt, err := h.scheduling.CreateAppointment(c.Request().Context(), req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	appt, err := h.scheduling.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}

type appointmentList struct {
	Items  []model.Appointment `json:"items"`
	Total  int64               `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

func (h *Handler) ListAppointments(c echo.Context) error {
	var (
		f   service.AppointmentFilter
		err error
	)
	if f.PatientID, err = queryUUID(c, "patient_id"); err != nil {
		return err
	}
	if f.ProviderID, err = queryUUID(c, "provider_id"); err != nil {
		return err
	}
	if f.SeriesID, err = queryUUID(c, "series_id"); err != nil {
		return err
	}
	if raw := c.QueryParam("status"); raw != "" {
		st := model.AppointmentStatus(raw)
		f.Status = &st
	}
	if f.From, err = queryTime(c, "from"); err != nil {
		return err
	}
	if f.To, err = queryTime(c, "to"); err != nil {
		return err
	}
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		return err
	}
	if f.Offset, err = queryInt(c, "offset"); err != nil {
		return err
	}

	items, total, err := h.scheduling.ListAppointments(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appointmentList{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset})
}

type rescheduleRequest struct {
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req rescheduleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.StartTime.IsZero() {
		return invalid("start_time is required")
	}
	appt, err := h.scheduling.RescheduleAppointment(c.Request().Context(), id, req.StartTime, req.DurationMinutes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req reasonRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	appt, err := h.scheduling.CancelAppointment(c.Request().Context(), id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ConfirmAppointment(c echo.Context) error {
	return h.byID(c, h.scheduling.ConfirmAppointment)
}

func (h *Handler) StartSession(c echo.Context) error {
	return h.byID(c, h.scheduling.StartSession)
}

func (h *Handler) EndSession(c echo.Context) error {
	return h.byID(c, h.scheduling.EndSession)
}

func (h *Handler) CancelSession(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req reasonRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	appt, err := h.scheduling.CancelSession(c.Request().Context(), id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) byID(c echo.Context, op func(ctx context.Context, id uuid.UUID) (*model.Appointment, error)) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	appt, err := op(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}

// ---- recurring ----

type createSeriesRequest struct {
	createAppointmentRequest
	Frequency         string  `json:"frequency"`
	RecurrenceCount   int     `json:"recurrence_count"`
	RecurrenceEndDate *string `json:"recurrence_end_date"`
}

type seriesResponse struct {
	SeriesID     *uuid.UUID          `json:"series_id,omitempty"`
	Appointments []model.Appointment `json:"appointments"`
}

func newSeriesResponse(items []model.Appointment) seriesResponse {
	resp := seriesResponse{Appointments: items}
	if len(items) > 0 {
		resp.SeriesID = items[0].RecurringSeriesID
	}
	return resp
}

func (h *Handler) CreateRecurringSeries(c echo.Context) error {
	var req createSeriesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in := service.CreateSeriesInput{
		CreateAppointmentInput: req.input(),
		Frequency:              req.Frequency,
		RecurrenceCount:        req.RecurrenceCount,
	}
	if req.RecurrenceEndDate != nil {
		end, err := calendar.ParseDate(*req.RecurrenceEndDate, time.UTC)
		if err != nil {
			return invalid("recurrence_end_date must be YYYY-MM-DD")
		}
		in.RecurrenceEndDate = &end
	}

	series, err := h.scheduling.CreateRecurringSeries(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newSeriesResponse(series))
}

func (h *Handler) GetRecurringSeries(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	series, err := h.scheduling.GetRecurringSeries(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSeriesResponse(series))
}

type cancelSeriesRequest struct {
	Reason       string `json:"reason"`
	FromInstance int    `json:"from_instance"`
}

func (h *Handler) CancelRecurringSeries(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req cancelSeriesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	cancelled, err := h.scheduling.CancelRecurringSeries(c.Request().Context(), id, req.Reason, req.FromInstance)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"cancelled": cancelled})
}

type updateRecurringRequest struct {
	StartTime          *time.Time `json:"start_time"`
	DurationMinutes    *int       `json:"duration_minutes"`
	Notes              *string    `json:"notes"`
	UpdateAllFollowing bool       `json:"update_all_following"`
}

func (h *Handler) UpdateRecurringAppointment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req updateRecurringRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	upd := service.SeriesUpdate{StartTime: req.StartTime, DurationMinutes: req.DurationMinutes, Notes: req.Notes}
	res, err := h.scheduling.UpdateRecurringAppointment(c.Request().Context(), id, upd, req.UpdateAllFollowing)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
