package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Leganyst/clinic-scheduling/internal/calendar"
	"github.com/Leganyst/clinic-scheduling/internal/service"
)

// ruleRequest: правило недели; время суток в формате HH:MM.
type ruleRequest struct {
	DayOfWeek              int    `json:"day_of_week"`
	StartTime              string `json:"start_time"`
	EndTime                string `json:"end_time"`
	IsAvailable            *bool  `json:"is_available"`
	DefaultDurationMinutes int    `json:"default_duration_minutes"`
}

func (r ruleRequest) input() (service.AvailabilityRuleInput, error) {
	start, err := calendar.ParseClock(r.StartTime)
	if err != nil {
		return service.AvailabilityRuleInput{}, invalid("start_time must be HH:MM")
	}
	end, err := calendar.ParseClock(r.EndTime)
	if err != nil {
		return service.AvailabilityRuleInput{}, invalid("end_time must be HH:MM")
	}
	available := true
	if r.IsAvailable != nil {
		available = *r.IsAvailable
	}
	return service.AvailabilityRuleInput{
		DayOfWeek:              r.DayOfWeek,
		StartTime:              start,
		EndTime:                end,
		IsAvailable:            available,
		DefaultDurationMinutes: r.DefaultDurationMinutes,
	}, nil
}

func (h *Handler) ListAvailabilityRules(c echo.Context) error {
	providerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	rules, err := h.scheduling.ListAvailabilityRules(c.Request().Context(), providerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"rules": rules})
}

func (h *Handler) ReplaceAvailabilityRules(c echo.Context) error {
	providerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		Rules []ruleRequest `json:"rules"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	in := make([]service.AvailabilityRuleInput, 0, len(req.Rules))
	for _, r := range req.Rules {
		rule, err := r.input()
		if err != nil {
			return err
		}
		in = append(in, rule)
	}

	rules, err := h.scheduling.ReplaceAvailabilityRules(c.Request().Context(), providerID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"rules": rules})
}

func (h *Handler) AddAvailabilityRule(c echo.Context) error {
	providerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req ruleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return err
	}
	rule, err := h.scheduling.AddAvailabilityRule(c.Request().Context(), providerID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rule)
}

func (h *Handler) DeleteAvailabilityRule(c echo.Context) error {
	providerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	ruleID, err := pathUUID(c, "ruleId")
	if err != nil {
		return err
	}
	if err := h.scheduling.DeleteAvailabilityRule(c.Request().Context(), providerID, ruleID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type blockedSlotRequest struct {
	Date      string  `json:"date"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	Reason    string  `json:"reason"`
}

func (r blockedSlotRequest) input() (service.BlockedSlotInput, error) {
	var in service.BlockedSlotInput
	if r.Date == "" {
		return in, invalid("date is required")
	}
	date, err := calendar.ParseDate(r.Date, time.UTC)
	if err != nil {
		return in, invalid("date must be YYYY-MM-DD")
	}
	in.Date = date
	in.Reason = r.Reason

	if r.StartTime != nil {
		start, err := calendar.ParseClock(*r.StartTime)
		if err != nil {
			return in, invalid("start_time must be HH:MM")
		}
		in.StartTime = &start
	}
	if r.EndTime != nil {
		end, err := calendar.ParseClock(*r.EndTime)
		if err != nil {
			return in, invalid("end_time must be HH:MM")
		}
		in.EndTime = &end
	}
	return in, nil
}

func (h *Handler) AddBlockedSlot(c echo.Context) error {
	providerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req blockedSlotRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return err
	}
	block, err := h.scheduling.AddBlockedSlot(c.Request().Context(), providerID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, block)
}

func (h *Handler) DeleteBlockedSlot(c echo.Context) error {
	providerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	blockID, err := pathUUID(c, "blockId")
	if err != nil {
		return err
	}
	if err := h.scheduling.DeleteBlockedSlot(c.Request().Context(), providerID, blockID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListBlockedSlots отдаёт блокировки постранично (page с 1, page_size по умолчанию 10).
func (h *Handler) ListBlockedSlots(c echo.Context) error {
	providerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	from, err := queryDate(c, "from")
	if err != nil {
		return err
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return err
	}
	page, err := queryInt(c, "page")
	if err != nil {
		return err
	}
	pageSize, err := queryInt(c, "page_size")
	if err != nil {
		return err
	}

	blocks, err := h.scheduling.ListBlockedSlots(c.Request().Context(), providerID, from, to,
		calendar.PageRequest{Page: page, PageSize: pageSize})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, blocks)
}
