package alert

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/navcare/navcare/internal/platform/tenant"
	"github.com/navcare/navcare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/alerts", h.ListAlerts)
	api.GET("/alerts/critical", h.ListCriticalAlerts)
	api.GET("/alerts/open-count", h.OpenCount)
	api.GET("/alerts/:id", h.GetAlert)
	api.POST("/alerts/:id/acknowledge", h.AcknowledgeAlert)
	api.POST("/alerts/:id/resolve", h.ResolveAlert)
	api.POST("/alerts/:id/dismiss", h.DismissAlert)
}

func (h *Handler) ListAlerts(c echo.Context) error {
	tenantID := tenant.FromContext(c.Request().Context())
	pg := pagination.FromContext(c)

	var f ListFilter
	if p := c.QueryParam("patient_id"); p != "" {
		pid, err := uuid.Parse(p)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = pid
	}
	f.Status = Status(c.QueryParam("status"))
	f.Severity = Severity(c.QueryParam("severity"))
	if f.Status == "" && c.QueryParam("open") == "true" {
		f.OnlyOpen = true
	}

	alerts, total, err := h.svc.List(c.Request().Context(), tenantID, f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(alerts, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListCriticalAlerts(c echo.Context) error {
	tenantID := tenant.FromContext(c.Request().Context())
	pg := pagination.FromContext(c)

	alerts, total, err := h.svc.ListCritical(c.Request().Context(), tenantID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(alerts, total, pg.Limit, pg.Offset))
}

func (h *Handler) OpenCount(c echo.Context) error {
	tenantID := tenant.FromContext(c.Request().Context())

	open, critical, err := h.svc.OpenCount(c.Request().Context(), tenantID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"open": open, "critical": critical})
}

func (h *Handler) GetAlert(c echo.Context) error {
	tenantID := tenant.FromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	a, err := h.svc.Get(c.Request().Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "alert not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

type actionRequest struct {
	Actor string `json:"actor"`
}

func (h *Handler) AcknowledgeAlert(c echo.Context) error {
	return h.transition(c, h.svc.Acknowledge)
}

func (h *Handler) ResolveAlert(c echo.Context) error {
	return h.transition(c, h.svc.Resolve)
}

func (h *Handler) DismissAlert(c echo.Context) error {
	return h.transition(c, h.svc.Dismiss)
}

func (h *Handler) transition(c echo.Context, apply func(ctx context.Context, tenantID string, id uuid.UUID, actor string) (*Alert, error)) error {
	tenantID := tenant.FromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req actionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Actor == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "actor is required")
	}

	a, err := apply(c.Request().Context(), tenantID, id, req.Actor)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "alert not found")
		case errors.Is(err, ErrClosed):
			return echo.NewHTTPError(http.StatusConflict, "alert is already closed")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}
