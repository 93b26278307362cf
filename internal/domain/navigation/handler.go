package navigation

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/navcare/navcare/internal/platform/tenant"
)

type Handler struct {
	svc      *Service
	detector *Detector
}

func NewHandler(svc *Service, detector *Detector) *Handler {
	return &Handler{svc: svc, detector: detector}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/:patientId/journey", h.InitializeJourney)
	api.GET("/patients/:patientId/steps", h.ListPatientSteps)
	api.POST("/patients/:patientId/steps", h.AddStep)
	api.POST("/patients/:patientId/overdue-check", h.CheckPatient)
	api.GET("/steps/:id", h.GetStep)
	api.PATCH("/steps/:id", h.UpdateStep)
	api.POST("/overdue-scan", h.RunScan)
}

type initializeJourneyRequest struct {
	CancerType string `json:"cancer_type"`
}

func (h *Handler) InitializeJourney(c echo.Context) error {
	tenantID := tenant.FromContext(c.Request().Context())
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patientId")
	}

	var req initializeJourneyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.CancerType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "cancer_type is required")
	}

	steps, err := h.svc.InitializeJourney(c.Request().Context(), tenantID, patientID, req.CancerType)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, steps)
}

func (h *Handler) ListPatientSteps(c echo.Context) error {
	tenantID := tenant.FromContext(c.Request().Context())
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patientId")
	}

	steps, err := h.svc.ListPatientSteps(c.Request().Context(), tenantID, patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, steps)
}

func (h *Handler) AddStep(c echo.Context) error {
	tenantID := tenant.FromContext(c.Request().Context())
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patientId")
	}

	var step Step
	if err := c.Bind(&step); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	step.TenantID = tenantID
	step.PatientID = patientID

	if err := h.svc.AddStep(c.Request().Context(), &step); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, step)
}

func (h *Handler) GetStep(c echo.Context) error {
	tenantID := tenant.FromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	step, err := h.svc.GetStep(c.Request().Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "step not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, step)
}

func (h *Handler) UpdateStep(c echo.Context) error {
	tenantID := tenant.FromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var upd StepUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	step, err := h.svc.UpdateStep(c.Request().Context(), tenantID, id, upd)
	if err != nil {
		var invalid *InvalidTransitionError
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "step not found")
		case errors.As(err, &invalid):
			return echo.NewHTTPError(http.StatusConflict, invalid.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// A due date edit may have made the step late; sweep just this patient
	// so the alert shows up without waiting for the next tick.
	if _, err := h.detector.CheckPatient(c.Request().Context(), tenantID, step.PatientID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, step)
}

func (h *Handler) CheckPatient(c echo.Context) error {
	tenantID := tenant.FromContext(c.Request().Context())
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patientId")
	}

	result, err := h.detector.CheckPatient(c.Request().Context(), tenantID, patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// RunScan triggers a full sweep across all tenants on demand, the same pass
// the ticker runs on its own schedule.
func (h *Handler) RunScan(c echo.Context) error {
	result, err := h.detector.Scan(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
