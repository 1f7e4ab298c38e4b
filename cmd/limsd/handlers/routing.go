package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anatraz/limsbridge/cmd/limsd/service"
	"github.com/anatraz/limsbridge/common/logger"
	"github.com/anatraz/limsbridge/common/models"
)

// RoutingHandler handles workflow routing requests
type RoutingHandler struct {
	router *service.Router
	log    *logger.Logger
}

// NewRoutingHandler creates a new routing handler
func NewRoutingHandler(router *service.Router, log *logger.Logger) *RoutingHandler {
	return &RoutingHandler{
		router: router,
		log:    log.WithComponent("routing-handler"),
	}
}

// WetLabRequest is the body for POST /api/v1/routing/wetlab
type WetLabRequest struct {
	UserID              int64   `json:"user_id"`
	CurrentJobType      string  `json:"current_job_type"`
	SampleIDs           []int64 `json:"sample_ids"`
	AccessionGeneration bool    `json:"accession_generation"`
}

// DryLabRequest is the body for POST /api/v1/routing/drylab
type DryLabRequest struct {
	UserID          int64   `json:"user_id"`
	CurrentJobType  string  `json:"current_job_type"`
	ReportOptionIDs []int64 `json:"report_option_ids"`
}

// ValidateRequest is the body for POST /api/v1/routing/validate
type ValidateRequest struct {
	UnitType string `json:"unit_type"` // "sample" or "report_option"
	UnitID   int64  `json:"unit_id"`
}

// RouteWetLab advances a batch of samples one workflow step
// POST /api/v1/routing/wetlab
func (h *RoutingHandler) RouteWetLab(c echo.Context) error {
	var req WetLabRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.SampleIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "sample_ids is required")
	}

	actor := models.Actor{UserID: req.UserID, CurrentJobType: req.CurrentJobType}
	results, err := h.router.RouteWetLab(c.Request().Context(), actor, req.SampleIDs, req.AccessionGeneration)
	if err != nil {
		return h.routingError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

// RouteDryLab advances a batch of report options one workflow step
// POST /api/v1/routing/drylab
func (h *RoutingHandler) RouteDryLab(c echo.Context) error {
	var req DryLabRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.ReportOptionIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "report_option_ids is required")
	}

	actor := models.Actor{UserID: req.UserID, CurrentJobType: req.CurrentJobType}
	results, err := h.router.RouteDryLab(c.Request().Context(), actor, req.ReportOptionIDs)
	if err != nil {
		return h.routingError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

// ValidateNextStep reports whether a unit could advance without mutating it
// POST /api/v1/routing/validate
func (h *RoutingHandler) ValidateNextStep(c echo.Context) error {
	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	var canRoute bool
	var err error

	switch req.UnitType {
	case "sample":
		canRoute, err = h.router.ValidateNextStepSample(ctx, req.UnitID)
	case "report_option":
		canRoute, err = h.router.ValidateNextStepReportOption(ctx, req.UnitID)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unit_type must be sample or report_option")
	}
	if err != nil {
		h.log.ErrorContext(ctx, "validate next step failed", "unit_type", req.UnitType, "unit_id", req.UnitID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "validation failed")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"unit_type": req.UnitType,
		"unit_id":   req.UnitID,
		"can_route": canRoute,
	})
}

// routingError maps routing failures to HTTP statuses. The whole batch has
// already rolled back by the time this runs.
func (h *RoutingHandler) routingError(c echo.Context, err error) error {
	ctx := c.Request().Context()

	switch {
	case errors.Is(err, service.ErrPendingAction):
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, service.ErrNoNextStep), errors.Is(err, service.ErrStepNotFound):
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"error": err.Error(),
		})
	default:
		h.log.ErrorContext(ctx, "routing batch failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "routing failed")
	}
}
