package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/staffpilot/portal/pkg/analytics"
	apierrors "github.com/staffpilot/portal/pkg/api/errors"
	"github.com/staffpilot/portal/pkg/session"
)

// DashboardHandler serves the dashboard chart series
type DashboardHandler struct {
	analytics *analytics.Service
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(analyticsService *analytics.Service) *DashboardHandler {
	return &DashboardHandler{analytics: analyticsService}
}

// GetCharts returns both payroll chart series for the session company
func (h *DashboardHandler) GetCharts(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	charts, err := h.analytics.DashboardCharts(c.Request().Context(), sess.Principal.CompanyID)
	if err != nil {
		return apierrors.BackendError(c, err)
	}
	return c.JSON(http.StatusOK, charts)
}

// GetPayrollByMonth returns the monthly payroll series
func (h *DashboardHandler) GetPayrollByMonth(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	series, err := h.analytics.PayrollByMonth(c.Request().Context(), sess.Principal.CompanyID)
	if err != nil {
		return apierrors.BackendError(c, err)
	}
	return c.JSON(http.StatusOK, series)
}

// GetPayrollByDepartment returns the per-department payroll series
func (h *DashboardHandler) GetPayrollByDepartment(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	series, err := h.analytics.PayrollByDepartment(c.Request().Context(), sess.Principal.CompanyID)
	if err != nil {
		return apierrors.BackendError(c, err)
	}
	return c.JSON(http.StatusOK, series)
}
