package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/staffpilot/portal/pkg/api/errors"
	"github.com/staffpilot/portal/pkg/checkout"
	"github.com/staffpilot/portal/pkg/metrics"
	"github.com/staffpilot/portal/pkg/models"
	"github.com/staffpilot/portal/pkg/session"
)

// CheckoutHandler handles the subscription checkout flow endpoints
type CheckoutHandler struct {
	manager   *checkout.Manager
	service   *checkout.Service
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(manager *checkout.Manager, service *checkout.Service, m *metrics.Metrics) *CheckoutHandler {
	return &CheckoutHandler{
		manager:   manager,
		service:   service,
		metrics:   m,
		validator: validator.New(),
	}
}

// StartCheckoutRequest opens a new checkout flow for the session company
type StartCheckoutRequest struct {
	CurrentPlanID string `json:"current_plan_id"`
}

// Start creates a flow and loads the plan catalog into it
func (h *CheckoutHandler) Start(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req StartCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	flow := h.manager.Create(sess.Principal.CompanyID, req.CurrentPlanID, h.service)
	if err := flow.LoadCatalog(c.Request().Context()); err != nil {
		// No partial catalog: drop the flow, the client retries Start.
		h.manager.Delete(flow.ID())
		return apierrors.BackendError(c, err)
	}

	h.metrics.CheckoutsStarted.Inc()
	return c.JSON(http.StatusCreated, flow.State())
}

// flow resolves the flow referenced by the :id param for the session company.
// A flow belonging to another company is reported as not found rather than
// revealing that the id exists.
func (h *CheckoutHandler) flow(c echo.Context) (*checkout.Flow, error) {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return nil, apierrors.UnauthorizedError(c)
	}
	flow, ok := h.manager.Get(c.Param("id"))
	if !ok || flow.CompanyID() != sess.Principal.CompanyID {
		return nil, apierrors.NotFoundError(c)
	}
	return flow, nil
}

// GetState returns the current flow snapshot
func (h *CheckoutHandler) GetState(c echo.Context) error {
	flow, err := h.flow(c)
	if flow == nil {
		return err
	}
	return c.JSON(http.StatusOK, flow.State())
}

// SelectPlan records a plan choice and requests the setup client secret
func (h *CheckoutHandler) SelectPlan(c echo.Context) error {
	flow, err := h.flow(c)
	if flow == nil {
		return err
	}

	var req models.SelectPlanRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	switch err := flow.SelectPlan(c.Request().Context(), req.PlanID); {
	case err == nil:
		return c.JSON(http.StatusOK, flow.State())
	case errors.Is(err, checkout.ErrUnknownPlan), errors.Is(err, checkout.ErrCatalogNotLoaded):
		return apierrors.ValidationError(c, err)
	case errors.Is(err, checkout.ErrCurrentPlan):
		return apierrors.ConflictError(c, "This is already your current plan.")
	case errors.Is(err, checkout.ErrInvalidStep), errors.Is(err, checkout.ErrSuperseded):
		return apierrors.ConflictError(c, "The checkout flow moved on. Reload and try again.")
	default:
		h.metrics.CheckoutsFailed.WithLabelValues("select_plan").Inc()
		return apierrors.BackendError(c, err)
	}
}

// CompletePayment finishes checkout with a tokenized payment method
func (h *CheckoutHandler) CompletePayment(c echo.Context) error {
	flow, err := h.flow(c)
	if flow == nil {
		return err
	}

	var req models.CompletePaymentRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	switch _, err := flow.CompletePayment(c.Request().Context(), req.PaymentMethodID); {
	case err == nil:
		h.metrics.CheckoutsConfirmed.Inc()
		return c.JSON(http.StatusOK, flow.State())
	case errors.Is(err, checkout.ErrInvalidStep), errors.Is(err, checkout.ErrSuperseded):
		return apierrors.ConflictError(c, "The checkout flow moved on. Reload and try again.")
	default:
		h.metrics.CheckoutsFailed.WithLabelValues("complete_payment").Inc()
		return apierrors.BackendError(c, err)
	}
}

// CancelPayment abandons the payment step and returns to plan selection
func (h *CheckoutHandler) CancelPayment(c echo.Context) error {
	flow, err := h.flow(c)
	if flow == nil {
		return err
	}

	if err := flow.CancelPayment(); err != nil {
		return apierrors.ConflictError(c, "There is no payment step to cancel.")
	}
	return c.JSON(http.StatusOK, flow.State())
}

// ReturnToPlanSelection recovers a failed flow back to plan selection
func (h *CheckoutHandler) ReturnToPlanSelection(c echo.Context) error {
	flow, err := h.flow(c)
	if flow == nil {
		return err
	}

	if err := flow.ReturnToPlanSelection(); err != nil {
		return apierrors.ConflictError(c, "The checkout flow is not in a failed state.")
	}
	return c.JSON(http.StatusOK, flow.State())
}

// Abandon drops the flow entirely, e.g. when the user navigates away
func (h *CheckoutHandler) Abandon(c echo.Context) error {
	flow, err := h.flow(c)
	if flow == nil {
		return err
	}

	h.manager.Delete(flow.ID())
	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

// GetPlans returns the cached plan catalog keyed by plan id
func (h *CheckoutHandler) GetPlans(c echo.Context) error {
	if _, ok := session.FromContext(c.Request().Context()); !ok {
		return apierrors.UnauthorizedError(c)
	}

	plans, err := h.service.GetPlans(c.Request().Context())
	if err != nil {
		return apierrors.BackendError(c, err)
	}
	return c.JSON(http.StatusOK, plans)
}
