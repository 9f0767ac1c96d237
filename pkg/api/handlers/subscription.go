package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/staffpilot/portal/pkg/api/errors"
	"github.com/staffpilot/portal/pkg/checkout"
	"github.com/staffpilot/portal/pkg/models"
	"github.com/staffpilot/portal/pkg/session"
)

// SubscriptionHandler handles management of existing subscriptions
type SubscriptionHandler struct {
	service   *checkout.Service
	validator *validator.Validate
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(service *checkout.Service) *SubscriptionHandler {
	return &SubscriptionHandler{
		service:   service,
		validator: validator.New(),
	}
}

// List returns the session company's subscriptions through the cache
func (h *SubscriptionHandler) List(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	records, err := h.service.GetSubscriptions(c.Request().Context(), sess.Principal.CompanyID)
	if err != nil {
		return apierrors.BackendError(c, err)
	}
	return c.JSON(http.StatusOK, records)
}

// ChangePlan moves an existing subscription to another plan
func (h *SubscriptionHandler) ChangePlan(c echo.Context) error {
	if _, ok := session.FromContext(c.Request().Context()); !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req models.ChangePlanRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	record, err := h.service.ChangePlan(c.Request().Context(), req.SubscriptionID, req.PlanID)
	if err != nil {
		if errors.Is(err, checkout.ErrUnknownPlan) {
			return apierrors.ValidationError(c, err)
		}
		return apierrors.BackendError(c, err)
	}

	return c.JSON(http.StatusOK, record)
}

// Cancel cancels an existing subscription
func (h *SubscriptionHandler) Cancel(c echo.Context) error {
	if _, ok := session.FromContext(c.Request().Context()); !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req models.CancelSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if req.SubscriptionID == "" {
		return apierrors.ValidationError(c, errors.New("subscriptionId is required"))
	}

	resp, err := h.service.CancelSubscription(c.Request().Context(), req.SubscriptionID)
	if err != nil {
		return apierrors.BackendError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}
