package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/staffpilot/portal/pkg/api/errors"
	"github.com/staffpilot/portal/pkg/checkout"
	"github.com/staffpilot/portal/pkg/models"
	"github.com/staffpilot/portal/pkg/payment"
	"github.com/staffpilot/portal/pkg/session"
)

// PaymentHandler drives server-side payment-method setup for flows that do
// not embed the processor's browser surface. It confirms the setup intent
// through the processor and hands the resulting token to the flow.
type PaymentHandler struct {
	manager        *checkout.Manager
	processor      payment.Processor
	publishableKey string
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(manager *checkout.Manager, processor payment.Processor, publishableKey string) *PaymentHandler {
	return &PaymentHandler{
		manager:        manager,
		processor:      processor,
		publishableKey: publishableKey,
	}
}

// GetConfig returns the publishable key the embedded payment surface needs
func (h *PaymentHandler) GetConfig(c echo.Context) error {
	if _, ok := session.FromContext(c.Request().Context()); !ok {
		return apierrors.UnauthorizedError(c)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"publishable_key": h.publishableKey,
	})
}

// ConfirmSetup confirms the flow's pending setup intent through the payment
// processor and completes the flow with the confirmed payment method.
func (h *PaymentHandler) ConfirmSetup(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return apierrors.UnauthorizedError(c)
	}
	flow, ok := h.manager.Get(c.Param("id"))
	if !ok || flow.CompanyID() != sess.Principal.CompanyID {
		return apierrors.NotFoundError(c)
	}

	state := flow.State()
	if state.Step != checkout.StepCollectingPayment || state.ClientSecret == "" {
		return apierrors.ConflictError(c, "There is no payment setup in progress.")
	}

	var token string
	form := payment.NewSetupForm(h.processor, state.ClientSecret, func(t string) {
		token = t
	}, nil)
	form.MarkReady()
	form.Submit(c.Request().Context())

	if !form.Succeeded() {
		return c.JSON(http.StatusPaymentRequired, models.ErrorResponse{
			Error:   "payment_setup_failed",
			Message: form.ErrorMessage(),
		})
	}

	if _, err := flow.CompletePayment(c.Request().Context(), token); err != nil {
		return apierrors.BackendError(c, err)
	}
	return c.JSON(http.StatusOK, flow.State())
}
