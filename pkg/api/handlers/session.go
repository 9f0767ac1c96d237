package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/staffpilot/portal/pkg/api/errors"
	"github.com/staffpilot/portal/pkg/models"
	"github.com/staffpilot/portal/pkg/session"
)

// SessionHandler exposes the session endpoints
type SessionHandler struct{}

// NewSessionHandler creates a new session handler
func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

// Me returns the read-only principal for the current session
func (h *SessionHandler) Me(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"company_id": sess.Principal.CompanyID,
		"user_email": sess.Principal.UserEmail,
		"role":       sess.Principal.Role,
	})
}

// Logout dispatches the logout action through the session
func (h *SessionHandler) Logout(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	sess.Logout()
	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Logged out"})
}
