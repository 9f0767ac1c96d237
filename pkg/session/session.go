package session

import (
	"context"

	"github.com/labstack/echo/v4"
)

// Principal is the read-only identity injected into every request. The
// portal never authenticates users itself; the auth layer in front of it
// resolves the session and forwards these values.
type Principal struct {
	CompanyID string
	UserEmail string
	Role      string
}

// Action is a session-level action dispatched by a component. Components
// never mutate session state directly; they dispatch and the owner reacts.
type Action int

const (
	// ActionLogout asks the session owner to end the session
	ActionLogout Action = iota
)

// Session bundles the principal with a dispatch function for session actions
type Session struct {
	Principal Principal
	dispatch  func(Action)
}

// New creates a session around a principal. dispatch may be nil when the
// caller has no session actions to handle (tests, background jobs).
func New(p Principal, dispatch func(Action)) Session {
	return Session{Principal: p, dispatch: dispatch}
}

// Logout dispatches the logout action to the session owner
func (s Session) Logout() {
	if s.dispatch != nil {
		s.dispatch(ActionLogout)
	}
}

type contextKey struct{}

// WithSession returns a context carrying the session
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext extracts the session from a context
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

// Header names set by the auth proxy in front of the portal.
const (
	HeaderCompanyID = "X-Company-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
)

// Middleware injects the forwarded principal into the request context.
// Requests without a company ID are rejected upstream; here they simply
// carry no session and handlers respond 401.
func Middleware(dispatch func(Action)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			companyID := c.Request().Header.Get(HeaderCompanyID)
			if companyID == "" {
				return next(c)
			}

			s := New(Principal{
				CompanyID: companyID,
				UserEmail: c.Request().Header.Get(HeaderUserEmail),
				Role:      c.Request().Header.Get(HeaderUserRole),
			}, dispatch)

			ctx := WithSession(c.Request().Context(), s)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
