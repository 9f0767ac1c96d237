// Package payment wraps the third-party payment processor. The processor
// owns all card data; the portal only ever sees client secrets going in and
// payment-method tokens coming out.
package payment

import (
	"context"
	"encoding/json"
)

// RedirectPreference tells the processor how to handle redirect-based
// payment methods during setup confirmation.
type RedirectPreference string

const (
	// RedirectIfRequired avoids a full-page redirect whenever possible
	RedirectIfRequired RedirectPreference = "if_required"
	// RedirectAlways permits the processor to redirect
	RedirectAlways RedirectPreference = "always"
)

// SetupError is a setup failure reported by the processor itself, such as a
// declined card. Its message is user-correctable and surfaced verbatim.
type SetupError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *SetupError) Error() string {
	return e.Message
}

// SetupIntent mirrors the processor's setup-intent payload. PaymentMethod is
// kept raw because the processor may return either a string token or an
// expanded object; only the string form is a usable token.
type SetupIntent struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	PaymentMethod json.RawMessage `json:"payment_method"`
}

// PaymentMethodToken returns the tokenized payment method if the intent
// carries one in usable string form.
func (si *SetupIntent) PaymentMethodToken() (string, bool) {
	if si == nil || len(si.PaymentMethod) == 0 {
		return "", false
	}
	var token string
	if err := json.Unmarshal(si.PaymentMethod, &token); err != nil || token == "" {
		return "", false
	}
	return token, true
}

// ConfirmResult is the outcome of one confirm-setup call: exactly one of
// Err and Intent is set.
type ConfirmResult struct {
	Err    *SetupError
	Intent *SetupIntent
}

// Processor is the confirm-setup seam to the payment processor SDK
type Processor interface {
	ConfirmSetup(ctx context.Context, clientSecret string, redirect RedirectPreference) (*ConfirmResult, error)
}
