package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/setupintent"
)

// StripeConfig holds Stripe configuration
type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	// ReturnURL is only used when a redirect-based method forces one.
	ReturnURL string
}

// StripeProcessor implements Processor using the Stripe SDK
type StripeProcessor struct {
	config StripeConfig
}

// NewStripeProcessor creates a Stripe-backed processor
func NewStripeProcessor(config StripeConfig) (*StripeProcessor, error) {
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	// Set Stripe API key
	stripe.Key = config.SecretKey

	return &StripeProcessor{config: config}, nil
}

// intentIDFromSecret extracts the setup-intent id from its client secret.
// Secrets have the form "seti_xxx_secret_yyy".
func intentIDFromSecret(clientSecret string) (string, error) {
	id, _, found := strings.Cut(clientSecret, "_secret_")
	if !found || !strings.HasPrefix(id, "seti_") {
		return "", fmt.Errorf("malformed client secret")
	}
	return id, nil
}

// ConfirmSetup confirms the setup intent scoped by clientSecret. Processor
// rejections come back as a SetupError in the result; transport and SDK
// failures come back as a plain error.
func (p *StripeProcessor) ConfirmSetup(ctx context.Context, clientSecret string, redirect RedirectPreference) (*ConfirmResult, error) {
	intentID, err := intentIDFromSecret(clientSecret)
	if err != nil {
		return nil, err
	}

	params := &stripe.SetupIntentConfirmParams{}
	// SetupIntentConfirmParams has no ClientSecret field in stripe-go v76;
	// send it as an extra form value, which encodes identically.
	params.AddExtra("client_secret", clientSecret)
	params.Context = ctx
	if redirect == RedirectAlways && p.config.ReturnURL != "" {
		params.ReturnURL = stripe.String(p.config.ReturnURL)
	}

	si, err := setupintent.Confirm(intentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return &ConfirmResult{Err: &SetupError{
				Code:    string(stripeErr.Code),
				Message: stripeErr.Msg,
			}}, nil
		}
		return nil, fmt.Errorf("failed confirming setup intent: %w", err)
	}

	intent := &SetupIntent{
		ID:     si.ID,
		Status: string(si.Status),
	}
	if si.PaymentMethod != nil && si.PaymentMethod.ID != "" {
		raw, err := json.Marshal(si.PaymentMethod.ID)
		if err != nil {
			return nil, fmt.Errorf("failed encoding payment method id: %w", err)
		}
		intent.PaymentMethod = raw
	}

	return &ConfirmResult{Intent: intent}, nil
}
