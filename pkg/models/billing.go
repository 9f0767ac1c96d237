package models

// Plan represents a subscription plan from the backend catalog
type Plan struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	PriceID  string   `json:"price_id"`
	Features []string `json:"features"`
}

// SubscriptionRecord represents a subscription owned by the backend
type SubscriptionRecord struct {
	ID                string `json:"id"`
	CompanyID         string `json:"company_id"`
	PlanID            string `json:"plan_id,omitempty"`
	PriceID           string `json:"price_id,omitempty"`
	Status            string `json:"status"`
	CurrentPeriodEnd  string `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
}

// SetupSecretRequest represents a request for a payment setup client secret
type SetupSecretRequest struct {
	CompanyID string `json:"companyId"`
	PriceID   string `json:"priceId"`
}

// SetupSecretResponse represents the issued client secret for one setup attempt
type SetupSecretResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// CreateSubscriptionRequest represents the backend create-subscription body
type CreateSubscriptionRequest struct {
	CompanyID       string `json:"companyId"`
	PriceID         string `json:"priceId"`
	PaymentMethodID string `json:"paymentMethodId"`
}

// UpdateSubscriptionRequest represents the backend update-subscription body
type UpdateSubscriptionRequest struct {
	SubscriptionID string `json:"subscriptionId"`
	PriceID        string `json:"priceId"`
}

// CancelSubscriptionRequest represents the backend cancel-subscription body
type CancelSubscriptionRequest struct {
	SubscriptionID string `json:"subscriptionId"`
}

// CancelSubscriptionResponse represents the backend cancellation confirmation
type CancelSubscriptionResponse struct {
	SubscriptionID string `json:"subscriptionId"`
	CompanyID      string `json:"companyId,omitempty"`
	Status         string `json:"status"`
}

// SelectPlanRequest represents the checkout plan-selection body
type SelectPlanRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// CompletePaymentRequest carries the tokenized payment method for a flow
type CompletePaymentRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required,startswith=pm_"`
}

// ChangePlanRequest represents a plan change for an existing subscription
type ChangePlanRequest struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
	PlanID         string `json:"plan_id" validate:"required"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
