// Package checkout owns the subscription checkout flow: plan selection,
// payment-method setup, and subscription creation, sequenced against the HR
// backend and the payment processor. The backend stays the source of truth
// for billing state; a flow only holds what is needed to move between steps.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/staffpilot/portal/pkg/cache"
	"github.com/staffpilot/portal/pkg/catalog"
	"github.com/staffpilot/portal/pkg/models"
)

// Step is the checkout flow step
type Step string

const (
	StepSelectingPlan     Step = "selecting_plan"
	StepCollectingPayment Step = "collecting_payment"
	StepConfirmed         Step = "confirmed"
	StepFailed            Step = "failed"
)

var (
	// ErrInvalidStep rejects an operation not permitted in the current step
	ErrInvalidStep = errors.New("operation not valid in current checkout step")
	// ErrUnknownPlan rejects a plan id missing from the loaded catalog
	ErrUnknownPlan = errors.New("unknown plan")
	// ErrCurrentPlan rejects selecting the company's active plan
	ErrCurrentPlan = errors.New("plan is already the current plan")
	// ErrCatalogNotLoaded rejects selection before the catalog arrived
	ErrCatalogNotLoaded = errors.New("plan catalog not loaded")
	// ErrSuperseded marks a result that arrived after the user left the step
	// it belonged to; it is discarded without touching flow state.
	ErrSuperseded = errors.New("checkout step changed while request was in flight")
)

// Backend is the slice of the HR backend API a flow needs
type Backend interface {
	GetPlans(ctx context.Context) (map[string]models.Plan, error)
	CreateSetupSecret(ctx context.Context, companyID, priceID string) (string, error)
	CreateSubscription(ctx context.Context, req models.CreateSubscriptionRequest) (*models.SubscriptionRecord, cache.Invalidation, error)
}

// Flow is one page session's checkout state machine. All state lives in
// memory for the session's lifetime only; a page reload starts a new flow.
type Flow struct {
	mu sync.Mutex

	id            string
	companyID     string
	currentPlanID string
	backend       Backend

	// epoch increments whenever the flow's intent changes: a new selection
	// or a step change. An async result started under an older epoch is
	// stale and must not be applied.
	epoch int

	step           Step
	plans          map[string]models.Plan
	selectedPlanID string
	clientSecret   string
	failure        string
	subscription   *models.SubscriptionRecord
}

// NewFlow creates a flow in the plan-selection step
func NewFlow(id, companyID, currentPlanID string, backend Backend) *Flow {
	return &Flow{
		id:            id,
		companyID:     companyID,
		currentPlanID: currentPlanID,
		backend:       backend,
		step:          StepSelectingPlan,
	}
}

// ID returns the flow id
func (f *Flow) ID() string {
	return f.id
}

// CompanyID returns the company the flow belongs to
func (f *Flow) CompanyID() string {
	return f.companyID
}

// LoadCatalog fetches the plan catalog. On failure nothing is stored: the
// page shows a retryable error rather than a partial catalog.
func (f *Flow) LoadCatalog(ctx context.Context) error {
	plans, err := f.backend.GetPlans(ctx)
	if err != nil {
		return fmt.Errorf("failed loading plan catalog: %w", err)
	}

	f.mu.Lock()
	f.plans = plans
	f.mu.Unlock()
	return nil
}

// SelectPlan records the selection immediately, then requests a setup client
// secret for it. The selection itself is synchronous: selectedPlanID is set
// before the secret request goes out. Permitted from SelectingPlan and, to
// retry payment for an already chosen plan, from Failed.
func (f *Flow) SelectPlan(ctx context.Context, planID string) error {
	f.mu.Lock()
	if f.step != StepSelectingPlan && f.step != StepFailed {
		f.mu.Unlock()
		return ErrInvalidStep
	}
	if f.plans == nil {
		f.mu.Unlock()
		return ErrCatalogNotLoaded
	}
	plan, ok := f.plans[planID]
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}
	if planID == f.currentPlanID {
		f.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCurrentPlan, planID)
	}

	// Recording the selection bumps the epoch so a secret request still in
	// flight for a previous selection can no longer be applied.
	f.selectedPlanID = planID
	f.epoch++
	epoch := f.epoch
	companyID := f.companyID
	f.mu.Unlock()

	secret, err := f.backend.CreateSetupSecret(ctx, companyID, plan.PriceID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return ErrSuperseded
	}
	if err != nil {
		f.step = StepFailed
		f.failure = "Could not start payment setup. Please try again."
		f.epoch++
		return err
	}

	f.clientSecret = secret
	f.step = StepCollectingPayment
	f.failure = ""
	f.epoch++
	return nil
}

// CompletePayment creates the subscription from a payment-method token. The
// token is only accepted while a client secret issued for the selected plan
// is active. On failure the consumed secret is discarded but the selection
// is kept, so the user retries payment without re-selecting a plan.
func (f *Flow) CompletePayment(ctx context.Context, paymentMethodToken string) (cache.Invalidation, error) {
	f.mu.Lock()
	if f.step != StepCollectingPayment || f.clientSecret == "" {
		f.mu.Unlock()
		return cache.Invalidation{}, ErrInvalidStep
	}
	plan := f.plans[f.selectedPlanID]
	epoch := f.epoch
	req := models.CreateSubscriptionRequest{
		CompanyID:       f.companyID,
		PriceID:         plan.PriceID,
		PaymentMethodID: paymentMethodToken,
	}
	f.mu.Unlock()

	record, inv, err := f.backend.CreateSubscription(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return cache.Invalidation{}, ErrSuperseded
	}

	// The secret was consumed either way; a retry needs a fresh one.
	f.clientSecret = ""
	f.epoch++

	if err != nil {
		f.step = StepFailed
		f.failure = "Could not complete your subscription. Please try again."
		return cache.Invalidation{}, err
	}

	f.step = StepConfirmed
	f.failure = ""
	f.subscription = record
	return inv, nil
}

// CancelPayment abandons the payment step and returns to plan selection
// without contacting the backend. The unused client secret is discarded.
func (f *Flow) CancelPayment() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepCollectingPayment {
		return ErrInvalidStep
	}
	f.clientSecret = ""
	f.step = StepSelectingPlan
	f.epoch++
	return nil
}

// ReturnToPlanSelection recovers from a failure back to plan selection
func (f *Flow) ReturnToPlanSelection() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepFailed {
		return ErrInvalidStep
	}
	f.clientSecret = ""
	f.step = StepSelectingPlan
	f.failure = ""
	f.epoch++
	return nil
}

// State is a read-only snapshot of the flow for rendering
type State struct {
	FlowID         string                     `json:"flow_id"`
	Step           Step                       `json:"step"`
	Cards          []catalog.Card             `json:"cards"`
	SelectedPlanID string                     `json:"selected_plan_id,omitempty"`
	ClientSecret   string                     `json:"client_secret,omitempty"`
	Failure        string                     `json:"failure,omitempty"`
	Subscription   *models.SubscriptionRecord `json:"subscription,omitempty"`
}

// State snapshots the flow
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{
		FlowID:         f.id,
		Step:           f.step,
		Cards:          catalog.Cards(f.plans, f.currentPlanID, f.selectedPlanID),
		SelectedPlanID: f.selectedPlanID,
		ClientSecret:   f.clientSecret,
		Failure:        f.failure,
		Subscription:   f.subscription,
	}
}
