package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffpilot/portal/pkg/cache"
	"github.com/staffpilot/portal/pkg/checkout"
	"github.com/staffpilot/portal/pkg/metrics"
	"github.com/staffpilot/portal/pkg/models"
	"github.com/staffpilot/portal/pkg/session"
)

// Prometheus collectors register globally, so the handler tests share one
// Metrics instance.
var testMetrics = metrics.New()

// fakeHRBackend is an in-memory stand-in for the HR backend API
type fakeHRBackend struct {
	plans    map[string]models.Plan
	plansErr error

	secret      string
	secretErr   error
	secretCalls int

	subscriptions []models.SubscriptionRecord
	subsErr       error

	createRecord *models.SubscriptionRecord
	createErr    error
	createCalls  []models.CreateSubscriptionRequest

	updateRecord *models.SubscriptionRecord
	updateErr    error

	cancelResp *models.CancelSubscriptionResponse
	cancelErr  error
}

func newFakeHRBackend() *fakeHRBackend {
	return &fakeHRBackend{
		plans: map[string]models.Plan{
			"basic": {ID: "basic", Name: "Basic", PriceID: "price_1", Features: []string{"Payroll"}},
			"pro":   {ID: "pro", Name: "Pro", PriceID: "price_2", Features: []string{"Payroll", "Analytics"}},
		},
		secret: "cs_test_1",
		subscriptions: []models.SubscriptionRecord{
			{ID: "sub_1", CompanyID: "co_1", PriceID: "price_1", Status: "active"},
		},
		createRecord: &models.SubscriptionRecord{ID: "sub_1", CompanyID: "co_1", PriceID: "price_2", Status: "active"},
		updateRecord: &models.SubscriptionRecord{ID: "sub_1", CompanyID: "co_1", PriceID: "price_1", Status: "active"},
		cancelResp:   &models.CancelSubscriptionResponse{SubscriptionID: "sub_1", CompanyID: "co_1", Status: "canceled"},
	}
}

func (b *fakeHRBackend) GetSubscriptions(ctx context.Context, companyID string) ([]models.SubscriptionRecord, error) {
	if b.subsErr != nil {
		return nil, b.subsErr
	}
	return b.subscriptions, nil
}

func (b *fakeHRBackend) GetPlans(ctx context.Context) (map[string]models.Plan, error) {
	if b.plansErr != nil {
		return nil, b.plansErr
	}
	return b.plans, nil
}

func (b *fakeHRBackend) CreateSetupSecret(ctx context.Context, companyID, priceID string) (string, error) {
	b.secretCalls++
	if b.secretErr != nil {
		return "", b.secretErr
	}
	return b.secret, nil
}

func (b *fakeHRBackend) CreateSubscription(ctx context.Context, req models.CreateSubscriptionRequest) (*models.SubscriptionRecord, cache.Invalidation, error) {
	b.createCalls = append(b.createCalls, req)
	if b.createErr != nil {
		return nil, cache.Invalidation{}, b.createErr
	}
	return b.createRecord, cache.Invalidate(cache.Scoped(cache.ResourceSubscriptions, req.CompanyID)), nil
}

func (b *fakeHRBackend) UpdateSubscription(ctx context.Context, req models.UpdateSubscriptionRequest) (*models.SubscriptionRecord, cache.Invalidation, error) {
	if b.updateErr != nil {
		return nil, cache.Invalidation{}, b.updateErr
	}
	return b.updateRecord, cache.Invalidate(cache.Scoped(cache.ResourceSubscriptions, b.updateRecord.CompanyID)), nil
}

func (b *fakeHRBackend) CancelSubscription(ctx context.Context, subscriptionID string) (*models.CancelSubscriptionResponse, cache.Invalidation, error) {
	if b.cancelErr != nil {
		return nil, cache.Invalidation{}, b.cancelErr
	}
	return b.cancelResp, cache.Invalidate(cache.Scoped(cache.ResourceSubscriptions, b.cancelResp.CompanyID)), nil
}

// setupCheckoutTest wires a checkout handler over miniredis and the fake backend
func setupCheckoutTest(t *testing.T) (*CheckoutHandler, *checkout.Manager, *fakeHRBackend) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := &cache.Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	store := cache.NewStore(client, "portal", time.Hour)

	backend := newFakeHRBackend()
	service := checkout.NewService(backend, store)
	manager := checkout.NewManager(time.Minute, time.Minute)

	return NewCheckoutHandler(manager, service, testMetrics), manager, backend
}

// newRequest builds an echo context carrying a session for company co_1
func newRequest(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	return newRequestAs(t, "co_1", method, target, body)
}

// newRequestAs builds an echo context carrying a session for companyID
func newRequestAs(t *testing.T, companyID, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	sess := session.New(session.Principal{CompanyID: companyID, UserEmail: "owner@acme.test", Role: "admin"}, nil)
	req = req.WithContext(session.WithSession(req.Context(), sess))

	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// newAnonymousRequest builds an echo context without a session
func newAnonymousRequest(t *testing.T, method, target string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) checkout.State {
	t.Helper()
	var state checkout.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	return state
}

// startFlow runs the Start handler and returns the created flow state
func startFlow(t *testing.T, h *CheckoutHandler, currentPlanID string) checkout.State {
	t.Helper()
	c, rec := newRequest(t, http.MethodPost, "/api/v1/checkout", `{"current_plan_id":"`+currentPlanID+`"}`)
	require.NoError(t, h.Start(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeState(t, rec)
}

func flowContext(t *testing.T, method, target, body, flowID string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	c, rec := newRequest(t, method, target, body)
	c.SetParamNames("id")
	c.SetParamValues(flowID)
	return c, rec
}

func TestCheckoutHandler_StartCreatesFlowWithCatalog(t *testing.T) {
	h, manager, _ := setupCheckoutTest(t)

	state := startFlow(t, h, "basic")
	assert.Equal(t, checkout.StepSelectingPlan, state.Step)
	assert.Len(t, state.Cards, 2)
	assert.Equal(t, 1, manager.Count())

	// The current plan card is marked and disabled
	for _, card := range state.Cards {
		if card.PlanID == "basic" {
			assert.True(t, card.Current)
			assert.True(t, card.Disabled)
		}
	}
}

func TestCheckoutHandler_StartRequiresSession(t *testing.T) {
	h, manager, _ := setupCheckoutTest(t)

	c, rec := newAnonymousRequest(t, http.MethodPost, "/api/v1/checkout")
	require.NoError(t, h.Start(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, manager.Count())
}

func TestCheckoutHandler_StartDropsFlowWhenCatalogFails(t *testing.T) {
	h, manager, backend := setupCheckoutTest(t)
	backend.plansErr = errors.New("backend down")

	c, rec := newRequest(t, http.MethodPost, "/api/v1/checkout", `{"current_plan_id":"basic"}`)
	require.NoError(t, h.Start(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, 0, manager.Count())
}

func TestCheckoutHandler_GetStateUnknownFlow(t *testing.T) {
	h, _, _ := setupCheckoutTest(t)

	c, rec := flowContext(t, http.MethodGet, "/api/v1/checkout/nope", "", "nope")
	require.NoError(t, h.GetState(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutHandler_FlowHiddenFromOtherCompany(t *testing.T) {
	h, _, _ := setupCheckoutTest(t)
	state := startFlow(t, h, "basic")

	// A session for a different company must not see or drive the flow
	c, rec := newRequestAs(t, "co_2", http.MethodGet, "/api/v1/checkout/"+state.FlowID, "")
	c.SetParamNames("id")
	c.SetParamValues(state.FlowID)
	require.NoError(t, h.GetState(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newRequestAs(t, "co_2", http.MethodPost, "/api/v1/checkout/"+state.FlowID+"/plan", `{"plan_id":"pro"}`)
	c.SetParamNames("id")
	c.SetParamValues(state.FlowID)
	require.NoError(t, h.SelectPlan(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The owner still resolves it
	c, rec = flowContext(t, http.MethodGet, "/api/v1/checkout/"+state.FlowID, "", state.FlowID)
	require.NoError(t, h.GetState(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckoutHandler_SelectPlanMovesToPaymentCollection(t *testing.T) {
	h, _, _ := setupCheckoutTest(t)
	state := startFlow(t, h, "basic")

	c, rec := flowContext(t, http.MethodPost, "/api/v1/checkout/"+state.FlowID+"/plan", `{"plan_id":"pro"}`, state.FlowID)
	require.NoError(t, h.SelectPlan(c))
	require.Equal(t, http.StatusOK, rec.Code)

	next := decodeState(t, rec)
	assert.Equal(t, checkout.StepCollectingPayment, next.Step)
	assert.Equal(t, "pro", next.SelectedPlanID)
	assert.Equal(t, "cs_test_1", next.ClientSecret)
}

func TestCheckoutHandler_SelectPlanValidation(t *testing.T) {
	h, _, _ := setupCheckoutTest(t)
	state := startFlow(t, h, "basic")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing plan id", `{}`, http.StatusBadRequest},
		{"unknown plan", `{"plan_id":"enterprise"}`, http.StatusBadRequest},
		{"current plan", `{"plan_id":"basic"}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := flowContext(t, http.MethodPost, "/api/v1/checkout/"+state.FlowID+"/plan", tt.body, state.FlowID)
			require.NoError(t, h.SelectPlan(c))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCheckoutHandler_SelectPlanBackendFailure(t *testing.T) {
	h, _, backend := setupCheckoutTest(t)
	state := startFlow(t, h, "basic")
	backend.secretErr = errors.New("processor unavailable")

	c, rec := flowContext(t, http.MethodPost, "/api/v1/checkout/"+state.FlowID+"/plan", `{"plan_id":"pro"}`, state.FlowID)
	require.NoError(t, h.SelectPlan(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// The flow surfaces the failure but keeps the selection for retry
	c, rec = flowContext(t, http.MethodGet, "/api/v1/checkout/"+state.FlowID, "", state.FlowID)
	require.NoError(t, h.GetState(c))
	failed := decodeState(t, rec)
	assert.Equal(t, checkout.StepFailed, failed.Step)
	assert.Equal(t, "pro", failed.SelectedPlanID)
	assert.Empty(t, failed.ClientSecret)
}

func TestCheckoutHandler_CompletePaymentConfirms(t *testing.T) {
	h, _, backend := setupCheckoutTest(t)
	state := startFlow(t, h, "basic")

	c, rec := flowContext(t, http.MethodPost, "/api/v1/checkout/"+state.FlowID+"/plan", `{"plan_id":"pro"}`, state.FlowID)
	require.NoError(t, h.SelectPlan(c))
	require.Equal(t, http.StatusOK, rec.Code)

	c, rec = flowContext(t, http.MethodPost, "/api/v1/checkout/"+state.FlowID+"/payment", `{"payment_method_id":"pm_123"}`, state.FlowID)
	require.NoError(t, h.CompletePayment(c))
	require.Equal(t, http.StatusOK, rec.Code)

	confirmed := decodeState(t, rec)
	assert.Equal(t, checkout.StepConfirmed, confirmed.Step)
	require.NotNil(t, confirmed.Subscription)
	assert.Equal(t, "active", confirmed.Subscription.Status)

	require.Len(t, backend.createCalls, 1)
	assert.Equal(t, "co_1", backend.createCalls[0].CompanyID)
	assert.Equal(t, "price_2", backend.createCalls[0].PriceID)
	assert.Equal(t, "pm_123", backend.createCalls[0].PaymentMethodID)
}

func TestCheckoutHandler_CompletePaymentRejectsBadToken(t *testing.T) {
	h, _, _ := setupCheckoutTest(t)
	state := startFlow(t, h, "basic")

	c, rec := flowContext(t, http.MethodPost, "/api/v1/checkout/"+state.FlowID+"/plan", `{"plan_id":"pro"}`, state.FlowID)
	require.NoError(t, h.SelectPlan(c))

	c, rec = flowContext(t, http.MethodPost, "/api/v1/checkout/"+state.FlowID+"/payment", `{"payment_method_id":"card_123"}`, state.FlowID)
	require.NoError(t, h.CompletePayment(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutHandler_CompletePaymentOutsidePaymentStep(t *testing.T) {
	h, _, _ := setupCheckoutTest(t)
	state := startFlow(t, h, "basic")

	c, rec := flowContext(t, http.MethodPost, "/api/v1/checkout/"+state.FlowID+"/payment", `{"payment_method_id":"pm_123"}`, state.FlowID)
	require.NoError(t, h.CompletePayment(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "conflict", resp.Error)
}

func TestCheckoutHandler_CancelPaymentReturnsToSelection(t *testing.T) {
	h, _, _ := setupCheckoutTest(t)
	state := startFlow(t, h, "basic")

	c, _ := flowContext(t, http.MethodPost, "/api/v1/checkout/"+state.FlowID+"/plan", `{"plan_id":"pro"}`, state.FlowID)
	require.NoError(t, h.SelectPlan(c))

	c, rec := flowContext(t, http.MethodPost, "/api/v1/checkout/"+state.FlowID+"/cancel", "", state.FlowID)
	require.NoError(t, h.CancelPayment(c))
	require.Equal(t, http.StatusOK, rec.Code)

	back := decodeState(t, rec)
	assert.Equal(t, checkout.StepSelectingPlan, back.Step)
	assert.Empty(t, back.ClientSecret)
}

func TestCheckoutHandler_AbandonRemovesFlow(t *testing.T) {
	h, manager, _ := setupCheckoutTest(t)
	state := startFlow(t, h, "basic")

	c, rec := flowContext(t, http.MethodDelete, "/api/v1/checkout/"+state.FlowID, "", state.FlowID)
	require.NoError(t, h.Abandon(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, manager.Count())
}

func TestCheckoutHandler_GetPlans(t *testing.T) {
	h, _, _ := setupCheckoutTest(t)

	c, rec := newRequest(t, http.MethodGet, "/api/v1/plans", "")
	require.NoError(t, h.GetPlans(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var plans map[string]models.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	assert.Len(t, plans, 2)
	assert.Equal(t, "price_2", plans["pro"].PriceID)
}
