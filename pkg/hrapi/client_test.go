package hrapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffpilot/portal/pkg/cache"
	"github.com/staffpilot/portal/pkg/models"
)

func TestClient_GetPlans(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/subscriptions/plans", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]models.Plan{
			"basic": {ID: "basic", Name: "Basic", PriceID: "price_1", Features: []string{"A"}},
			"pro":   {ID: "pro", Name: "Pro", PriceID: "price_2", Features: []string{"A", "B"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	plans, err := client.GetPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "price_2", plans["pro"].PriceID)
}

func TestClient_CreateSetupSecret(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions/secret", r.URL.Path)

		var req models.SetupSecretRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "co_1", req.CompanyID)
		assert.Equal(t, "price_2", req.PriceID)

		_ = json.NewEncoder(w).Encode(models.SetupSecretResponse{ClientSecret: "cs_test_1"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	secret, err := client.CreateSetupSecret(context.Background(), "co_1", "price_2")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", secret)
}

func TestClient_CreateSetupSecret_EmptySecretRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.SetupSecretResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.CreateSetupSecret(context.Background(), "co_1", "price_2")
	assert.Error(t, err)
}

func TestClient_CreateSubscriptionReturnsInvalidation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions/create", r.URL.Path)

		var req models.CreateSubscriptionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "pm_123", req.PaymentMethodID)

		_ = json.NewEncoder(w).Encode(models.SubscriptionRecord{
			ID:        "sub_1",
			CompanyID: req.CompanyID,
			PriceID:   req.PriceID,
			Status:    "active",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	record, inv, err := client.CreateSubscription(context.Background(), models.CreateSubscriptionRequest{
		CompanyID:       "co_1",
		PriceID:         "price_2",
		PaymentMethodID: "pm_123",
	})
	require.NoError(t, err)
	assert.Equal(t, "active", record.Status)
	assert.Contains(t, inv.Resources, cache.Scoped(cache.ResourceSubscriptions, "co_1"))
	assert.False(t, inv.Empty())
}

func TestClient_BackendErrorSurfacesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"payment_declined"}`, http.StatusPaymentRequired)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, inv, err := client.CreateSubscription(context.Background(), models.CreateSubscriptionRequest{})
	require.Error(t, err)
	assert.True(t, inv.Empty(), "failed mutation must not invalidate anything")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
}

func TestClient_CancelSubscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions/cancel", r.URL.Path)
		_ = json.NewEncoder(w).Encode(models.CancelSubscriptionResponse{
			SubscriptionID: "sub_1",
			CompanyID:      "co_1",
			Status:         "canceled",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	resp, inv, err := client.CancelSubscription(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "canceled", resp.Status)
	assert.Contains(t, inv.Resources, cache.Scoped(cache.ResourceSubscriptions, "co_1"))
}

func TestClient_GetSubscriptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/subscriptions", r.URL.Path)
		assert.Equal(t, "co_1", r.URL.Query().Get("companyId"))
		_ = json.NewEncoder(w).Encode([]models.SubscriptionRecord{
			{ID: "sub_1", CompanyID: "co_1", PriceID: "price_2", Status: "active"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	records, err := client.GetSubscriptions(context.Background(), "co_1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "active", records[0].Status)
}

func TestClient_GetPayrollRecordsQueryParam(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payroll/records", r.URL.Path)
		assert.Equal(t, "co 1", r.URL.Query().Get("companyId"))
		_ = json.NewEncoder(w).Encode([]models.PayrollRecord{
			{ID: "pr_1", DepartmentID: "d1", Amount: 4200, PayDate: "2026-08-31"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	records, err := client.GetPayrollRecords(context.Background(), "co 1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 4200.0, records[0].Amount)
}
