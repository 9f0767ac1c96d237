// Package hrapi is the HTTP client for the HR backend REST API. The backend
// owns every piece of billing and HR state; this client only moves JSON.
package hrapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/staffpilot/portal/pkg/cache"
	"github.com/staffpilot/portal/pkg/models"
)

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Client talks to the HR backend API
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a backend API client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}
}

func (c *Client) get(ctx context.Context, endpoint string, response interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, response)
}

func (c *Client) post(ctx context.Context, endpoint string, payload, response interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, response)
}

func (c *Client) do(req *http.Request, response interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if response != nil {
		if err := json.Unmarshal(respBody, response); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// GetPlans fetches the plan catalog keyed by plan id
func (c *Client) GetPlans(ctx context.Context) (map[string]models.Plan, error) {
	var plans map[string]models.Plan
	if err := c.get(ctx, "/subscriptions/plans", &plans); err != nil {
		return nil, fmt.Errorf("failed fetching plan catalog: %w", err)
	}
	return plans, nil
}

// CreateSetupSecret requests a single-use client secret scoped to one
// payment-setup attempt for the given company and price.
func (c *Client) CreateSetupSecret(ctx context.Context, companyID, priceID string) (string, error) {
	var resp models.SetupSecretResponse
	err := c.post(ctx, "/subscriptions/secret", models.SetupSecretRequest{
		CompanyID: companyID,
		PriceID:   priceID,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed requesting setup secret: %w", err)
	}
	if resp.ClientSecret == "" {
		return "", fmt.Errorf("backend returned empty client secret")
	}
	return resp.ClientSecret, nil
}

// GetSubscriptions fetches a company's subscriptions
func (c *Client) GetSubscriptions(ctx context.Context, companyID string) ([]models.SubscriptionRecord, error) {
	var records []models.SubscriptionRecord
	endpoint := "/subscriptions?companyId=" + url.QueryEscape(companyID)
	if err := c.get(ctx, endpoint, &records); err != nil {
		return nil, fmt.Errorf("failed fetching subscriptions: %w", err)
	}
	return records, nil
}

// CreateSubscription creates a subscription from a tokenized payment method.
// The returned invalidation names the cached resources this made stale.
func (c *Client) CreateSubscription(ctx context.Context, req models.CreateSubscriptionRequest) (*models.SubscriptionRecord, cache.Invalidation, error) {
	var record models.SubscriptionRecord
	if err := c.post(ctx, "/subscriptions/create", req, &record); err != nil {
		return nil, cache.Invalidation{}, fmt.Errorf("failed creating subscription: %w", err)
	}
	return &record, cache.Invalidate(cache.Scoped(cache.ResourceSubscriptions, req.CompanyID)), nil
}

// UpdateSubscription moves an existing subscription to a different price
func (c *Client) UpdateSubscription(ctx context.Context, req models.UpdateSubscriptionRequest) (*models.SubscriptionRecord, cache.Invalidation, error) {
	var record models.SubscriptionRecord
	if err := c.post(ctx, "/subscriptions/update", req, &record); err != nil {
		return nil, cache.Invalidation{}, fmt.Errorf("failed updating subscription: %w", err)
	}
	return &record, cache.Invalidate(cache.Scoped(cache.ResourceSubscriptions, record.CompanyID)), nil
}

// CancelSubscription cancels an existing subscription
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (*models.CancelSubscriptionResponse, cache.Invalidation, error) {
	var resp models.CancelSubscriptionResponse
	err := c.post(ctx, "/subscriptions/cancel", models.CancelSubscriptionRequest{
		SubscriptionID: subscriptionID,
	}, &resp)
	if err != nil {
		return nil, cache.Invalidation{}, fmt.Errorf("failed cancelling subscription: %w", err)
	}
	return &resp, cache.Invalidate(cache.Scoped(cache.ResourceSubscriptions, resp.CompanyID)), nil
}

// GetPayrollRecords fetches a company's payroll records for the dashboard
func (c *Client) GetPayrollRecords(ctx context.Context, companyID string) ([]models.PayrollRecord, error) {
	var records []models.PayrollRecord
	endpoint := "/payroll/records?companyId=" + url.QueryEscape(companyID)
	if err := c.get(ctx, endpoint, &records); err != nil {
		return nil, fmt.Errorf("failed fetching payroll records: %w", err)
	}
	return records, nil
}

// GetDepartments fetches a company's departments
func (c *Client) GetDepartments(ctx context.Context, companyID string) ([]models.Department, error) {
	var departments []models.Department
	endpoint := "/departments?companyId=" + url.QueryEscape(companyID)
	if err := c.get(ctx, endpoint, &departments); err != nil {
		return nil, fmt.Errorf("failed fetching departments: %w", err)
	}
	return departments, nil
}
