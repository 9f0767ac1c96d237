package checkout

import (
	"context"
	"fmt"

	"github.com/staffpilot/portal/pkg/cache"
	"github.com/staffpilot/portal/pkg/models"
)

// ManagementBackend is the slice of the HR backend API the management
// operations need on top of Backend.
type ManagementBackend interface {
	Backend
	GetSubscriptions(ctx context.Context, companyID string) ([]models.SubscriptionRecord, error)
	UpdateSubscription(ctx context.Context, req models.UpdateSubscriptionRequest) (*models.SubscriptionRecord, cache.Invalidation, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*models.CancelSubscriptionResponse, cache.Invalidation, error)
}

// Service wraps the backend with the read-through cache and the subscription
// management operations around the checkout page. Mutations hand back an
// Invalidation; the service, as their caller, applies it so the next read
// re-fetches instead of patching cached state.
type Service struct {
	backend ManagementBackend
	store   *cache.Store
}

// NewService creates the checkout service
func NewService(backend ManagementBackend, store *cache.Store) *Service {
	return &Service{
		backend: backend,
		store:   store,
	}
}

// GetPlans returns the plan catalog through the cache
func (s *Service) GetPlans(ctx context.Context) (map[string]models.Plan, error) {
	var plans map[string]models.Plan
	err := s.store.Fetch(ctx, cache.ResourcePlans, &plans, func(ctx context.Context) (interface{}, error) {
		return s.backend.GetPlans(ctx)
	})
	if err != nil {
		return nil, err
	}
	return plans, nil
}

// RefreshPlans re-fetches the plan catalog into the cache unconditionally
func (s *Service) RefreshPlans(ctx context.Context) error {
	if err := s.store.Apply(ctx, cache.Invalidate(cache.ResourcePlans)); err != nil {
		return fmt.Errorf("failed invalidating plan cache: %w", err)
	}
	_, err := s.GetPlans(ctx)
	return err
}

// GetSubscriptions returns a company's subscriptions through the cache. The
// cached entry is scoped per company and deleted by the invalidations the
// mutating calls return.
func (s *Service) GetSubscriptions(ctx context.Context, companyID string) ([]models.SubscriptionRecord, error) {
	var records []models.SubscriptionRecord
	resource := cache.Scoped(cache.ResourceSubscriptions, companyID)
	err := s.store.Fetch(ctx, resource, &records, func(ctx context.Context) (interface{}, error) {
		return s.backend.GetSubscriptions(ctx, companyID)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CreateSetupSecret passes through to the backend
func (s *Service) CreateSetupSecret(ctx context.Context, companyID, priceID string) (string, error) {
	return s.backend.CreateSetupSecret(ctx, companyID, priceID)
}

// CreateSubscription creates a subscription and applies the invalidation the
// backend client reports. The invalidation is still returned so callers can
// see what went stale.
func (s *Service) CreateSubscription(ctx context.Context, req models.CreateSubscriptionRequest) (*models.SubscriptionRecord, cache.Invalidation, error) {
	record, inv, err := s.backend.CreateSubscription(ctx, req)
	if err != nil {
		return nil, cache.Invalidation{}, err
	}
	if err := s.store.Apply(ctx, inv); err != nil {
		return nil, cache.Invalidation{}, fmt.Errorf("subscription created but cache invalidation failed: %w", err)
	}
	return record, inv, nil
}

// ChangePlan moves an existing subscription to another plan's price
func (s *Service) ChangePlan(ctx context.Context, subscriptionID, planID string) (*models.SubscriptionRecord, error) {
	plans, err := s.GetPlans(ctx)
	if err != nil {
		return nil, err
	}
	plan, ok := plans[planID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}

	record, inv, err := s.backend.UpdateSubscription(ctx, models.UpdateSubscriptionRequest{
		SubscriptionID: subscriptionID,
		PriceID:        plan.PriceID,
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.Apply(ctx, inv); err != nil {
		return nil, fmt.Errorf("subscription updated but cache invalidation failed: %w", err)
	}
	return record, nil
}

// CancelSubscription cancels an existing subscription
func (s *Service) CancelSubscription(ctx context.Context, subscriptionID string) (*models.CancelSubscriptionResponse, error) {
	resp, inv, err := s.backend.CancelSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Apply(ctx, inv); err != nil {
		return nil, fmt.Errorf("subscription cancelled but cache invalidation failed: %w", err)
	}
	return resp, nil
}
