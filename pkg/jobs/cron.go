package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/staffpilot/portal/pkg/checkout"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron     *cron.Cron
	checkout *checkout.Service
	logger   *log.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(checkoutService *checkout.Service, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}

	return &CronManager{
		cron:     cron.New(),
		checkout: checkoutService,
		logger:   logger,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs(planRefreshSpec string) error {
	cm.logger.Println("Setting up cron jobs...")

	// Keep the cached plan catalog warm so the checkout page rarely waits
	// on the backend.
	_, err := cm.cron.AddFunc(planRefreshSpec, func() {
		cm.logger.Println("🕐 Refreshing plan catalog cache...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := cm.checkout.RefreshPlans(ctx); err != nil {
			cm.logger.Printf("❌ Plan catalog refresh failed: %v", err)
			return
		}
		cm.logger.Println("✅ Plan catalog cache refreshed")
	})
	if err != nil {
		return err
	}

	return nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.cron.Start()
	cm.logger.Println("✅ Cron jobs started")
}

// Stop stops the cron scheduler
func (cm *CronManager) Stop() {
	cm.cron.Stop()
	cm.logger.Println("Cron jobs stopped")
}
