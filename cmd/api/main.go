package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/staffpilot/portal/config"
	"github.com/staffpilot/portal/pkg/analytics"
	"github.com/staffpilot/portal/pkg/api/handlers"
	"github.com/staffpilot/portal/pkg/cache"
	"github.com/staffpilot/portal/pkg/checkout"
	"github.com/staffpilot/portal/pkg/hrapi"
	"github.com/staffpilot/portal/pkg/jobs"
	"github.com/staffpilot/portal/pkg/metrics"
	custommiddleware "github.com/staffpilot/portal/pkg/middleware"
	"github.com/staffpilot/portal/pkg/payment"
	"github.com/staffpilot/portal/pkg/session"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize Redis cache
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	// Read-through cache for backend resources
	store := cache.NewStore(redisClient, "portal", time.Duration(cfg.PlanCacheTTLSecs)*time.Second)
	store.OnHit = func(resource string) { prometheusMetrics.CacheHits.WithLabelValues(resource).Inc() }
	store.OnMiss = func(resource string) { prometheusMetrics.CacheMisses.WithLabelValues(resource).Inc() }

	// HR backend API client
	hrClient := hrapi.NewClient(cfg.BackendURL, time.Duration(cfg.BackendTimeout)*time.Second)
	log.Printf("✅ HR backend client ready (%s)", cfg.BackendURL)

	// Checkout services
	checkoutService := checkout.NewService(hrClient, store)
	flowManager := checkout.NewManager(time.Duration(cfg.FlowTTLMinutes)*time.Minute, 5*time.Minute)

	// Dashboard analytics over the same backend client and cache
	analyticsService := analytics.NewService(hrClient, store)

	// Payment processor for server-side setup confirmation
	var processor payment.Processor
	if cfg.StripeSecretKey != "" {
		stripeProcessor, err := payment.NewStripeProcessor(payment.StripeConfig{
			SecretKey:      cfg.StripeSecretKey,
			PublishableKey: cfg.StripePublishableKey,
		})
		if err != nil {
			log.Fatalf("❌ Failed to initialize payment processor: %v", err)
		}
		processor = stripeProcessor
		log.Printf("✅ Payment processor initialized")
	} else {
		log.Printf("⚠️  Payment processor disabled (no STRIPE_SECRET_KEY); setup confirmation stays client-side")
	}

	// Cron jobs: periodic plan catalog refresh
	cronManager := jobs.NewCronManager(checkoutService, log.Default())
	if err := cronManager.SetupJobs(cfg.PlanRefreshCron); err != nil {
		log.Fatalf("❌ Failed to set up cron jobs: %v", err)
	}
	cronManager.Start()
	log.Printf("✅ Cron jobs started (plan refresh: %s)", cfg.PlanRefreshCron)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	e.Use(prometheusMetrics.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.CORSAllowedOrigins)))
	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// The auth layer in front of the portal owns session lifecycle; logout
	// requests are surfaced to it through the dispatch hook.
	e.Use(session.Middleware(func(action session.Action) {
		if action == session.ActionLogout {
			log.Printf("[SESSION] logout dispatched")
		}
	}))

	// Health check endpoint (public)
	e.GET("/health", func(c echo.Context) error {
		if _, err := redisClient.Redis.Ping(c.Request().Context()).Result(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"cache":  "down",
			})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status": "healthy",
			"cache":  "up",
		})
	})

	// Prometheus metrics endpoint (public)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Handlers
	checkoutHandler := handlers.NewCheckoutHandler(flowManager, checkoutService, prometheusMetrics)
	subscriptionHandler := handlers.NewSubscriptionHandler(checkoutService)
	dashboardHandler := handlers.NewDashboardHandler(analyticsService)
	sessionHandler := handlers.NewSessionHandler()

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/plans", checkoutHandler.GetPlans)

	checkoutGroup := v1.Group("/checkout")
	{
		checkoutGroup.POST("", checkoutHandler.Start)
		checkoutGroup.GET("/:id", checkoutHandler.GetState)
		checkoutGroup.POST("/:id/plan", checkoutHandler.SelectPlan)
		checkoutGroup.POST("/:id/payment", checkoutHandler.CompletePayment)
		checkoutGroup.POST("/:id/cancel", checkoutHandler.CancelPayment)
		checkoutGroup.POST("/:id/retry", checkoutHandler.ReturnToPlanSelection)
		checkoutGroup.DELETE("/:id", checkoutHandler.Abandon)
	}

	if processor != nil {
		paymentHandler := handlers.NewPaymentHandler(flowManager, processor, cfg.StripePublishableKey)
		v1.GET("/payment/config", paymentHandler.GetConfig)
		checkoutGroup.POST("/:id/confirm-setup", paymentHandler.ConfirmSetup)
	}

	subscriptionsGroup := v1.Group("/subscriptions")
	{
		subscriptionsGroup.GET("", subscriptionHandler.List)
		subscriptionsGroup.POST("/change-plan", subscriptionHandler.ChangePlan)
		subscriptionsGroup.POST("/cancel", subscriptionHandler.Cancel)
	}

	dashboardGroup := v1.Group("/dashboard")
	{
		dashboardGroup.GET("/charts", dashboardHandler.GetCharts)
		dashboardGroup.GET("/payroll/by-month", dashboardHandler.GetPayrollByMonth)
		dashboardGroup.GET("/payroll/by-department", dashboardHandler.GetPayrollByDepartment)
	}

	sessionGroup := v1.Group("/session")
	{
		sessionGroup.GET("/me", sessionHandler.Me)
		sessionGroup.POST("/logout", sessionHandler.Logout)
	}

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 StaffPilot portal starting on %s", address)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d)", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	log.Printf("🕐 Checkout flow TTL: %d minutes", cfg.FlowTTLMinutes)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	cronManager.Stop()
	log.Println("✅ Cron jobs stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
