package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"scangate/internal/caching"
	"scangate/internal/config"
	"scangate/internal/handlers"
	"scangate/internal/jobs/background"
	"scangate/internal/logging"
	"scangate/internal/metrics"
	"scangate/internal/middleware"
	"scangate/internal/repositories"
	"scangate/internal/services"
	"scangate/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "scangate",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("Failed to apply migrations")
	}
	tx := database.NewTxManager(pool)

	redisClient := caching.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	sessions := caching.NewRedisSessionStore(redisClient, cfg.SessionTTL)
	guests := caching.NewRedisGuestQuota(redisClient, cfg.GuestAttempts, cfg.SessionTTL)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	tenantRepo := repositories.NewTenantRepo(pool)
	membershipRepo := repositories.NewMembershipRepo(pool)
	panelRepo := repositories.NewPanelRepo(pool)
	planRepo := repositories.NewPlanRepo(pool)
	subscriptionRepo := repositories.NewSubscriptionRepo(pool)
	counterRepo := repositories.NewUsageCounterRepo(pool)
	couponRepo := repositories.NewCouponRepo(pool)

	// Services
	tenancy := services.NewTenancyService(tenantRepo, membershipRepo, panelRepo, sessions, logger)
	catalog := services.NewEntitlementService(planRepo)
	subscriptions := services.NewSubscriptionService(subscriptionRepo, planRepo, userRepo, tx, logger)
	usage := services.NewUsageService(counterRepo, planRepo, tx, logger)
	coupons := services.NewCouponService(couponRepo, planRepo, tx, logger)
	access := services.NewAccessService(tenancy, catalog, subscriptions, usage, guests, tx, m, logger)

	resolver, closeResolver, err := newResolver(cfg, userRepo, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up principal resolution")
	}
	defer closeResolver()

	scheduler, err := background.NewJobScheduler(usage, subscriptions, m, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create job scheduler")
	}
	if cfg.SchedulerEnabled {
		scheduler.Start()
	}

	// Handlers
	accessHandlers := handlers.NewAccessHandlers(access)
	tenantHandlers := handlers.NewTenantHandlers(tenancy)
	subscriptionHandlers := handlers.NewSubscriptionHandlers(subscriptions, catalog, usage)
	couponHandlers := handlers.NewCouponHandlers(coupons, m)
	webhookHandlers := handlers.NewWebhookHandlers(subscriptions, cfg.BillingWebhookSecret, m, logger)
	jobHandlers := handlers.NewJobHandlers(scheduler)
	healthHandlers := handlers.NewHealthHandlers(version, map[string]handlers.Check{
		"database": func(ctx context.Context) error { return pool.Ping(ctx) },
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})
	panelGuard := middleware.NewPanelGuard(access)

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.NewRequestLogger(logger).Middleware())
	e.Use(m.Middleware())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			middleware.SessionHeader,
		},
		ExposeHeaders: []string{middleware.SessionHeader, "X-Request-ID", "X-API-Version"},
	}))

	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)
	e.GET("/metrics", metrics.Handler(registry))

	// The billing source authenticates with the payload signature, not a session.
	hooks := middleware.VersionRoute(e, middleware.CurrentAPIVersion, echoMiddleware.BodyLimit("64K"))
	hooks.POST("/webhooks/billing", webhookHandlers.BillingWebhook)

	api := middleware.VersionRoute(e, middleware.CurrentAPIVersion,
		middleware.Session(tenancy, cfg.SessionTTL, logger),
		resolver.Middleware(),
	)

	// Guests may authorize and consume within their quota.
	api.POST("/tools/:slug/authorize", accessHandlers.AuthorizeTool)
	api.POST("/tools/:slug/consume", accessHandlers.ConsumeTool)
	api.GET("/panels/:code/access", accessHandlers.PanelAccess)
	api.GET("/plans", subscriptionHandlers.ListPlans)

	user := api.Group("", middleware.RequireUser)
	user.GET("/tenants", tenantHandlers.ListTenants)
	user.GET("/tenants/current", tenantHandlers.GetCurrentTenant)
	user.PUT("/tenants/current", tenantHandlers.SetCurrentTenant)
	user.GET("/tenants/current/panels", tenantHandlers.ListPanels)

	user.GET("/subscriptions", subscriptionHandlers.ListSubscriptions)
	user.GET("/subscriptions/current", subscriptionHandlers.GetCurrentSubscription)
	user.GET("/subscriptions/current/usage/:tool", subscriptionHandlers.ToolUsage)
	user.POST("/subscriptions/change-plan", subscriptionHandlers.ChangePlan)
	user.POST("/subscriptions/trial", subscriptionHandlers.StartTrial)
	user.GET("/subscriptions/:id", subscriptionHandlers.GetSubscriptionByID)
	user.POST("/subscriptions/:id/cancel", subscriptionHandlers.CancelSubscription)
	user.POST("/subscriptions/:id/pause", subscriptionHandlers.PauseSubscription)
	user.POST("/subscriptions/:id/resume", subscriptionHandlers.ResumeSubscription)

	user.POST("/coupons/quote", couponHandlers.Quote)
	user.POST("/coupons/redeem", couponHandlers.Redeem)

	admin := user.Group("/admin", panelGuard.RequirePanel("jobs", true))
	admin.GET("/jobs", jobHandlers.ListJobs)
	admin.POST("/jobs/:name/run", jobHandlers.RunJob)

	go func() {
		logger.Info().Str("version", version).Int("port", cfg.Port).Msg("Starting scangate")
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := scheduler.Stop(); err != nil {
		logger.Error().Err(err).Msg("Scheduler shutdown failed")
	}
}

// newResolver prefers JWKS when a key set URL is configured.
func newResolver(cfg *config.Config, userRepo repositories.UserRepository, logger zerolog.Logger) (*middleware.PrincipalResolver, func(), error) {
	if cfg.JWKSURL != "" {
		return middleware.NewJWKSResolver(userRepo, cfg.JWKSURL, logger)
	}
	return middleware.NewHMACResolver(userRepo, cfg.JWTSecret, logger), func() {}, nil
}
