package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "momoinvoice/docs"
	"momoinvoice/internal/config"
	"momoinvoice/internal/handlers"
	"momoinvoice/internal/jobs/background"
	"momoinvoice/internal/logger"
	"momoinvoice/internal/middleware"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	echoSwagger "github.com/swaggo/echo-swagger"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the reminder scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.WithComponent("server")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	e, stopJWKS, err := newServer(cfg, a)
	if err != nil {
		return err
	}
	defer stopJWKS()

	var scheduler *background.JobScheduler
	if cfg.Reminders.Enabled {
		scheduler, err = background.NewJobScheduler(a.reminders, a.cache, cfg.Reminders.Interval, cfg.Reminders.LockTTL)
		if err != nil {
			return err
		}
		scheduler.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("version", version).Int("port", cfg.App.Port).Str("env", cfg.App.Env).Msg("server starting")
		if err := e.Start(fmt.Sprintf(":%d", cfg.App.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if scheduler != nil {
		if err := scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("scheduler shutdown failed")
		}
	}
	return nil
}

// newServer builds the echo instance with every route mounted. The returned
// func stops background JWKS refresh.
func newServer(cfg *config.Config, a *app) (*echo.Echo, func(), error) {
	jwtConfig, stopJWKS, err := middleware.NewJWTConfig(cfg.Auth)
	if err != nil {
		return nil, nil, fmt.Errorf("jwt config: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.RequestID())
	e.Use(middleware.RequestLogger(logger.WithComponent("http")))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.BodyLimit("1M"))

	versionMiddleware := middleware.NewVersionMiddleware()
	e.Use(versionMiddleware.APIVersionResolver())

	// Health endpoints (no auth required)
	var storage handlers.Pinger
	if a.storage != nil {
		storage = a.storage
	}
	health := handlers.NewHealthHandlers(a.pool, a.cache, storage, version)
	e.GET("/health", health.HealthCheck)
	e.GET("/health/ready", health.ReadinessCheck)
	e.GET("/health/live", health.LivenessCheck)

	if !cfg.IsProduction() {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	paymentHandlers := handlers.NewPaymentHandlers(a.payments)
	webhookHandlers := handlers.NewWebhookHandlers(a.payments)

	// Gateway callbacks and payer-facing routes
	e.POST("/webhooks/paystack", webhookHandlers.PaystackWebhook)
	public := e.Group("/public")
	public.POST("/invoices/:id/checkout", paymentHandlers.PublicCheckout,
		middleware.RateLimit(a.cache, "checkout", cfg.Checkout.RateLimit, cfg.Checkout.RateWindow, middleware.ClientIPAndParam("id")))

	// Business API
	v1 := e.Group("/v1")
	v1.Use(versionMiddleware.VersionHeader("v1"))
	v1.Use(echojwt.WithConfig(jwtConfig))
	v1.Use(middleware.BusinessContext())
	v1.Use(middleware.NewAuditMiddleware(logger.WithComponent("audit")).AuditRequest())

	handlers.NewInvoiceHandlers(a.invoices).RegisterRoutes(v1)
	v1.POST("/invoices/:id/checkout", paymentHandlers.Checkout)
	handlers.NewReminderHandlers(a.reminders).RegisterRoutes(v1)

	return e, stopJWKS, nil
}
