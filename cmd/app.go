package main

import (
	"context"

	"momoinvoice/internal/caching"
	"momoinvoice/internal/config"
	"momoinvoice/internal/logger"
	"momoinvoice/internal/repositories"
	"momoinvoice/internal/services"
	"momoinvoice/pkg/database"

	"github.com/jackc/pgx/v5/pgxpool"
)

// app holds the shared infrastructure and services used by every command.
type app struct {
	pool    *pgxpool.Pool
	cache   caching.CacheService
	storage services.StorageService // nil when archiving is disabled

	invoices  services.InvoiceServiceInterface
	payments  services.PaymentServiceInterface
	reminders services.ReminderServiceInterface
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.WithComponent("app")

	pool, err := database.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, err
	}

	a := &app{
		pool:  pool,
		cache: caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB),
	}

	var archiver services.WebhookArchiver
	if cfg.Minio.Endpoint != "" {
		storage, err := services.NewStorageService(cfg.Minio)
		if err != nil {
			log.Warn().Err(err).Msg("webhook archive disabled")
		} else if err := storage.EnsureBucketExists(ctx); err != nil {
			log.Warn().Err(err).Str("bucket", cfg.Minio.WebhookBucket).Msg("webhook archive disabled")
		} else {
			a.storage = storage
			archiver = storage
		}
	}

	invoiceRepo := repositories.NewInvoiceRepo(pool)
	clientRepo := repositories.NewClientRepo(pool)
	businessRepo := repositories.NewBusinessRepo(pool)
	paymentMethodRepo := repositories.NewPaymentMethodRepo(pool)
	paymentRepo := repositories.NewPaymentRepo(pool)
	templateRepo := repositories.NewReminderTemplateRepo(pool)
	reminderRepo := repositories.NewReminderRepo(pool)
	tx := repositories.NewTxManager(pool)

	a.invoices = services.NewInvoiceService(invoiceRepo, clientRepo, businessRepo, paymentMethodRepo, paymentRepo, tx)
	a.payments = services.NewPaymentService(
		invoiceRepo, businessRepo, clientRepo, paymentRepo, tx,
		services.NewPaystackService(cfg.Paystack),
		archiver,
		services.PaymentServiceConfig{
			AppURL:                    cfg.App.URL,
			SkipSignatureVerification: cfg.Paystack.SkipSignatureVerification,
		},
	)
	a.reminders = services.NewReminderService(
		templateRepo, reminderRepo,
		services.NewNotificationService(cfg.Notifications, cfg.App.URL),
		a.cache, cfg.Reminders.LockTTL,
	)

	return a, nil
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		log := logger.WithComponent("app")
		log.Warn().Err(err).Msg("failed to close cache")
	}
	a.pool.Close()
}
