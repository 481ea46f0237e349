package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/avilaluz/mercadito-backend/api/routes"
	"github.com/avilaluz/mercadito-backend/internal/catalog"
	"github.com/avilaluz/mercadito-backend/internal/effects"
	"github.com/avilaluz/mercadito-backend/internal/inventory"
	"github.com/avilaluz/mercadito-backend/internal/ledger"
	"github.com/avilaluz/mercadito-backend/internal/orders"
	"github.com/avilaluz/mercadito-backend/internal/payments"
	"github.com/avilaluz/mercadito-backend/internal/payouts"
	"github.com/avilaluz/mercadito-backend/pkg/config"
	"github.com/avilaluz/mercadito-backend/pkg/db"
	"github.com/avilaluz/mercadito-backend/pkg/logger"
	"github.com/avilaluz/mercadito-backend/pkg/metrics"
	"github.com/avilaluz/mercadito-backend/pkg/migrate"
	"github.com/avilaluz/mercadito-backend/pkg/outbox"
	"github.com/avilaluz/mercadito-backend/pkg/redis"
	pkgstripe "github.com/avilaluz/mercadito-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry)
	payoutMetrics := metrics.NewPayoutMetrics(registry)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	notifier, err := effects.NewDBNotifier(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}
	mailer, err := effects.NewLogMailer(logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mailer", err)
		os.Exit(1)
	}
	dispatcher, err := effects.NewDispatcher(notifier, mailer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create effects dispatcher", err)
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())

	ledgerService, err := ledger.NewService(ledgerRepo, cfg.Fees)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(dbClient.DB()),
		Catalog:   catalogRepo,
		Inventory: inventory.NewGuard(),
		Ledger:    ledgerService,
		Tx:        dbClient,
		Outbox:    outboxService,
		Effects:   dispatcher,
		Fees:      cfg.Fees,
		Checkout:  cfg.Checkout,
		Metrics:   paymentMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:     payments.NewRepository(dbClient.DB()),
		Webhooks: payments.NewWebhookStore(dbClient.DB()),
		Catalog:  catalogRepo,
		Provider: payments.NewProviderClient(stripeClient),
		Tx:       dbClient,
		Outbox:   outboxService,
		Effects:  dispatcher,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	payoutsService, err := payouts.NewService(ledgerRepo, dbClient, outboxService, payoutMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create payouts service", err)
		os.Exit(1)
	}

	webhookGuard, err := payments.NewIdempotencyGuard(redisClient, cfg.Stripe.WebhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Orders:         ordersService,
			Payments:       paymentsService,
			Payouts:        payoutsService,
			Ledger:         ledgerService,
			StripeClient:   stripeClient,
			WebhookGuard:   webhookGuard,
			PaymentMetrics: paymentMetrics,
			Registry:       registry,
		}),
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logg.Info(ctx, "shutdown signal received: "+sig.String())
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
	}

	// In-flight post-commit effects finish before the process exits.
	dispatcher.Wait()
	logg.Info(ctx, "api server stopped")
}
