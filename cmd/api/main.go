package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/brewcoin/api/internal/handlers"
	"github.com/brewcoin/api/internal/notify"
	"github.com/brewcoin/api/internal/platform/auth"
	"github.com/brewcoin/api/internal/platform/config"
	pfirestore "github.com/brewcoin/api/internal/platform/firestore"
	"github.com/brewcoin/api/internal/platform/idempotency"
	"github.com/brewcoin/api/internal/platform/jobs"
	"github.com/brewcoin/api/internal/platform/observability"
	"github.com/brewcoin/api/internal/platform/secrets"
	"github.com/brewcoin/api/internal/repositories"
	firestorerepo "github.com/brewcoin/api/internal/repositories/firestore"
	"github.com/brewcoin/api/internal/services"
)

const (
	shutdownTimeout           = 10 * time.Second
	idempotencyCleanupEvery   = time.Hour
	idempotencyCleanupBatch   = 500
	idempotencyCleanupTimeout = 30 * time.Second
	firestoreCloseTimeout     = 5 * time.Second
)

func main() {
	baseLogger, err := observability.NewLogger()
	if err != nil {
		panic(err)
	}
	logger := baseLogger.Named("api")
	defer func() {
		_ = logger.Sync()
	}()

	ctx := context.Background()

	environment := strings.ToLower(strings.TrimSpace(os.Getenv("API_SECURITY_ENVIRONMENT")))
	fetcher := newSecretFetcher(ctx, logger, environment)
	if fetcher != nil {
		defer func() {
			if err := fetcher.Close(); err != nil {
				logger.Warn("secret fetcher close failed", zap.Error(err))
			}
		}()
	}

	loadOpts := []config.Option{}
	if fetcher != nil {
		loadOpts = append(loadOpts, config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)))
	}
	if environment != "" && environment != "local" {
		loadOpts = append(loadOpts, config.WithRequiredSecrets("Telegram.BotToken"))
	}

	cfg, err := config.Load(ctx, loadOpts...)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("required secrets unresolved", zap.Strings("secrets", missing.Names()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), firestoreCloseTimeout)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close failed", zap.Error(err))
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close failed", zap.Error(err))
		}
	}()
	settlementTopic := pubsubClient.Topic(cfg.PubSub.SettlementTopic)
	defer settlementTopic.Stop()

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupStop := make(chan struct{})
	defer close(cleanupStop)
	go runIdempotencyCleanup(logger.Named("idempotency"), idempotencyStore, cleanupStop)

	oidcMiddleware := buildOIDCMiddleware(cfg.Security.OIDC, logger)

	orderRepo, err := firestorerepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	clientRepo, err := firestorerepo.NewClientRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise client repository", zap.Error(err))
	}
	productRepo, err := firestorerepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	inventoryRepo, err := firestorerepo.NewInventoryRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise inventory repository", zap.Error(err))
	}
	subscriptionRepo, err := firestorerepo.NewSubscriptionRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise subscription repository", zap.Error(err))
	}
	counterRepo, err := firestorerepo.NewCounterRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise counter repository", zap.Error(err))
	}

	healthRepo, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				iter := firestoreClient.Collections(ctx)
				if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
					return err
				}
				return nil
			},
		},
		{
			Name: "pubsub",
			Check: func(ctx context.Context) error {
				_, err := settlementTopic.Exists(ctx)
				return err
			},
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise health repository", zap.Error(err))
	}

	var sender notify.Sender
	if strings.TrimSpace(cfg.Telegram.BotToken) != "" {
		telegramSender, err := notify.NewTelegramSender(notify.TelegramSenderDeps{
			BotToken: cfg.Telegram.BotToken,
		})
		if err != nil {
			logger.Fatal("failed to initialise telegram sender", zap.Error(err))
		}
		sender = telegramSender
	} else {
		logger.Warn("telegram bot token missing; notifications disabled")
	}

	dispatcher, err := notify.NewDispatcher(notify.DispatcherDeps{
		Config: notify.Config{
			Enabled:          sender != nil,
			AccountingChatID: cfg.Telegram.AccountingChatID,
			LocationChannels: cfg.Telegram.LocationChannels,
		},
		Sender: sender,
		Logger: eventLogger(logger, "notify"),
	})
	if err != nil {
		logger.Fatal("failed to initialise notification dispatcher", zap.Error(err))
	}

	settlementPublisher, err := jobs.NewPubSubSettlementPublisher(settlementTopic)
	if err != nil {
		logger.Fatal("failed to initialise settlement publisher", zap.Error(err))
	}

	pricingEngine, err := services.NewPricingEngine(services.PricingEngineDeps{
		Logger: eventLogger(logger, "pricing"),
	})
	if err != nil {
		logger.Fatal("failed to initialise pricing engine", zap.Error(err))
	}

	settlementService, err := services.NewSettlementService(services.SettlementServiceDeps{
		Orders:    orderRepo,
		Clients:   clientRepo,
		Inventory: inventoryRepo,
		Logger:    eventLogger(logger, "settlement"),
	})
	if err != nil {
		logger.Fatal("failed to initialise settlement service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Orders:     orderRepo,
		Clients:    clientRepo,
		Products:   productRepo,
		Counters:   counterRepo,
		Pricing:    pricingEngine,
		Settlement: settlementService,
		Jobs:       settlementPublisher,
		Notifier:   dispatcher,
		Logger:     eventLogger(logger, "checkout"),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders: orderRepo,
		Logger: eventLogger(logger, "orders"),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	clientService, err := services.NewClientService(services.ClientServiceDeps{
		Clients: clientRepo,
	})
	if err != nil {
		logger.Fatal("failed to initialise client service", zap.Error(err))
	}

	inventoryService, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory: inventoryRepo,
		Logger:    eventLogger(logger, "inventory"),
	})
	if err != nil {
		logger.Fatal("failed to initialise inventory service", zap.Error(err))
	}

	stockAlertService, err := services.NewStockAlertService(services.StockAlertServiceDeps{
		Subscriptions: subscriptionRepo,
		Inventory:     inventoryRepo,
		Notifier:      dispatcher,
		Logger:        eventLogger(logger, "stock_alerts"),
	})
	if err != nil {
		logger.Fatal("failed to initialise stock alert service", zap.Error(err))
	}

	checkoutHandlers := handlers.NewCheckoutHandlers(checkoutService)
	orderHandlers := handlers.NewOrderHandlers(orderService)
	clientHandlers := handlers.NewClientHandlers(clientService)
	adminHandlers := handlers.NewAdminInventoryHandlers(inventoryService)
	jobHandlers := handlers.NewInternalJobHandlers(settlementService, stockAlertService, cfg.StockSweep.BatchSize)

	routerOpts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.Firestore.ProjectID),
			observability.RecoveryMiddleware(logger),
			observability.RequestLoggerMiddleware(cfg.Firestore.ProjectID),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthRepo)),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithCheckoutMiddlewares(idempotencyMiddleware),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithClientRoutes(clientHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
		handlers.WithInternalRoutes(jobHandlers.Routes),
	}
	if oidcMiddleware != nil {
		routerOpts = append(routerOpts, handlers.WithInternalMiddlewares(oidcMiddleware))
	}

	router := handlers.NewRouter(routerOpts...)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

// newSecretFetcher builds the Secret Manager fetcher used for secret://
// references in configuration. Failure is non-fatal so that local
// environments without GCP credentials still start.
func newSecretFetcher(ctx context.Context, logger *zap.Logger, environment string) *secrets.Fetcher {
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
	}
	if environment != "" {
		opts = append(opts, secrets.WithEnvironment(environment))
	}
	if project := strings.TrimSpace(os.Getenv("API_FIRESTORE_PROJECT_ID")); project != "" {
		opts = append(opts, secrets.WithDefaultProject(project))
	}
	if fallback := strings.TrimSpace(os.Getenv("API_SECRETS_FALLBACK_FILE")); fallback != "" {
		opts = append(opts, secrets.WithFallbackFile(fallback))
	}

	fetcher, err := secrets.NewFetcher(ctx, opts...)
	if err != nil {
		logger.Warn("secret fetcher unavailable", zap.Error(err))
		return nil
	}
	return fetcher
}

// buildOIDCMiddleware wires Google-signed token verification for the internal
// route group. Returns nil when no JWKS endpoint is configured, leaving the
// internal routes open for local development.
func buildOIDCMiddleware(cfg config.OIDCConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.JWKSURL) == "" {
		logger.Warn("oidc jwks url missing; internal routes unauthenticated")
		return nil
	}
	adapter := observability.NewPrintfAdapter(logger.Named("oidc"))
	cache := auth.NewJWKSCache(cfg.JWKSURL, auth.WithJWKSLogger(adapter))
	validator := auth.NewOIDCValidator(cache, auth.WithOIDCLogger(adapter))
	return validator.RequireOIDC(cfg.Audience, cfg.Issuers)
}

// runIdempotencyCleanup purges expired idempotency records on a fixed cadence.
func runIdempotencyCleanup(logger *zap.Logger, store *idempotency.FirestoreStore, stop <-chan struct{}) {
	ticker := time.NewTicker(idempotencyCleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), idempotencyCleanupTimeout)
			removed, err := store.CleanupExpired(ctx, time.Now(), idempotencyCleanupBatch)
			cancel()
			if err != nil {
				logger.Warn("idempotency cleanup failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Debug("idempotency records purged", zap.Int("removed", removed))
			}
		}
	}
}

// eventLogger adapts the structured zap logger to the event-style logging
// contract used by services.
func eventLogger(base *zap.Logger, name string) func(ctx context.Context, event string, fields map[string]any) {
	scoped := base.Named(name)
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for key, value := range fields {
			zFields = append(zFields, zap.Any(key, value))
		}
		scoped.Debug("service event", zFields...)
	}
}
