package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RANAPRINCE06/Watch/internal/handlers"
	"github.com/RANAPRINCE06/Watch/internal/payments"
	"github.com/RANAPRINCE06/Watch/internal/platform/auth"
	"github.com/RANAPRINCE06/Watch/internal/platform/config"
	pfirestore "github.com/RANAPRINCE06/Watch/internal/platform/firestore"
	"github.com/RANAPRINCE06/Watch/internal/platform/idempotency"
	"github.com/RANAPRINCE06/Watch/internal/platform/jobs"
	"github.com/RANAPRINCE06/Watch/internal/platform/notifications"
	"github.com/RANAPRINCE06/Watch/internal/platform/observability"
	"github.com/RANAPRINCE06/Watch/internal/platform/secrets"
	firestoreRepo "github.com/RANAPRINCE06/Watch/internal/repositories/firestore"
	"github.com/RANAPRINCE06/Watch/internal/services"
)

const (
	redisKeyPrefix       = "watch"
	firestoreDialTimeout = 10 * time.Second
	tokenVerifyTimeout   = 5 * time.Second
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger.Named("secrets"), envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)
	events := observability.NewEventLogger(logger)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore, pfirestore.WithDialTimeout(firestoreDialTimeout))
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		if err := firestoreProvider.Close(); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
	}

	var (
		nonces           auth.NonceStore
		idempotencyStore idempotency.Store
	)
	if redisClient != nil {
		nonces = auth.NewRedisNonceStore(redisClient, redisKeyPrefix+":webhooks")
		idempotencyStore = idempotency.NewRedisStore(redisClient, redisKeyPrefix+":idempotency")
	} else {
		logger.Warn("redis not configured; webhook replay and idempotency records are kept in memory")
		nonces = auth.NewInMemoryNonceStore()
		idempotencyStore = idempotency.NewMemoryStore()
	}
	createGuard := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	verifier, err := newTokenVerifier(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise token verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(verifier,
		auth.WithAdminUIDs(adminUIDs(envValues)...),
		auth.WithVerificationTimeout(tokenVerifyTimeout),
	)

	gateways, err := newGatewayManager(cfg, events)
	if err != nil {
		logger.Fatal("failed to initialise payment gateways", zap.Error(err))
	}

	var mailer services.Mailer = notifications.Disabled{}
	if cfg.SMTP.Enabled() {
		smtpMailer, err := notifications.NewSMTPMailer(notifications.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Timeout:  cfg.SMTP.Timeout,
		})
		if err != nil {
			logger.Fatal("failed to initialise smtp mailer", zap.Error(err))
		}
		mailer = smtpMailer
	} else {
		logger.Warn("smtp not configured; confirmation emails are disabled")
	}

	publisher, closePublisher, err := newOrderPublisher(ctx, cfg.Events, events)
	if err != nil {
		logger.Fatal("failed to initialise order event publisher", zap.Error(err))
	}
	defer func() {
		if err := closePublisher(); err != nil {
			logger.Warn("order event publisher close error", zap.Error(err))
		}
	}()

	newID := func() string { return ulid.Make().String() }

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: registry.Products(),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	couponService, err := services.NewCouponService(services.CouponServiceDeps{
		Coupons:     registry.Coupons(),
		Clock:       time.Now,
		IDGenerator: newID,
		Logger:      events,
	})
	if err != nil {
		logger.Fatal("failed to initialise coupon service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:      registry.Orders(),
		Products:    registry.Products(),
		Coupons:     registry.Coupons(),
		Events:      publisher,
		Clock:       time.Now,
		IDGenerator: newID,
		Logger:      events,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Orders:           registry.Orders(),
		Gateways:         gateways,
		Mailer:           mailer,
		Events:           publisher,
		Deduper:          nonces,
		Currency:         cfg.PSP.Currency,
		NotifyTimeout:    cfg.SMTP.Timeout,
		WebhookReplayTTL: cfg.Idempotency.WebhookReplayTTL,
		Clock:            time.Now,
		Logger:           events,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment service", zap.Error(err))
	}

	invoiceService, err := services.NewInvoiceService(services.InvoiceServiceDeps{
		Orders: registry.Orders(),
	})
	if err != nil {
		logger.Fatal("failed to initialise invoice service", zap.Error(err))
	}

	wishlistService, err := services.NewWishlistService(services.WishlistServiceDeps{
		Wishlists: registry.Wishlists(),
		Products:  registry.Products(),
	})
	if err != nil {
		logger.Fatal("failed to initialise wishlist service", zap.Error(err))
	}

	productAdminService, err := services.NewProductAdminService(services.ProductAdminServiceDeps{
		Products:    registry.Products(),
		Clock:       time.Now,
		IDGenerator: newID,
		Logger:      events,
	})
	if err != nil {
		logger.Fatal("failed to initialise product admin service", zap.Error(err))
	}

	productHandlers := handlers.NewProductHandlers(catalogService)
	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService, couponService, invoiceService,
		handlers.WithOrderCreateMiddleware(createGuard),
	)
	paymentHandlers := handlers.NewPaymentHandlers(authenticator, paymentService)
	userHandlers := handlers.NewUserHandlers(authenticator, wishlistService)
	adminHandlers := handlers.NewAdminHandlers(authenticator, orderService, productAdminService, couponService)

	healthOpts := []handlers.HealthOption{
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthCheck("firestore", firestoreProvider.Ping),
	}
	if redisClient != nil {
		healthOpts = append(healthOpts, handlers.WithHealthCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	}
	healthHandlers := handlers.NewHealthHandlers(healthOpts...)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger),
		observability.TraceMiddleware(cfg.Firestore.ProjectID),
		observability.RecoveryMiddleware(logger),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithBasePath(cfg.Server.BasePath),
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithPaymentRoutes(paymentHandlers.Routes),
		handlers.WithUserRoutes(userHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("basePath", cfg.Server.BasePath),
			zap.String("version", buildInfo.Version),
			zap.Bool("razorpay", cfg.PSP.RazorpayEnabled()),
			zap.Bool("stripe", cfg.PSP.StripeEnabled()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	opts := []secrets.Option{secrets.WithLogger(logger)}
	if v := strings.TrimSpace(env["API_SECURITY_ENVIRONMENT"]); v != "" {
		opts = append(opts, secrets.WithEnvironment(v))
	}
	project := strings.TrimSpace(env["API_SECRET_DEFAULT_PROJECT_ID"])
	if project == "" {
		project = strings.TrimSpace(env["API_FIRESTORE_PROJECT_ID"])
	}
	if project != "" {
		opts = append(opts, secrets.WithDefaultProject(project))
	}
	if v := strings.TrimSpace(env["API_SECRET_FALLBACK_FILE"]); v != "" {
		opts = append(opts, secrets.WithFallbackFile(v))
	}
	if projects := parseProjectMap(env["API_SECRET_PROJECT_IDS"]); len(projects) > 0 {
		opts = append(opts, secrets.WithProjectMap(projects))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// parseProjectMap reads "env=project,env2=project2".
func parseProjectMap(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if ok && key != "" && value != "" {
			out[key] = value
		}
	}
	return out
}

// requiredSecretNames lists secrets that must resolve for the configured auth mode and gateways.
func requiredSecretNames(env map[string]string) []string {
	var names []string
	if strings.EqualFold(strings.TrimSpace(env["API_AUTH_MODE"]), config.AuthModeJWT) {
		names = append(names, "API_AUTH_JWT_SECRET")
	}
	if strings.TrimSpace(env["API_PSP_RAZORPAY_KEY_ID"]) != "" {
		names = append(names, "API_PSP_RAZORPAY_KEY_SECRET", "API_PSP_RAZORPAY_WEBHOOK_SECRET")
	}
	if strings.TrimSpace(env["API_PSP_STRIPE_API_KEY"]) != "" {
		names = append(names, "API_PSP_STRIPE_WEBHOOK_SECRET")
	}
	return names
}

func adminUIDs(env map[string]string) []string {
	var uids []string
	for _, uid := range strings.Split(env["API_AUTH_ADMIN_UIDS"], ",") {
		if uid = strings.TrimSpace(uid); uid != "" {
			uids = append(uids, uid)
		}
	}
	return uids
}

func newTokenVerifier(ctx context.Context, cfg config.Config) (auth.TokenVerifier, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeJWT:
		return auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	case config.AuthModeFirebase:
		return auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

func newGatewayManager(cfg config.Config, logger observability.EventLogger) (*payments.Manager, error) {
	var gateways []payments.Gateway
	if cfg.PSP.RazorpayEnabled() {
		razorpay, err := payments.NewRazorpayGateway(payments.RazorpayConfig{
			KeyID:         cfg.PSP.RazorpayKeyID,
			KeySecret:     cfg.PSP.RazorpayKeySecret,
			WebhookSecret: cfg.PSP.RazorpayWebhookSecret,
			Currency:      cfg.PSP.Currency,
			Timeout:       cfg.PSP.Timeout,
			Logger:        payments.Logger(logger),
		})
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, razorpay)
	}
	if cfg.PSP.StripeEnabled() {
		stripe, err := payments.NewStripeGateway(payments.StripeConfig{
			APIKey:        cfg.PSP.StripeAPIKey,
			WebhookSecret: cfg.PSP.StripeWebhookSecret,
			Currency:      cfg.PSP.Currency,
			Timeout:       cfg.PSP.Timeout,
			Logger:        payments.Logger(logger),
		})
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, stripe)
	}
	return payments.NewManager(gateways...)
}

func newOrderPublisher(ctx context.Context, cfg config.EventsConfig, logger observability.EventLogger) (services.OrderEventPublisher, func() error, error) {
	switch cfg.Backend {
	case config.EventsBackendPubSub:
		client, err := pubsub.NewClient(ctx, cfg.PubSubProject)
		if err != nil {
			return nil, nil, fmt.Errorf("pubsub client: %w", err)
		}
		publisher, err := jobs.NewPubSubOrderPublisher(client.Topic(cfg.PubSubTopic))
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return publisher, func() error {
			return errors.Join(publisher.Close(), client.Close())
		}, nil
	case config.EventsBackendKafka:
		publisher, err := jobs.NewKafkaOrderPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return publisher, publisher.Close, nil
	default:
		return jobs.LogOrderPublisher{Logger: logger}, func() error { return nil }, nil
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, startedAt time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   startedAt,
	}
}
