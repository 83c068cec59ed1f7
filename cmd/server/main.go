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

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/qs3c/bible_search_server/config"
	"github.com/qs3c/bible_search_server/internal/api"
	"github.com/qs3c/bible_search_server/internal/api/handler"
	"github.com/qs3c/bible_search_server/internal/database"
	"github.com/qs3c/bible_search_server/internal/pkg/backend"
	"github.com/qs3c/bible_search_server/internal/pkg/cache"
	"github.com/qs3c/bible_search_server/internal/pkg/cron"
	"github.com/qs3c/bible_search_server/internal/pkg/jwt"
	"github.com/qs3c/bible_search_server/internal/pkg/logger"
	"github.com/qs3c/bible_search_server/internal/pkg/media"
	"github.com/qs3c/bible_search_server/internal/pkg/payment"
	"github.com/qs3c/bible_search_server/internal/pkg/pubsub"
	"github.com/qs3c/bible_search_server/internal/pkg/sse"
	"github.com/qs3c/bible_search_server/internal/pkg/ws"
	"github.com/qs3c/bible_search_server/internal/repository"
	"github.com/qs3c/bible_search_server/internal/service"
)

func main() {
	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	log := logger.New(&cfg.Log)

	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}
	log.WithField("driver", cfg.Database.Driver).Info("database connected")

	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("failed to connect redis")
	}
	log.Info("redis connected")

	// Repositories
	userRepo := repository.NewUserRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	searchRepo := repository.NewSearchRepository(db)
	userSearchRepo := repository.NewUserSearchRepository(db)
	mediaRepo := repository.NewMediaCacheRepository(db)
	usageRepo := repository.NewUsageRepository(db)

	// Upstream clients
	verifier, jwks := newVerifier(&cfg.Auth)
	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.ResponseHeaderTimeout)
	gateway := payment.NewStripeGateway(cfg.Payment.SecretKey, cfg.Payment.WebhookSecret)
	mediaClient := media.NewClient(cfg.Media.APIKey, cfg.Media.Endpoint, cfg.Media.ResultCount)
	publisher := pubsub.NewPublisher(rdb)

	// Services
	userService := service.NewUserService(userRepo, txRepo, cfg)
	usageService := service.NewUsageService(usageRepo, cfg, log)
	creditService := service.NewCreditService(userRepo, cfg)
	searchService := service.NewSearchService(searchRepo, creditService, backendClient, sse.NewReplayer(), publisher, cfg, log)
	historyService := service.NewHistoryService(searchRepo, userSearchRepo, publisher, log)
	voteService := service.NewVoteService(searchRepo, userSearchRepo)
	paymentService := service.NewPaymentService(gateway, txRepo, userRepo, userService, cfg, log)
	mediaService := service.NewMediaService(mediaClient, mediaRepo, cache.New(rdb, "media:"), usageService, cfg, log)
	healthService := newHealthService(cfg, log, db, rdb, backendClient, gateway, jwks)

	// Realtime history push
	hub := ws.NewHub(log)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		err := pubsub.NewSubscriber(rdb).Subscribe(ctx, hub.Deliver)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("history subscriber stopped")
		}
	}()

	cronService := cron.NewService(mediaService, usageService, log)
	cronService.Start()

	handlers := &api.Handlers{
		Search:    handler.NewSearchHandler(searchService, log),
		Credit:    handler.NewCreditHandler(creditService),
		History:   handler.NewHistoryHandler(historyService),
		Vote:      handler.NewVoteHandler(voteService),
		Payment:   handler.NewPaymentHandler(paymentService),
		User:      handler.NewUserHandler(userService),
		Media:     handler.NewMediaHandler(mediaService),
		Health:    handler.NewHealthHandler(healthService),
		WebSocket: handler.NewWebSocketHandler(hub, verifier, userService, cfg.CORS.AllowedOrigins, log),
	}
	engine := api.NewRouter(handlers, verifier, userService, usageService, cfg, log).Setup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown incomplete")
	}
	// hijacked websocket connections are not covered by Shutdown
	hub.Close()

	cronService.Stop()
	if err := rdb.Close(); err != nil {
		log.WithError(err).Warn("failed to close redis")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server stopped")
}

// newVerifier prefers the identity provider's JWKS and falls back to the
// shared HS256 secret. The JWKS verifier is also returned for health probing.
func newVerifier(cfg *config.AuthConfig) (jwt.Verifier, *jwt.JWKSVerifier) {
	var opts []jwt.Option
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	if cfg.JWKSURL != "" {
		jwks := jwt.NewJWKSVerifier(cfg.JWKSURL, &http.Client{Timeout: 5 * time.Second}, opts...)
		return jwks, jwks
	}
	return jwt.NewHMACVerifier(cfg.JWTSecret, opts...), nil
}

func newHealthService(
	cfg *config.Config,
	log *logrus.Logger,
	db *gorm.DB,
	rdb *redis.Client,
	backendClient *backend.Client,
	gateway *payment.StripeGateway,
	jwks *jwt.JWKSVerifier,
) *service.HealthService {
	health := service.NewHealthService(cfg.Health.Timeout, log)

	health.AddProbe("database", true, func(ctx context.Context) error {
		return database.Ping(ctx, db)
	})
	health.AddProbe("redis", false, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	health.AddProbe("backend", false, backendClient.Ping)
	health.AddProbe("payment", false, func(context.Context) error {
		if !gateway.Configured() {
			return service.ErrNotConfigured
		}
		return nil
	})
	health.AddProbe("identity", false, func(ctx context.Context) error {
		if jwks == nil {
			return service.ErrNotConfigured
		}
		return jwks.Ping(ctx)
	})

	return health
}
