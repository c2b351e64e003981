package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"taxfolio/internal/app"
	"taxfolio/internal/config"
	"taxfolio/internal/ratelimit"
	"taxfolio/internal/server"
	"taxfolio/internal/util"
	"taxfolio/pkg/ai"
	"taxfolio/pkg/gmail"
	"taxfolio/pkg/mailauth"
	"taxfolio/pkg/storage"
	"taxfolio/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	sessionTTL, err := config.ParseTTL(cfg.SessionTTL, 24*time.Hour)
	if err != nil {
		log.Fatalf("failed to parse sessionTTL: %v", err)
	}
	stateTTL, err := config.ParseTTL(cfg.AuthStateTTL, 10*time.Minute)
	if err != nil {
		log.Fatalf("failed to parse authStateTTL: %v", err)
	}

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init postgres store: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	authStates, err := store.NewRedisAuthStateStore(redisClient, stateTTL)
	if err != nil {
		log.Fatalf("failed to init auth state store: %v", err)
	}
	sessions := store.NewRedisSessionStore(redisClient, sessionTTL)

	var mailProvider mailauth.Provider
	if cfg.GmailClientID != "" && cfg.GmailClientSecret != "" {
		provider, err := mailauth.NewGoogleProvider(cfg.GmailClientID, cfg.GmailClientSecret, cfg.OAuthRedirectURL)
		if err != nil {
			log.Fatalf("failed to init gmail oauth provider: %v", err)
		}
		mailProvider = provider
	} else {
		slog.Warn("gmail oauth credentials not configured; mailbox connect disabled")
	}

	var generator ai.TextGenerator
	switch cfg.ModelProvider {
	case "ollama":
		generator = ai.NewOllamaGenerator(cfg.ModelBaseURL, cfg.ModelName)
	default:
		if cfg.ModelBaseURL != "" {
			generator = ai.NewOpenAIGenerator(cfg.ModelBaseURL, cfg.ModelAPIKey, cfg.ModelName)
		} else {
			slog.Warn("model provider not configured; extraction endpoints disabled")
		}
	}

	var objects storage.ObjectStore
	if cfg.DisableObjectStorage || cfg.MinioEndpoint == "" {
		objects = storage.NewMemoryStore()
		slog.Warn("object storage not configured; document originals kept in memory")
	} else {
		minioStore, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
		objects = minioStore
	}

	var limiter, authLimiter *ratelimit.FixedWindowLimiter
	if !cfg.DisableModelRateLimit && cfg.ModelRateLimitPerMin > 0 {
		limiter, err = ratelimit.NewFixedWindowLimiter(redisClient, "taxfolio:ratelimit:model", cfg.ModelRateLimitPerMin, time.Minute)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	}
	if cfg.AuthRateLimitPerMin > 0 {
		authLimiter, err = ratelimit.NewFixedWindowLimiter(redisClient, "taxfolio:ratelimit:auth", cfg.AuthRateLimitPerMin, time.Minute)
		if err != nil {
			log.Fatalf("failed to init auth rate limiter: %v", err)
		}
	}

	appCore, err := app.New(app.Config{
		Store:        dataStore,
		AuthStates:   authStates,
		Sessions:     sessions,
		MailProvider: mailProvider,
		Mail:         gmail.NewClient(),
		Generator:    generator,
		Objects:      objects,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		AppOrigin:      cfg.AppOrigin,
		Limiter:        limiter,
		AuthLimiter:    authLimiter,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("taxfolio server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
