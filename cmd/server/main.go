package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/esplendidez/fest-registration/internal/config"
	"github.com/esplendidez/fest-registration/internal/database"
	"github.com/esplendidez/fest-registration/internal/draft"
	"github.com/esplendidez/fest-registration/internal/handler"
	"github.com/esplendidez/fest-registration/internal/logging"
	"github.com/esplendidez/fest-registration/internal/metrics"
	"github.com/esplendidez/fest-registration/internal/middleware"
	"github.com/esplendidez/fest-registration/internal/notify"
	"github.com/esplendidez/fest-registration/internal/queue"
	"github.com/esplendidez/fest-registration/internal/repository"
	"github.com/esplendidez/fest-registration/internal/router"
	"github.com/esplendidez/fest-registration/internal/service"
	"github.com/esplendidez/fest-registration/internal/storage"
	"github.com/esplendidez/fest-registration/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}
	cfg := config.Load()
	logger := logging.Init(cfg.Env, cfg.LogLevel)
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.OpenWithRetry(ctx, cfg.DatabaseURL, config.LoadRetryPolicy())
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}
	if err := database.SyncSequence(ctx, db, cfg.RegistrationPrefix); err != nil {
		log.Fatal().Err(err).Msg("sync registration sequence")
	}

	// Redis is optional: without it the limiters and the stats cache pass
	// through and drafts fall back to the session tier.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unavailable; rate limiting, stats cache and durable drafts disabled")
	} else {
		defer rdb.Close()
	}

	ucfg := config.LoadUploadConfig()
	intake := storage.NewIntake(newBackend(ucfg))
	drafts := newDraftCache(config.LoadDraftConfig(), rdb)

	qcfg := config.LoadQueueConfig()
	var events service.EventPublisher = service.NopPublisher{}
	if qcfg.Enabled {
		events = service.NewQueuePublisher(qcfg)
		if qcfg.Consume {
			consumer := queue.NewConsumer(qcfg, notify.New(config.LoadMailConfig()))
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("notification consumer stopped")
				}
			}()
		}
	}

	cred, err := utils.NewAdminCredential(cfg.AdminPassword, cfg.AdminPasswordHash, cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("hash admin password")
	}

	store := repository.NewRegistrationRepo(db, cfg.RegistrationPrefix)
	dev := cfg.Development()
	cacheCfg := config.LoadCacheConfig()

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler(dev)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.Metrics())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, middleware.AdminTokenHeader},
	}))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))

	uploadDir := ""
	if ucfg.Backend == "local" {
		uploadDir = ucfg.Dir
	}
	router.Register(e, router.Handlers{
		Health:       handler.NewHealthHandler(func(ctx context.Context) error { return database.Health(ctx, db) }),
		Registration: handler.NewRegistrationHandler(store, intake, drafts, events, dev),
		Payment:      handler.NewPaymentHandler(store, events, dev),
		Drafts:       handler.NewDraftHandler(drafts, intake, dev),
		Admin:        handler.NewAdminHandler(store, cred, events, cfg.JWTSecret, cfg.AdminTokenTTL, dev),
	}, router.Options{
		AdminSecret:  cfg.JWTSecret,
		UploadDir:    uploadDir,
		APILimiter:   middleware.NewRateLimiter(config.LoadRateLimitConfig("RATE_LIMIT", config.DefaultAPIRateLimit(cfg.Env)), rdb),
		LoginLimiter: middleware.NewRateLimiter(config.LoadRateLimitConfig("AUTH_RATE_LIMIT", config.DefaultAuthRateLimit()), rdb),
		StatsCache:   middleware.NewRedisCache(cacheCfg, rdb),
		Invalidate:   middleware.InvalidateOnWrite(cacheCfg, rdb),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}

// newBackend picks local disk or Cloudinary.
func newBackend(u config.UploadConfig) (storage.Backend, int64) {
	comp := &storage.Compressor{MaxDimension: u.MaxDimension, Quality: u.JPEGQuality}
	if u.Backend == "cloudinary" {
		b, err := storage.NewCloudinaryBackend(u.CloudinaryURL, u.CloudFolder, comp, u.UploadTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("configure cloudinary")
		}
		log.Info().Str("folder", u.CloudFolder).Msg("uploads go to cloudinary")
		return b, u.MaxBytes
	}
	b, err := storage.NewLocalBackend(u.Dir, u.PublicPrefix, comp)
	if err != nil {
		log.Fatal().Err(err).Msg("prepare upload dir")
	}
	log.Info().Str("dir", u.Dir).Msg("uploads go to local disk")
	return b, u.MaxBytes
}

func newDraftCache(d config.DraftConfig, rdb *redis.Client) *draft.Cache {
	var durable draft.Store
	if rdb != nil {
		durable = draft.NewRedisStore(rdb, d.Prefix, d.DurableTTL)
	}
	return draft.NewCache(durable, draft.NewSessionStore(d.SessionTTL), d.LookupTimeout)
}
