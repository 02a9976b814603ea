// Command server runs the ReviveReads marketplace API.
//
// @title                       ReviveReads API
// @version                     1.0
// @description                 Used-book marketplace: listings, moderation, messaging and admin dashboards.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
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

	"github.com/rs/zerolog"

	_ "github.com/revivereads/marketplace/docs"
	"github.com/revivereads/marketplace/internal/api"
	"github.com/revivereads/marketplace/internal/api/handler"
	"github.com/revivereads/marketplace/internal/api/metrics"
	"github.com/revivereads/marketplace/internal/api/middleware"
	"github.com/revivereads/marketplace/internal/core/ports"
	"github.com/revivereads/marketplace/internal/core/service"
	"github.com/revivereads/marketplace/internal/infrastructure/config"
	mongodb "github.com/revivereads/marketplace/internal/infrastructure/db/mongo"
	redisdb "github.com/revivereads/marketplace/internal/infrastructure/db/redis"
	"github.com/revivereads/marketplace/internal/infrastructure/mail"
	"github.com/revivereads/marketplace/internal/infrastructure/queue"
	"github.com/revivereads/marketplace/internal/infrastructure/realtime"
	"github.com/revivereads/marketplace/internal/infrastructure/storage"
	"github.com/revivereads/marketplace/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.Init(logger.Options{Pretty: true})
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.Production(),
		Service: "revivereads",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Datastores ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer rdb.Close()

	userRepo := mongodb.NewUserRepository(db)
	bookRepo := mongodb.NewBookRepository(db)
	conversationRepo := mongodb.NewConversationRepository(db)
	messageRepo := mongodb.NewMessageRepository(db)
	notificationRepo := mongodb.NewNotificationRepository(db)
	activityRepo := mongodb.NewActivityRepository(db)
	auditRepo := mongodb.NewAuditRepository(db)

	if err := mongodb.EnsureIndexes(ctx,
		userRepo, bookRepo, conversationRepo, messageRepo,
		notificationRepo, activityRepo, auditRepo,
	); err != nil {
		return err
	}

	limiter, err := redisdb.NewFixedWindowLimiter(rdb, "", cfg.Auth.RateLimit, cfg.Auth.RateWindow)
	if err != nil {
		return err
	}
	otpThrottle := redisdb.NewOTPThrottle(rdb, cfg.Auth.OTPResend)

	// --- Mail ---
	var mailer queue.Mailer
	if cfg.SMTP.Host != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		log.Warn().Msg("SMTP_HOST not set, emails will be logged instead of sent")
		mailer = mail.NewLogMailer(logger.Component("mail"))
	}
	dispatcher := queue.NewMailDispatcher(cfg.SMTP.Workers, mailer, logger.Component("mail"))
	dispatcher.Start(ctx)
	defer dispatcher.Stop()
	metrics.RegisterMailQueueDepth(dispatcher.Pending)

	// --- Images ---
	images, uploadDir, err := newImageStore(ctx, cfg, logger.Component("storage"))
	if err != nil {
		return err
	}

	// --- Realtime ---
	hub := realtime.NewHub(nil, logger.Component("realtime"))
	hub.OnConnectionsChanged = func(n int) { metrics.RealtimeConnections.Set(float64(n)) }

	origins := cfg.AllowedOrigins()
	frontendURL := ""
	if len(origins) > 0 {
		frontendURL = origins[0]
	}

	// --- Services ---
	activityService := service.NewActivityService(activityRepo, auditRepo, logger.Component("activity"))
	notificationService := service.NewNotificationService(notificationRepo, hub, logger.Component("notifications"))
	hub.SetNotificationReader(notificationService)

	authService := service.NewAuthService(userRepo, activityService, dispatcher, otpThrottle, service.AuthConfig{
		JWTSecret:       cfg.JWTSecret,
		TokenTTL:        cfg.Auth.TokenTTL,
		OTPTTL:          cfg.Auth.OTPTTL,
		ResetTTL:        cfg.Auth.ResetTTL,
		MaxFailedLogins: cfg.Auth.MaxFailedLogins,
		LockoutDuration: cfg.Auth.LockoutDuration,
		FrontendURL:     frontendURL,
	}, logger.Component("auth"))
	userService := service.NewUserService(userRepo, bookRepo, conversationRepo, images, activityService, auditRepo, logger.Component("users"))
	bookService := service.NewBookService(bookRepo, userRepo, images, notificationService, activityService, auditRepo, logger.Component("books"))
	messageService := service.NewMessageService(userRepo, conversationRepo, messageRepo, notificationService, hub, logger.Component("messages"))
	adminService := service.NewAdminService(userRepo, bookRepo, activityRepo, auditRepo, logger.Component("admin"))

	// --- HTTP ---
	clientIP, err := middleware.ClientIP(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	handlers := api.Handlers{
		Auth:         handler.NewAuthHandler(authService, handler.CookieConfig{Secure: cfg.Production()}),
		User:         handler.NewUserHandler(userService),
		Book:         handler.NewBookHandler(bookService),
		Message:      handler.NewMessageHandler(messageService),
		Notification: handler.NewNotificationHandler(notificationService),
		Admin:        handler.NewAdminHandler(adminService),
		Activity:     handler.NewActivityHandler(activityService),
		Health:       handler.NewHealthHandler(),
		Readiness: handler.NewReadinessHandler(map[string]handler.Pinger{
			"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
		WS: handler.NewWSHandler(hub, authService, cfg.JWTSecret, origins, logger.Component("realtime")),
	}
	e := api.NewRouter(handlers, api.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: origins,
		UploadDir:      uploadDir,
		Sessions:       authService,
		AuthLimiter:    limiter,
		Activity:       activityService,
		IPExtractor:    clientIP,
		Log:            logger.Component("http"),
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// newImageStore picks the object store for uploads. The returned directory is
// served statically and is empty for remote stores.
func newImageStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.ImageStore, string, error) {
	compressor := storage.NewCompressor(cfg.Storage.ImageMaxWidth)

	if cfg.Storage.Driver == config.StorageMinio {
		store, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.MinioEndpoint,
			AccessKey: cfg.Storage.MinioAccessKey,
			SecretKey: cfg.Storage.MinioSecretKey,
			Bucket:    cfg.Storage.MinioBucket,
			UseSSL:    cfg.Storage.MinioUseSSL,
		})
		if err != nil {
			return nil, "", err
		}
		base := cfg.Storage.MinioPublicURL
		if base == "" {
			scheme := "http://"
			if cfg.Storage.MinioUseSSL {
				scheme = "https://"
			}
			base = scheme + cfg.Storage.MinioEndpoint + "/" + cfg.Storage.MinioBucket
		}
		return storage.NewImageService(store, compressor, base, log), "", nil
	}

	store, err := storage.NewFileStore(cfg.Storage.UploadDir)
	if err != nil {
		return nil, "", err
	}
	base := strings.TrimRight(cfg.PublicURL, "/") + "/api/uploads"
	return storage.NewImageService(store, compressor, base, log), cfg.Storage.UploadDir, nil
}
