// Package main is the entry point for the KYC back-office server.
// It exposes the REST API used by administrators, staff and clients to move
// documents through the verification pipeline.
//
// Backing services are optional outside production:
//   - PostgreSQL (DATABASE_URL), otherwise in-memory stores
//   - Redis (REDIS_URL) for token revocation and the asynq notification queue,
//     otherwise an in-process outbox
//   - SMTP (SMTP_HOST), otherwise outgoing mail is logged
//   - S3 (S3_BUCKET), otherwise attachments are written to UPLOAD_DIR
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/newoon/backoffice-server/internal/config"
	"github.com/newoon/backoffice-server/internal/database"
	"github.com/newoon/backoffice-server/internal/handlers"
	"github.com/newoon/backoffice-server/internal/logger"
	"github.com/newoon/backoffice-server/internal/mailer"
	"github.com/newoon/backoffice-server/internal/metrics"
	"github.com/newoon/backoffice-server/internal/services"
	"github.com/newoon/backoffice-server/internal/storage"
	"github.com/newoon/backoffice-server/internal/store"
)

const notificationQueue = "notifications"

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(logger.Options{
		Development: !cfg.IsProduction(),
		File:        cfg.LogFile,
		MaxSizeMB:   cfg.LogMaxSizeMB,
		MaxBackups:  cfg.LogMaxBackups,
		MaxAgeDays:  cfg.LogMaxAgeDays,
	})
	defer log.Sync()
	sugar := log.Sugar()

	sugar.Infow("Starting back-office server",
		"port", cfg.Port,
		"env", cfg.Environment,
		"postgres", cfg.DatabaseURL != "",
		"redis", cfg.RedisURL != "",
	)

	ctx := context.Background()
	m := metrics.New()
	routerCfg := handlers.RouterConfig{
		AllowedOrigins:    cfg.AllowedOrigins,
		SecureCookie:      cfg.IsProduction(),
		AuthRatePerMinute: cfg.AuthRatePerMinute,
		AuthRateBurst:     cfg.AuthRateBurst,
	}

	// Stores
	var repos *store.Repos
	if cfg.DatabaseURL != "" {
		db, err := database.NewPool(ctx, cfg.DatabaseURL, database.PoolOptions{
			MaxConns: int32(cfg.DBMaxConns),
			MinConns: int32(cfg.DBMinConns),
		})
		if err != nil {
			sugar.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := database.EnsureSchema(ctx, db); err != nil {
			sugar.Fatalf("Failed to apply schema: %v", err)
		}
		repos = store.NewPostgres(db)
		routerCfg.DBPing = db.Ping
	} else {
		sugar.Warn("DATABASE_URL not set, using in-memory stores")
		repos = store.NewMemory()
	}

	// Attachments
	var files storage.Store
	if cfg.S3Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			sugar.Fatalf("Failed to configure S3 storage: %v", err)
		}
		files = s3Store
	} else {
		local, err := storage.NewLocalStore(cfg.UploadDir, cfg.UploadBaseURL)
		if err != nil {
			sugar.Fatalf("Failed to prepare upload dir: %v", err)
		}
		files = local
		routerCfg.UploadDir = local.Dir()
		routerCfg.UploadBaseURL = cfg.UploadBaseURL
	}

	// Mail
	var mail mailer.Mailer
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, sugar)
	} else {
		sugar.Warn("SMTP_HOST not set, outgoing mail will be logged")
		mail = mailer.NewLogMailer(sugar)
	}

	// Revocation list and notification outbox
	deliverer := services.NewNotificationDeliverer(repos.Notifications, sugar)
	var (
		revoked     services.RevocationList
		outbox      services.Outbox
		closeOutbox func(context.Context) error
	)
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			sugar.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			sugar.Fatalf("Failed to connect to redis: %v", err)
		}
		revoked = services.NewRedisRevocationList(rdb)
		routerCfg.RedisPing = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

		queueOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			sugar.Fatalf("Invalid REDIS_URL for queue: %v", err)
		}
		queueClient := asynq.NewClient(queueOpt)
		defer queueClient.Close()
		outbox = services.NewAsynqOutbox(queueClient, notificationQueue)

		worker := asynq.NewServer(queueOpt, asynq.Config{
			Concurrency: cfg.OutboxWorkers,
			Queues:      map[string]int{notificationQueue: 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				m.IncNotificationFailed("deliver")
				sugar.Errorw("Notification task failed", "type", task.Type(), "error", err)
			}),
		})
		mux := asynq.NewServeMux()
		mux.Handle(services.TypeNotificationDeliver, services.NotificationTaskHandler(deliverer))
		if err := worker.Start(mux); err != nil {
			sugar.Fatalf("Failed to start notification worker: %v", err)
		}
		closeOutbox = func(context.Context) error {
			worker.Shutdown()
			return nil
		}
	} else {
		revoked = services.NewMemoryRevocationList()
		ch := services.NewChannelOutbox(cfg.OutboxBuffer, deliverer, sugar, func() {
			m.IncNotificationFailed("deliver")
		})
		ch.Start(cfg.OutboxWorkers)
		outbox = ch
		closeOutbox = ch.Close
	}
	notify := services.NewDispatcher(outbox, m, sugar)

	// Initialize services
	svc := handlers.Services{
		Auth: services.NewAuthService(repos, services.AuthDeps{
			Tokens:      services.NewTokenService(cfg.JWTSecret, cfg.TokenTTL),
			Revoked:     revoked,
			Mail:        mail,
			Files:       files,
			Metrics:     m,
			FrontendURL: cfg.FrontendURL,
		}, sugar),
		Clients:       services.NewClientService(repos, notify, sugar),
		Documents:     services.NewDocumentService(repos, files, notify, m, sugar),
		Notifications: services.NewNotificationService(repos, sugar),
		Forms:         services.NewFormService(repos, notify, mail, m, sugar),
		Intakes:       services.NewIntakeService(repos, mail, m, cfg.FrontendURL, sugar),
		Complaints:    services.NewComplaintService(repos, files, notify, sugar),
		Meetings:      services.NewMeetingService(repos, notify, sugar),
		Roles:         services.NewRoleService(repos, notify, sugar),
		Catalog:       services.NewCatalogService(repos, files, notify, sugar),
		Assignments:   services.NewAssignmentService(repos, notify, sugar),
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handlers.NewRouter(svc, routerCfg, m, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	sugar.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("Forced shutdown", "error", err)
	}
	// Requests are finished, so no more events can be enqueued
	if err := closeOutbox(shutdownCtx); err != nil {
		sugar.Errorw("Notification outbox did not drain", "error", err)
	}

	sugar.Info("Server stopped")
}
