package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amekkawi/arq-console/internal/blob"
	"github.com/amekkawi/arq-console/internal/config"
	"github.com/amekkawi/arq-console/internal/content"
	"github.com/amekkawi/arq-console/internal/database"
	"github.com/amekkawi/arq-console/internal/ingest"
	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/parse"
	"github.com/amekkawi/arq-console/internal/queue"
	"github.com/amekkawi/arq-console/internal/ratelimit"
	"github.com/amekkawi/arq-console/internal/receiving"
	"github.com/amekkawi/arq-console/internal/store"
	"github.com/amekkawi/arq-console/internal/store/dynamo"
	"github.com/amekkawi/arq-console/internal/store/postgres"
	"github.com/amekkawi/arq-console/internal/telemetry"
	"github.com/amekkawi/arq-console/internal/usage"
	"github.com/amekkawi/arq-console/internal/web"
	"github.com/amekkawi/arq-console/internal/web/handlers"
	"github.com/amekkawi/arq-console/migrations"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	var db *sql.DB
	if cfg.UsesSQL() {
		db, err = postgres.NewDB(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		// Migrations
		if err := database.RunMigrations(migrations.FS, cfg.DatabaseURL); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	// Stores
	var st store.Store
	switch cfg.StoreBackend {
	case "postgres":
		st = postgres.NewStore(db)
	case "dynamodb":
		st, err = dynamo.New(ctx, dynamo.Config{
			Region:      cfg.AWSRegion,
			Endpoint:    cfg.DynamoDBEndpoint,
			ClientTable: cfg.DynamoDBClientTable,
			BackupTable: cfg.DynamoDBBackupTable,
			MetricTable: cfg.DynamoDBMetricTable,
		})
		if err != nil {
			slog.Error("failed to create dynamodb store", "error", err)
			os.Exit(1)
		}
	}

	q, err := queue.NewFromConfig(ctx, queue.Config{
		Backend:           cfg.QueueBackend,
		VisibilityTimeout: cfg.IngestVisibilityTimeout,
		DB:                db,
		SQSQueueURL:       cfg.SQSQueueURL,
		AWSRegion:         cfg.AWSRegion,
		SQSEndpoint:       cfg.SQSEndpoint,
	})
	if err != nil {
		slog.Error("failed to create queue", "error", err)
		os.Exit(1)
	}

	blobs, err := blob.NewFromConfig(ctx, blob.Config{
		Backend:           cfg.BlobBackend,
		FSRoot:            cfg.BlobFSRoot,
		S3Bucket:          cfg.S3Bucket,
		S3Region:          cfg.S3Region,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
		S3ForcePathStyle:  cfg.S3ForcePathStyle,
	})
	if err != nil {
		slog.Error("failed to create blob store", "error", err)
		os.Exit(1)
	}

	// Services
	contentManager := content.NewManager(blobs)
	parsers, err := parse.NewDefaultRegistry()
	if err != nil {
		slog.Error("failed to register parsers", "error", err)
		os.Exit(1)
	}
	verifier := receiving.NewVerifier(st, cfg.ReceivingEmailPrefix, cfg.ReceivingEmailDomain)
	intake := ingest.NewIntake(contentManager, q, cfg.NotificationChannel)

	var aggregator ingest.MetricsAggregator
	if cfg.IngestAggregate {
		aggregator = usage.NewAggregator(st)
	}
	ingester := ingest.NewIngester(
		ingest.EnvelopeExtractor{Channel: cfg.NotificationChannel, Filter: verifier.Filter()},
		verifier, contentManager, parsers, st, aggregator,
	)
	consumer := ingest.NewConsumer(q, ingest.NewWorker(q, ingester), ingest.ConsumerOptions{
		MaxWorkers:    cfg.IngestWorkerMax,
		MaxWorkerTime: cfg.IngestWorkerMaxTime,
		PollInterval:  cfg.IngestPollInterval,
	})
	go consumer.Start(ctx)

	// Orphaned content sweep
	if cfg.OrphanSweepInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.OrphanSweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				deliveryTypes := []string{models.DeliveryTypeEmail, models.DeliveryTypeHTTP}
				if _, err := contentManager.ReportOrphans(ctx, deliveryTypes, cfg.OrphanMinAge); err != nil {
					slog.Error("failed to sweep orphaned content", "error", err)
				}
			}
		}()
	}

	// Inbound SMTP server
	var smtpSrv *receiving.Server
	if cfg.InboundSMTPEnabled {
		smtpSrv = receiving.NewServer(cfg.InboundSMTPAddr, cfg.InboundSMTPDomain, verifier, intake)
		go func() {
			if err := smtpSrv.Start(); err != nil {
				slog.Error("inbound SMTP server error", "error", err)
			}
		}()
	}

	// Rate limiter
	limiter := ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Stop()

	// Handlers
	var pinger handlers.Pinger
	if db != nil {
		pinger = db
	}

	router := web.NewRouter(web.RouterDeps{
		BackupHandler: handlers.NewBackupHandler(verifier, parsers, intake, handlers.DefaultMaxBackupBodyBytes),
		HealthHandler: handlers.NewHealthHandler(pinger),
		OrphanHandler: handlers.NewOrphanHandler(contentManager, cfg.OrphanMinAge),
		Limiter:       limiter,
		AdminToken:    cfg.AdminToken,
		Metrics:       telemetry.Handler(),
	})

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("arq-console starting", "addr", addr, "store", cfg.StoreBackend, "queue", cfg.QueueBackend, "blob", cfg.BlobBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	if smtpSrv != nil {
		if err := smtpSrv.Shutdown(); err != nil {
			slog.Error("inbound SMTP shutdown error", "error", err)
		}
	}
}
