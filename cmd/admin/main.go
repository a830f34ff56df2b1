// Package main is the entry point for the postroom admin server.
//
// The admin server exposes the operator surface: a health probe and the
// replay endpoint that returns letters stranded in the error archive to
// the scanning pipeline. It runs as a standard HTTP server with graceful
// shutdown on SIGINT/SIGTERM.
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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"postroom/internal/admin"
	"postroom/internal/config"
	"postroom/internal/db"
	"postroom/internal/envelope"
	"postroom/internal/logging"
	"postroom/internal/pipeline"
	"postroom/internal/queue"
	"postroom/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on
// error.
func run() error {
	ctx := context.Background()

	region := os.Getenv("AWS_REGION")
	cfg, err := config.Load(config.NewSSMProvider(region))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	slogger := logging.New(cfg.LogLevel)
	logger := logging.NewAdapter(slogger)
	slogger.Info("admin server starting",
		"environment", cfg.Environment,
		"port", cfg.Admin.Port,
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS SDK config: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()

	codec, err := envelope.NewCodec(cfg.Letters.SealingSecret)
	if err != nil {
		return fmt.Errorf("creating payload codec: %w", err)
	}

	store := storage.NewLetterStore(
		storage.NewGateway(s3.NewFromConfig(awsCfg)),
		storage.Buckets{
			ScanIntake:     cfg.AWS.ScanIntakeBucket,
			SanitiseIntake: cfg.AWS.SanitiseIntakeBucket,
			InvalidArchive: cfg.AWS.InvalidArchiveBucket,
			TestArchive:    cfg.AWS.TestArchiveBucket,
			LiveArchive:    cfg.AWS.LiveArchiveBucket,
			ErrorArchive:   cfg.AWS.ErrorArchiveBucket,
			PrintDispatch:  cfg.AWS.PrintDispatchBucket,
		},
	)

	dispatcher := queue.NewDispatcher(
		queue.NewPublisher(sqs.NewFromConfig(awsCfg), slogger),
		queue.URLs{
			LetterTasks:  cfg.AWS.LetterTasksQueue,
			ScanEvents:   cfg.AWS.ScanEventsQueue,
			RenderJobs:   cfg.AWS.RenderJobsQueue,
			SanitiseJobs: cfg.AWS.SanitiseJobsQueue,
			Antivirus:    cfg.AWS.AntivirusQueue,
			ZipJobs:      cfg.AWS.ZipJobsQueue,
		},
	)

	orch := pipeline.New(pipeline.Config{
		Repo:             db.NewLetterRepository(pool),
		Store:            store,
		Tasks:            dispatcher,
		Codec:            codec,
		Retry:            pipeline.RetryPolicy{MaxAttempts: cfg.Letters.MaxRetries, Delay: cfg.Letters.RetryDelay},
		Logger:           logger,
		AntivirusEnabled: cfg.Letters.AntivirusEnabled,
	})

	srv := admin.NewServer(orch, cfg.Admin.APIKey, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Admin.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slogger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		slogger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	slogger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slogger.Error("HTTP server shutdown error", "error", err.Error())
	}

	slogger.Info("server stopped cleanly")
	return nil
}
