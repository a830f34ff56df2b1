// Package main is the entrypoint for the collate worker Lambda.
//
// The collate worker runs on an EventBridge schedule shortly after the
// daily print deadline. It selects every letter ready for printing,
// packs them into size-bounded per-service archive groups, and emits one
// zip-batch manifest per group to the zip worker.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"postroom/internal/batch"
	"postroom/internal/config"
	"postroom/internal/db"
	"postroom/internal/letters"
	"postroom/internal/logging"
	"postroom/internal/queue"
	"postroom/internal/storage"
	"postroom/internal/types"
)

// Handler holds the collate worker's dependencies.
type Handler struct {
	collator *batch.Collator
	logger   types.Logger
}

// Handle runs one collation pass. The scheduled event payload carries no
// parameters; the run window is derived from the clock.
func (h *Handler) Handle(ctx context.Context, event events.EventBridgeEvent) error {
	h.logger.Info("scheduled collation triggered",
		"event_id", event.ID,
		"event_time", event.Time.String(),
	)
	return h.collator.Run(ctx)
}

func main() {
	ctx := context.Background()

	region := os.Getenv("AWS_REGION")
	cfg, err := config.Load(config.NewSSMProvider(region))
	if err != nil {
		logging.New("info").Error("failed to load configuration", "error", err.Error())
		os.Exit(1)
	}

	slogger := logging.New(cfg.LogLevel)
	logger := logging.NewAdapter(slogger)
	slogger.Info("collate worker initializing (cold start)", "environment", cfg.Environment)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		slogger.Error("failed to load AWS SDK config", "error", err.Error())
		os.Exit(1)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		slogger.Error("invalid database URL", "error", err.Error())
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		slogger.Error("failed to create database pool", "error", err.Error())
		os.Exit(1)
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

	collator := batch.NewCollator(
		db.NewLetterRepository(pool),
		store,
		dispatcher,
		batch.Limits{
			MaxBytes: cfg.Letters.MaxZipBytes,
			MaxCount: cfg.Letters.MaxZipCount,
		},
		letters.ProcessingDeadline,
		types.RealClock{},
		logger,
	)

	handler := &Handler{collator: collator, logger: logger}

	slogger.Info("collate worker initialized",
		"zip_jobs_queue", cfg.AWS.ZipJobsQueue,
		"max_zip_bytes", cfg.Letters.MaxZipBytes,
		"max_zip_count", cfg.Letters.MaxZipCount,
	)

	lambda.Start(handler.Handle)
}
