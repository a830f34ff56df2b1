// Package main is the entrypoint for the scan worker Lambda.
//
// The scan worker consumes the scan-events queue, which carries the
// callbacks from the external antivirus scanner and the sanitiser:
// scan-passed triggers, sealed sanitiser verdicts, and scan failures.
// The "task" message attribute discriminates between them.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"postroom/internal/config"
	"postroom/internal/db"
	"postroom/internal/envelope"
	"postroom/internal/logging"
	"postroom/internal/pipeline"
	"postroom/internal/queue"
	"postroom/internal/storage"
	"postroom/internal/types"
)

// Handler holds the scan worker's dependencies.
type Handler struct {
	orch   *pipeline.Orchestrator
	logger types.Logger
}

// Handle processes an SQS event with partial batch responses, so only
// failed messages are redelivered.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process SQS message",
				"message_id", record.MessageId,
				"task", taskName(record),
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func (h *Handler) processRecord(ctx context.Context, record events.SQSMessage) error {
	switch task := taskName(record); task {
	case queue.TaskScanPassed:
		var msg types.ScanPassedMessage
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			h.logger.Error("unparseable scan-passed message",
				"message_id", record.MessageId, "error", err.Error())
			return nil
		}
		return h.orch.ProcessScanPassed(ctx, msg)

	case queue.TaskSanitisedResult:
		var msg types.SanitisedResultMessage
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			h.logger.Error("unparseable sanitised-result message",
				"message_id", record.MessageId, "error", err.Error())
			return nil
		}
		return h.orch.ProcessSanitisedLetter(ctx, msg)

	case queue.TaskScanFailure:
		var msg types.ScanFailureMessage
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			h.logger.Error("unparseable scan-failure message",
				"message_id", record.MessageId, "error", err.Error())
			return nil
		}
		// ProcessScanFailure reports a distinguished error even after a
		// completed move so the failure alerts; the letter itself is
		// already in its final state and a redelivery is a benign no-op.
		return h.orch.ProcessScanFailure(ctx, msg)

	default:
		h.logger.Warn("unknown task on scan-events queue",
			"message_id", record.MessageId, "task", task)
		return nil
	}
}

// taskName extracts the task discriminator attribute from an SQS record.
func taskName(record events.SQSMessage) string {
	if attr, ok := record.MessageAttributes[queue.TaskAttribute]; ok && attr.StringValue != nil {
		return *attr.StringValue
	}
	return ""
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
	slogger.Info("scan worker initializing (cold start)", "environment", cfg.Environment)

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

	codec, err := envelope.NewCodec(cfg.Letters.SealingSecret)
	if err != nil {
		slogger.Error("failed to create payload codec", "error", err.Error())
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

	orch := pipeline.New(pipeline.Config{
		Repo:   db.NewLetterRepository(pool),
		Store:  store,
		Tasks:  dispatcher,
		Codec:  codec,
		Retry:  pipeline.RetryPolicy{MaxAttempts: cfg.Letters.MaxRetries, Delay: cfg.Letters.RetryDelay},
		Logger: logger,
		Metrics: pipeline.NewCloudWatchOutcomeRecorder(
			cloudwatch.NewFromConfig(awsCfg), logger),
		AntivirusEnabled: cfg.Letters.AntivirusEnabled,
	})

	handler := &Handler{orch: orch, logger: logger}

	slogger.Info("scan worker initialized",
		"scan_events_queue", cfg.AWS.ScanEventsQueue,
		"antivirus_enabled", cfg.Letters.AntivirusEnabled,
	)

	lambda.Start(handler.Handle)
}
