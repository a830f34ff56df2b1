// Package main is the entrypoint for the letter worker Lambda.
//
// The letter worker consumes the letter-tasks queue, which carries two
// task types discriminated by the "task" message attribute: render
// dispatch requests for newly created letters, and billable-units
// updates reported back by the renderer. Both run through the pipeline
// orchestrator with the standard retry-then-escalate behavior.
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

// Handler holds the letter worker's dependencies.
type Handler struct {
	orch   *pipeline.Orchestrator
	logger types.Logger
}

// Handle processes an SQS event. Lambda SQS integration uses partial
// batch responses: messages that fail processing are returned in
// batchItemFailures so SQS redelivers only those.
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
	case queue.TaskRenderRequest:
		var msg types.RenderRequestMessage
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			// Permanent parse failure, do not retry.
			h.logger.Error("unparseable render request message",
				"message_id", record.MessageId, "error", err.Error())
			return nil
		}
		return h.orch.RequestRender(ctx, msg)

	case queue.TaskBillableUnits:
		var msg types.BillableUnitsMessage
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			h.logger.Error("unparseable billable units message",
				"message_id", record.MessageId, "error", err.Error())
			return nil
		}
		return h.orch.RecordBillableUnits(ctx, msg)

	default:
		h.logger.Warn("unknown task on letter-tasks queue",
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
	slogger.Info("letter worker initializing (cold start)", "environment", cfg.Environment)

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

	slogger.Info("letter worker initialized",
		"letter_tasks_queue", cfg.AWS.LetterTasksQueue,
		"max_retries", cfg.Letters.MaxRetries,
		"retry_delay", cfg.Letters.RetryDelay.String(),
	)

	lambda.Start(handler.Handle)
}
