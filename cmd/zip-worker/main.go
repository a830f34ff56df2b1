// Package main is the entrypoint for the zip worker Lambda.
//
// The zip worker consumes zip-batch manifests from the collator, fetches
// each member PDF from the letter archive, assembles the print archive
// ZIP and uploads it to the dispatch bucket for the print partner.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"postroom/internal/config"
	"postroom/internal/logging"
	"postroom/internal/storage"
	"postroom/internal/types"
	"postroom/internal/zipper"
)

// Handler holds the zip worker's dependencies.
type Handler struct {
	zipper *zipper.Zipper
	logger types.Logger
}

// Handle processes an SQS event of zip-batch manifests with partial
// batch responses.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process zip batch",
				"message_id", record.MessageId,
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
	var msg types.ZipBatchMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		h.logger.Error("unparseable zip batch message",
			"message_id", record.MessageId, "error", err.Error())
		return nil
	}
	return h.zipper.ZipAndSend(ctx, msg)
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
	slogger.Info("zip worker initializing (cold start)", "environment", cfg.Environment)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		slogger.Error("failed to load AWS SDK config", "error", err.Error())
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

	handler := &Handler{
		zipper: zipper.New(store, logger),
		logger: logger,
	}

	slogger.Info("zip worker initialized",
		"dispatch_bucket", cfg.AWS.PrintDispatchBucket,
	)

	lambda.Start(handler.Handle)
}
