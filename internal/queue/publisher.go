// Package queue provides the SQS producers that move letter tasks
// between workers and hand jobs to the external rendering, sanitising
// and scanning services.
//
// Retryable tasks follow a publish-subscribe retry pattern: the consumer
// re-publishes the same message to its own queue with a fixed delay and
// an incremented retry_count, so retry state lives in the message, not
// in worker memory.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// TaskAttribute is the SQS message attribute carrying the task name.
// Workers consuming a queue with more than one task type dispatch on it.
const TaskAttribute = "task"

// Task names. The external names (render, sanitise, scan) are a wire
// contract with the rendering and antivirus services; the internal names
// are only ever produced and consumed by this repository.
const (
	TaskRenderRequest   = "get-pdf-for-templated-letter"
	TaskBillableUnits   = "update-billable-units-for-letter"
	TaskScanPassed      = "sanitise-letter"
	TaskSanitisedResult = "process-sanitised-letter"
	TaskScanFailure     = "process-virus-scan-failure"
	TaskZipAndSend      = "zip-and-send-letter-pdfs"

	TaskCreateRenderJob = "create-pdf-for-templated-letter"
	TaskSanitiseJob     = "sanitise-and-validate-letter"
	TaskScanFile        = "scan-file"
)

// maxDelaySeconds is the SQS ceiling for DelaySeconds.
const maxDelaySeconds = 900

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher serializes task payloads and sends them to a queue with the
// task-name attribute set.
type Publisher struct {
	client SQSSender
	logger *slog.Logger
}

// NewPublisher creates a Publisher over the given SQS client.
func NewPublisher(client SQSSender, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Publish JSON-encodes msg and sends it to queueURL under the given task
// name. Delay is clamped to the SQS maximum of 900 seconds; the retry
// delay used by the pipeline (5 minutes) sits well inside it.
func (p *Publisher) Publish(ctx context.Context, queueURL, task string, msg any, delay time.Duration) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal %s payload: %w", task, err)
	}

	delaySec := int32(delay.Seconds())
	if delaySec > maxDelaySeconds {
		delaySec = maxDelaySeconds
	}
	if delaySec < 0 {
		delaySec = 0
	}

	input := &sqs.SendMessageInput{
		QueueUrl:     aws.String(queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delaySec,
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			TaskAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(task),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send %s to %s: %w", task, queueURL, err)
	}

	p.logger.InfoContext(ctx, "task published",
		"task", task,
		"queue_url", queueURL,
		"delay_seconds", delaySec,
	)

	return nil
}
