package pipeline

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"postroom/internal/types"
)

// metricNamespace is the CloudWatch namespace for letter pipeline metrics.
const metricNamespace = "Postroom/Letters"

// Metric and dimension names.
const (
	metricTaskOutcome = "LetterTaskOutcome"
	dimTask           = "Task"
	dimOutcome        = "Outcome"
)

// OutcomeRecorder records the outcome of each pipeline task so operators
// can alarm on escalations without scraping logs.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, task string, result ApplyResult)
}

// NopOutcomeRecorder discards all metrics. Used in tests and local runs.
type NopOutcomeRecorder struct{}

// RecordOutcome does nothing.
func (NopOutcomeRecorder) RecordOutcome(context.Context, string, ApplyResult) {}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchOutcomeRecorder emits task outcomes to CloudWatch. Metric
// emission is best effort: a metrics failure is logged and never fails
// the task that produced it.
type CloudWatchOutcomeRecorder struct {
	client CloudWatchClient
	logger types.Logger
}

// NewCloudWatchOutcomeRecorder creates a recorder publishing to the
// letter pipeline namespace.
func NewCloudWatchOutcomeRecorder(client CloudWatchClient, logger types.Logger) *CloudWatchOutcomeRecorder {
	return &CloudWatchOutcomeRecorder{client: client, logger: logger}
}

// RecordOutcome emits one LetterTaskOutcome datum with Task and Outcome
// dimensions.
func (m *CloudWatchOutcomeRecorder) RecordOutcome(ctx context.Context, task string, result ApplyResult) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(metricNamespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metricTaskOutcome),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(dimTask), Value: aws.String(task)},
					{Name: aws.String(dimOutcome), Value: aws.String(result.String())},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record task outcome metric",
			"task", task,
			"outcome", result.String(),
			"error", err.Error(),
		)
	}
}
