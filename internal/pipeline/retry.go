package pipeline

import (
	"context"
	"fmt"
	"time"

	"postroom/internal/types"
)

// RetryPolicy bounds the publish-subscribe retry cycle for a pipeline
// task. Delay is fixed, not exponential: the failures worth retrying
// here are store and storage hiccups that clear on their own, and a
// predictable cadence makes the escalation deadline predictable too
// (15 attempts x 5 minutes = 75 minutes before a letter escalates).
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy is the policy every retryable letter task runs
// under.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 15,
		Delay:       5 * time.Minute,
	}
}

// retryOrEscalate is the shared failure boundary for retryable tasks.
// While attempts remain it re-enqueues the task (via republish) and
// reports success to the queue, so the delayed copy becomes the retry.
// On exhaustion it forces the notification to technical-failure and
// returns a distinguished retry-exhaustion error: the task runner
// records a hard failure and the escalation is never a silent drop.
func (o *Orchestrator) retryOrEscalate(
	ctx context.Context,
	task string,
	notificationID string,
	cause error,
	attempt int,
	republish func() error,
) error {
	if attempt < o.retry.MaxAttempts {
		o.logger.Warn("task failed, retrying",
			"task", task,
			"notification_id", notificationID,
			"attempt", attempt,
			"delay", o.retry.Delay.String(),
			"error", cause.Error(),
		)
		if err := republish(); err != nil {
			// Could not re-enqueue; surface the original failure so the
			// queue redelivers the message instead.
			return fmt.Errorf("%s: retry publish failed (%v) after: %w", task, err, cause)
		}
		return nil
	}

	o.failTechnically(ctx, notificationID)
	return types.NewAppError(types.ErrCodeRetryExhausted,
		fmt.Sprintf("%s: max retries reached for notification %s; notification has been updated to technical-failure", task, notificationID),
		cause)
}

// failTechnically forces a notification into technical-failure. A store
// failure at this point is logged and swallowed: the caller is already
// on an escalation path and the distinguished error it raises must not
// be displaced.
func (o *Orchestrator) failTechnically(ctx context.Context, notificationID string) {
	if notificationID == "" {
		return
	}
	if _, err := o.repo.UpdateStatus(ctx, notificationID, types.StatusTechnicalFailure); err != nil {
		o.logger.Error("failed to mark notification technical-failure",
			"notification_id", notificationID,
			"error", err.Error(),
		)
	}
}
