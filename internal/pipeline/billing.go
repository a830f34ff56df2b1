package pipeline

import (
	"context"

	"postroom/internal/letters"
	"postroom/internal/types"
)

// RecordBillableUnits is the task boundary for the billable-units update
// the renderer reports back once it knows the page count.
func (o *Orchestrator) RecordBillableUnits(ctx context.Context, msg types.BillableUnitsMessage) error {
	result, err := o.recordBillableUnits(ctx, msg)
	o.metrics.RecordOutcome(ctx, "billable_units", result)
	if err == nil {
		return nil
	}
	return o.retryOrEscalate(ctx, "billable units update", msg.NotificationID, err, msg.RetryCount,
		func() error { return o.tasks.RetryBillableUnits(ctx, msg, o.retry.Delay) })
}

func (o *Orchestrator) recordBillableUnits(ctx context.Context, msg types.BillableUnitsMessage) (ApplyResult, error) {
	notification, err := o.repo.GetByID(ctx, msg.NotificationID)
	if err != nil {
		return Failed, err
	}

	// Test-key letters are exempt from billing mutation entirely.
	if notification.IsTestKey() {
		return SkippedAlreadyProcessed, nil
	}

	units := letters.BillableUnitsForPageCount(msg.PageCount)
	if err := o.repo.SetBillableUnits(ctx, notification.ID, units); err != nil {
		return Failed, err
	}

	o.logger.Info("billable units set",
		"notification_id", notification.ID,
		"reference", notification.Reference,
		"page_count", msg.PageCount,
		"billable_units", units,
	)
	return Applied, nil
}
