package pipeline

import (
	"context"
	"fmt"

	"postroom/internal/letters"
	"postroom/internal/types"
)

// ProcessScanFailure handles the scanner's fail callback. The file moves
// to the error archive, the owning notification is resolved by reference
// and marked virus-scan-failed (scanner rejected the file) or
// technical-failure (the scanner itself broke), and a distinguished
// virus-scan error is returned so the failure alerts. It always returns
// a non-nil error on the happy path by design: a letter failing its
// virus scan is never a silent success.
func (o *Orchestrator) ProcessScanFailure(ctx context.Context, msg types.ScanFailureMessage) error {
	o.metrics.RecordOutcome(ctx, "scan_failure", Failed)

	if err := o.store.CopyScanToError(ctx, msg.Filename); err != nil {
		return err
	}
	if err := o.store.DeleteScanObject(ctx, msg.Filename); err != nil {
		return err
	}

	reference := letters.ReferenceFromFilename(msg.Filename)
	notification, err := o.repo.GetByReference(ctx, reference)
	if err != nil {
		return err
	}

	status := types.StatusVirusScanFailed
	code := types.ErrCodeVirusScanFailed
	if msg.Kind == types.ScanFailureError {
		status = types.StatusTechnicalFailure
		code = types.ErrCodeVirusScanError
	}

	count, err := o.repo.UpdateByReference(ctx, reference, types.NotificationUpdate{
		Status:        status,
		BillableUnits: 0,
	})
	if err != nil {
		return err
	}
	// Exactly one letter notification owns each reference. Anything else
	// is referential corruption and must surface hard.
	if count != 1 {
		return types.NewAppErrorWithDetails(types.ErrCodeReferenceAmbiguous,
			fmt.Sprintf("scan failure for reference %s updated %d notifications", reference, count),
			nil, map[string]any{"updated": count})
	}

	scanErr := types.NewAppError(code,
		fmt.Sprintf("notification %s virus scan %s: %s", notification.ID, msg.Kind, msg.Filename), nil)
	o.logger.Error("virus scan failure",
		"notification_id", notification.ID,
		"filename", msg.Filename,
		"kind", string(msg.Kind),
		"status", string(status),
	)
	return scanErr
}
