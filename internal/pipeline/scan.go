package pipeline

import (
	"context"
	"fmt"

	"postroom/internal/letters"
	"postroom/internal/storage"
	"postroom/internal/types"
)

// ProcessScanPassed is the task boundary for the scanner's pass
// callback: the file in scan-intake is clean, so the letter moves on to
// external sanitisation.
func (o *Orchestrator) ProcessScanPassed(ctx context.Context, msg types.ScanPassedMessage) error {
	result, err := o.processScanPassed(ctx, msg.Filename)
	o.metrics.RecordOutcome(ctx, "scan_passed", result)
	if err == nil {
		return nil
	}
	if isFatal(err) {
		return err
	}
	return o.retryOrEscalate(ctx, "scan passed", letters.ReferenceFromFilename(msg.Filename), err, msg.RetryCount,
		func() error { return o.tasks.RetryScanPassed(ctx, msg, o.retry.Delay) })
}

func (o *Orchestrator) processScanPassed(ctx context.Context, filename string) (ApplyResult, error) {
	reference := letters.ReferenceFromFilename(filename)
	notification, err := o.repo.GetByReference(ctx, reference)
	if err != nil {
		return Failed, err
	}

	logger := o.logger.With(
		"notification_id", notification.ID,
		"reference", reference,
		"filename", filename,
	)
	logger.Info("virus scan passed")

	if notification.Status != types.StatusPendingVirusCheck {
		logger.Info("scan-passed callback for notification not awaiting scan",
			"status", string(notification.Status))
		return SkippedAlreadyProcessed, nil
	}

	err = o.tasks.SendSanitiseJob(ctx, types.SanitiseJobMessage{
		NotificationID:            notification.ID,
		Filename:                  filename,
		AllowInternationalLetters: notification.AllowInternationalLetters,
	})
	if err != nil {
		return Failed, err
	}
	return Applied, nil
}

// ProcessSanitisedLetter is the task boundary for the sealed sanitiser
// verdict. Storage-layer failures inside are fatal rather than retried:
// they mean a file is not where it must be, and re-running the move
// cannot put it back.
func (o *Orchestrator) ProcessSanitisedLetter(ctx context.Context, msg types.SanitisedResultMessage) error {
	var outcome types.SanitiseOutcome
	if err := o.codec.Open(msg.Data, &outcome); err != nil {
		o.logger.Error("sanitised letter payload cannot be opened", "error", err.Error())
		return err
	}

	result, err := o.processSanitisedLetter(ctx, outcome)
	o.metrics.RecordOutcome(ctx, "sanitised_letter", result)
	if err == nil {
		return nil
	}

	if isFatal(err) {
		// The files are already in the wrong place; a retry cannot help.
		// Force technical-failure so the stuck letter is visible in the
		// store, not only in logs.
		o.logger.Error("fatal error processing sanitised letter",
			"notification_id", outcome.NotificationID,
			"filename", outcome.Filename,
			"error", err.Error(),
		)
		o.failTechnically(ctx, outcome.NotificationID)
		return err
	}

	return o.retryOrEscalate(ctx, "sanitised letter", outcome.NotificationID, err, msg.RetryCount,
		func() error { return o.tasks.RetrySanitisedResult(ctx, msg, o.retry.Delay) })
}

func (o *Orchestrator) processSanitisedLetter(ctx context.Context, outcome types.SanitiseOutcome) (ApplyResult, error) {
	notification, err := o.repo.GetByID(ctx, outcome.NotificationID)
	if err != nil {
		return Failed, err
	}

	logger := o.logger.With(
		"notification_id", notification.ID,
		"reference", notification.Reference,
		"filename", outcome.Filename,
	)

	if notification.Status != types.StatusPendingVirusCheck {
		logger.Info("sanitised-letter callback for notification not awaiting scan",
			"status", string(notification.Status))
		return SkippedAlreadyProcessed, nil
	}

	// Confirm the original is still in scan-intake before mutating
	// anything. Absence here is a storage inconsistency, not a retry
	// candidate.
	if _, err := o.store.ScanObjectSize(ctx, outcome.Filename); err != nil {
		return Failed, err
	}

	if outcome.ValidationStatus == types.ValidationFailed {
		logger.Info("sanitiser rejected letter", "message", outcome.Message)
		if err := o.moveInvalidLetter(ctx, notification, outcome); err != nil {
			return Failed, err
		}
		return Applied, nil
	}

	logger.Info("sanitiser passed letter", "page_count", outcome.PageCount)
	if err := o.archiveValidLetter(ctx, notification, outcome); err != nil {
		return Failed, err
	}
	return Applied, nil
}

// moveInvalidLetter handles the validation-failed branch: the PDF goes to
// the invalid archive tagged for operator review, the scan-intake
// original is deleted only after that copy succeeded, and the
// notification lands in validation-failed with zero billable units.
func (o *Orchestrator) moveInvalidLetter(ctx context.Context, notification *types.Notification, outcome types.SanitiseOutcome) error {
	meta := storage.InvalidLetterMeta{
		Message:      outcome.Message,
		InvalidPages: outcome.InvalidPages,
		PageCount:    outcome.PageCount,
	}
	if err := o.store.CopyScanToInvalid(ctx, outcome.Filename, meta); err != nil {
		return err
	}
	if err := o.store.DeleteScanObject(ctx, outcome.Filename); err != nil {
		return err
	}

	update := types.NotificationUpdate{
		Status:        types.StatusValidationFailed,
		BillableUnits: 0,
	}
	if _, err := o.repo.UpdateByReference(ctx, notification.Reference, update); err != nil {
		return err
	}
	return nil
}

// archiveValidLetter handles the success branch as a two-phase protocol.
//
// Phase 1 commits the logical state: status (delivered for test keys,
// created otherwise), billable units, the decoded address and any
// international postage re-derivation. This happens before any file
// moves so that a store failure leaves the PDF untouched in scan-intake
// and the whole task safely retryable.
//
// Phase 2 performs the physical move: the canonical destination key is
// recomputed (the original key may be wrong if sanitisation discovered
// international postage), the sanitised PDF is copied into its permanent
// archive, and only then are the working copies deleted.
func (o *Orchestrator) archiveValidLetter(ctx context.Context, notification *types.Notification, outcome types.SanitiseOutcome) error {
	isTest := notification.IsTestKey()

	status := types.StatusCreated
	if isTest {
		status = types.StatusDelivered
	}

	update := types.NotificationUpdate{
		Status:        status,
		BillableUnits: letters.BillableUnitsForPageCount(outcome.PageCount),
	}
	postage := notification.Postage
	if outcome.Address != "" {
		addr := outcome.Address
		update.To = &addr
		// Only an international re-derivation is persisted; a domestic
		// result means the declared postage stands.
		if derived, ok := letters.InternationalPostageForAddress(outcome.Address); ok {
			international := true
			update.Postage = &derived
			update.International = &international
			postage = derived
		}
	}

	count, err := o.repo.UpdateByReference(ctx, notification.Reference, update)
	if err != nil {
		return err
	}
	if count != 1 {
		return types.NewAppError(types.ErrCodeReferenceAmbiguous,
			fmt.Sprintf("status update for reference %s affected %d notifications", notification.Reference, count), nil)
	}

	// Live letters file under their print-day folder, which is how the
	// collation run finds them again. Test letters sit at the bucket
	// root: they never join a print run.
	destKey := letters.PDFFilename(
		notification.Reference,
		notification.Crown,
		notification.CreatedAt,
		isTest,
		postage,
	)

	if err := o.store.MoveSanitisedToArchive(ctx, outcome.Filename, isTest, destKey); err != nil {
		return err
	}
	// The sanitised copy has moved; the scan-intake original goes last.
	if err := o.store.DeleteScanObject(ctx, outcome.Filename); err != nil {
		return err
	}

	o.logger.Info("letter archived",
		"notification_id", notification.ID,
		"reference", notification.Reference,
		"dest_key", destKey,
		"test_key", isTest,
	)
	return nil
}
