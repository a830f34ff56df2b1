package pipeline

import (
	"context"

	"postroom/internal/letters"
	"postroom/internal/types"
)

// RequestRender is the task boundary for render dispatch. Any failure is
// retried up to the policy bound; exhaustion escalates to
// technical-failure and raises the distinguished retry-exhaustion error.
func (o *Orchestrator) RequestRender(ctx context.Context, msg types.RenderRequestMessage) error {
	err := o.dispatchRenderJob(ctx, msg.NotificationID)
	if err == nil {
		o.metrics.RecordOutcome(ctx, "render_request", Applied)
		return nil
	}

	o.metrics.RecordOutcome(ctx, "render_request", Failed)
	return o.retryOrEscalate(ctx, "render request", msg.NotificationID, err, msg.RetryCount,
		func() error { return o.tasks.RetryRenderRequest(ctx, msg, o.retry.Delay) })
}

// dispatchRenderJob loads the notification, assembles the sealed render
// payload and hands it to the external renderer/sanitiser queue. The
// destination filename is derived here so the renderer writes the PDF
// straight into scan-intake under its canonical key.
func (o *Orchestrator) dispatchRenderJob(ctx context.Context, notificationID string) error {
	notification, err := o.repo.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}

	// Test letters skip print-day folders: they never join a print run.
	letterFilename := letters.PDFFilename(
		notification.Reference,
		notification.Crown,
		notification.CreatedAt,
		notification.IsTestKey(),
		notification.Postage,
	)

	payload := types.RenderJobPayload{
		LetterContactBlock: notification.ReplyToText,
		Template: types.RenderJobTemplate{
			Subject:      notification.TemplateSubject,
			Content:      notification.TemplateContent,
			TemplateType: notification.TemplateType,
		},
		Values:         notification.Personalisation,
		LogoFilename:   notification.LetterBrandingFilename,
		LetterFilename: letterFilename,
		NotificationID: notification.ID,
		KeyType:        notification.KeyType,
	}

	sealed, err := o.codec.Seal(payload)
	if err != nil {
		return err
	}

	if err := o.tasks.SendRenderJob(ctx, sealed); err != nil {
		return err
	}

	o.logger.Info("render job dispatched",
		"notification_id", notification.ID,
		"reference", notification.Reference,
		"letter_filename", letterFilename,
	)
	return nil
}
