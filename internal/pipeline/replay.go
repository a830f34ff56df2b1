package pipeline

import (
	"context"

	"postroom/internal/types"
)

// ReplayErroredFiles is the operator-triggered recovery path for letters
// stranded in the error archive, typically after a scanner outage. With
// a filename it replays that one file; with an empty filename it replays
// everything currently in the archive.
//
// Each file moves back into scan-intake and is re-submitted to the
// scanner, or handed straight to the sanitise trigger when the scanner
// is disabled in this environment. A failure on one file is logged and
// does not stop the rest of the sweep; the first failure is returned
// once the sweep completes so the operator knows it was partial.
func (o *Orchestrator) ReplayErroredFiles(ctx context.Context, filename string) error {
	if filename != "" {
		return o.replayOne(ctx, filename)
	}

	files, err := o.store.ListErrorFiles(ctx)
	if err != nil {
		return err
	}
	o.logger.Info("replaying errored letter files", "count", len(files))

	var firstErr error
	for _, f := range files {
		if err := o.replayOne(ctx, f); err != nil {
			o.logger.Error("failed to replay errored file",
				"filename", f,
				"error", err.Error(),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (o *Orchestrator) replayOne(ctx context.Context, filename string) error {
	if err := o.store.MoveErrorToScan(ctx, filename); err != nil {
		return err
	}

	o.logger.Info("submitting replayed file for scanning",
		"filename", filename,
		"antivirus_enabled", o.antivirusEnabled,
	)

	if o.antivirusEnabled {
		return o.tasks.SendScanFile(ctx, types.ScanFileMessage{Filename: filename})
	}
	// Scanner stubbed out in this environment: go straight to sanitise.
	return o.tasks.SendScanPassed(ctx, types.ScanPassedMessage{Filename: filename})
}
