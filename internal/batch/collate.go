package batch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"postroom/internal/letters"
	"postroom/internal/types"
)

// LetterSource is the notification-store surface the collator reads.
type LetterSource interface {
	LettersToBePrinted(ctx context.Context, deadline time.Time, postage types.Postage) ([]types.LetterForPrint, error)
}

// ArchiveReader resolves a letter's archived PDF size.
type ArchiveReader interface {
	FinalArchiveSize(ctx context.Context, key string) (int64, error)
}

// ZipDispatcher emits completed manifests to the zip worker.
type ZipDispatcher interface {
	SendZipBatch(ctx context.Context, msg types.ZipBatchMessage) error
}

// Collator runs one scheduled collation window. It is not safe to run
// two collations for the same postage class concurrently: sequence
// numbers in archive names would collide. The schedule guarantees a
// single invocation per window; the collator does not enforce it.
type Collator struct {
	repo    LetterSource
	store   ArchiveReader
	tasks   ZipDispatcher
	limits  Limits
	clock   types.Clock
	logger  types.Logger
	breaker *gobreaker.CircuitBreaker[int64]

	// deadlineOfDay is the local wall-clock print deadline, e.g. 17h30m.
	deadlineOfDay time.Duration
}

// NewCollator creates a Collator. The head-call circuit breaker trips
// after consecutive storage failures so a bucket outage fails the
// remaining lookups fast; every letter skipped that way is simply picked
// up by the next run.
func NewCollator(
	repo LetterSource,
	store ArchiveReader,
	tasks ZipDispatcher,
	limits Limits,
	deadlineOfDay time.Duration,
	clock types.Clock,
	logger types.Logger,
) *Collator {
	breaker := gobreaker.NewCircuitBreaker[int64](gobreaker.Settings{
		Name:     "letter-archive-head",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Collator{
		repo:          repo,
		store:         store,
		tasks:         tasks,
		limits:        limits,
		clock:         clock,
		logger:        logger,
		breaker:       breaker,
		deadlineOfDay: deadlineOfDay,
	}
}

// PrintRunDeadline computes the cutoff instant for the current run: the
// local deadline time today, or yesterday's when the run executes before
// today's deadline has passed. A collation scheduled for 17:50 therefore
// collects the window that closed at 17:30 the same day, and a late
// run after midnight still collects the prior business day's window.
func (c *Collator) PrintRunDeadline() time.Time {
	now := c.clock.Now().In(letters.PrintLocation())

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if now.Sub(dayStart) < c.deadlineOfDay {
		dayStart = dayStart.AddDate(0, 0, -1)
	}
	return dayStart.Add(c.deadlineOfDay)
}

// Run executes one collation for every postage class.
func (c *Collator) Run(ctx context.Context) error {
	c.logger.Info("starting letter collation run")
	var firstErr error
	for _, postage := range types.PostageClasses {
		if err := c.RunPostage(ctx, postage); err != nil {
			c.logger.Error("collation failed for postage class",
				"postage", string(postage),
				"error", err.Error(),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.logger.Info("finished letter collation run")
	return firstErr
}

// RunPostage collates one postage class: select, resolve, group, emit.
func (c *Collator) RunPostage(ctx context.Context, postage types.Postage) error {
	deadline := c.PrintRunDeadline()
	logger := c.logger.With("postage", string(postage), "deadline", deadline.Format(time.RFC3339))
	logger.Info("starting collation for postage class")

	candidates, err := c.repo.LettersToBePrinted(ctx, deadline, postage)
	if err != nil {
		return err
	}

	pdfs := c.resolve(ctx, candidates, logger)
	groups := GroupLetters(pdfs, c.limits)

	for i, group := range groups {
		name := ArchiveFilename(deadline, postage, i+1, group)

		keys := make([]string, len(group))
		var totalSize int64
		for j, pdf := range group {
			keys[j] = pdf.Key
			totalSize += pdf.Size
		}

		logger.Info("emitting print batch",
			"archive", name,
			"letters", len(keys),
			"total_size", totalSize,
		)

		msg := types.ZipBatchMessage{
			FilenamesToZip: keys,
			UploadFilename: name,
			ServiceID:      group[0].ServiceID,
			Postage:        postage,
			TotalSize:      totalSize,
			TraceID:        uuid.NewString(),
		}
		// One failed emission must not block the batches behind it.
		if err := c.tasks.SendZipBatch(ctx, msg); err != nil {
			logger.Error("failed to emit print batch",
				"archive", name,
				"error", err.Error(),
			)
		}
	}

	logger.Info("finished collation for postage class", "batches", len(groups))
	return nil
}

// resolve turns print candidates into sized PDF entries. Each letter's
// canonical key is recomputed from its immutable inputs and its size
// fetched with a Head call. A lookup failure skips that letter; it stays
// in created status and the next run picks it up.
func (c *Collator) resolve(ctx context.Context, candidates []types.LetterForPrint, logger types.Logger) []types.LetterPDF {
	pdfs := make([]types.LetterPDF, 0, len(candidates))
	for _, letter := range candidates {
		key := letters.PDFFilename(letter.Reference, letter.Crown, letter.CreatedAt, false, letter.Postage)

		size, err := c.breaker.Execute(func() (int64, error) {
			return c.store.FinalArchiveSize(ctx, key)
		})
		if err != nil {
			logger.Error("cannot resolve letter for print run, skipping",
				"notification_id", letter.NotificationID,
				"reference", letter.Reference,
				"key", key,
				"error", err.Error(),
			)
			continue
		}

		pdfs = append(pdfs, types.LetterPDF{
			Key:       key,
			Size:      size,
			ServiceID: letter.ServiceID,
		})
	}
	return pdfs
}
