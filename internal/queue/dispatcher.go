package queue

import (
	"context"
	"time"

	"postroom/internal/types"
)

// URLs names the queues the dispatcher produces to. LetterTasks and
// ScanEvents are consumed by this repository's own workers; RenderJobs,
// SanitiseJobs and Antivirus belong to the external services; ZipJobs
// feeds the zip worker.
type URLs struct {
	LetterTasks  string
	ScanEvents   string
	RenderJobs   string
	SanitiseJobs string
	Antivirus    string
	ZipJobs      string
}

// Dispatcher sends typed letter-pipeline messages to their queues. The
// Retry* methods increment the message's RetryCount before serializing,
// so the next consumer sees an accurate attempt number. The escalation
// bound depends on that increment happening before the send.
type Dispatcher struct {
	pub  *Publisher
	urls URLs
}

// NewDispatcher creates a Dispatcher over the publisher and queue URLs.
func NewDispatcher(pub *Publisher, urls URLs) *Dispatcher {
	return &Dispatcher{pub: pub, urls: urls}
}

// SendRenderRequest enqueues a fresh render-dispatch task.
func (d *Dispatcher) SendRenderRequest(ctx context.Context, msg types.RenderRequestMessage) error {
	return d.pub.Publish(ctx, d.urls.LetterTasks, TaskRenderRequest, msg, 0)
}

// RetryRenderRequest re-enqueues a render-dispatch task after a
// transient failure.
func (d *Dispatcher) RetryRenderRequest(ctx context.Context, msg types.RenderRequestMessage, delay time.Duration) error {
	msg.RetryCount++
	return d.pub.Publish(ctx, d.urls.LetterTasks, TaskRenderRequest, msg, delay)
}

// RetryBillableUnits re-enqueues a billable-units task.
func (d *Dispatcher) RetryBillableUnits(ctx context.Context, msg types.BillableUnitsMessage, delay time.Duration) error {
	msg.RetryCount++
	return d.pub.Publish(ctx, d.urls.LetterTasks, TaskBillableUnits, msg, delay)
}

// RetryScanPassed re-enqueues a scan-passed trigger.
func (d *Dispatcher) RetryScanPassed(ctx context.Context, msg types.ScanPassedMessage, delay time.Duration) error {
	msg.RetryCount++
	return d.pub.Publish(ctx, d.urls.ScanEvents, TaskScanPassed, msg, delay)
}

// RetrySanitisedResult re-enqueues a sealed sanitiser verdict.
func (d *Dispatcher) RetrySanitisedResult(ctx context.Context, msg types.SanitisedResultMessage, delay time.Duration) error {
	msg.RetryCount++
	return d.pub.Publish(ctx, d.urls.ScanEvents, TaskSanitisedResult, msg, delay)
}

// SendScanPassed enqueues a scan-passed trigger. Used by the replay path
// when the scanner is stubbed out and files go straight to sanitisation.
func (d *Dispatcher) SendScanPassed(ctx context.Context, msg types.ScanPassedMessage) error {
	return d.pub.Publish(ctx, d.urls.ScanEvents, TaskScanPassed, msg, 0)
}

// SendRenderJob hands a sealed render payload to the external renderer.
func (d *Dispatcher) SendRenderJob(ctx context.Context, sealed string) error {
	return d.pub.Publish(ctx, d.urls.RenderJobs, TaskCreateRenderJob,
		map[string]string{"data": sealed}, 0)
}

// SendSanitiseJob hands a clean letter to the external sanitiser.
func (d *Dispatcher) SendSanitiseJob(ctx context.Context, msg types.SanitiseJobMessage) error {
	return d.pub.Publish(ctx, d.urls.SanitiseJobs, TaskSanitiseJob, msg, 0)
}

// SendScanFile asks the external antivirus service to scan a file in
// scan-intake.
func (d *Dispatcher) SendScanFile(ctx context.Context, msg types.ScanFileMessage) error {
	return d.pub.Publish(ctx, d.urls.Antivirus, TaskScanFile, msg, 0)
}

// SendZipBatch emits one print batch manifest to the zip worker.
func (d *Dispatcher) SendZipBatch(ctx context.Context, msg types.ZipBatchMessage) error {
	return d.pub.Publish(ctx, d.urls.ZipJobs, TaskZipAndSend, msg, 0)
}
