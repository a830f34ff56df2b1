// Package pipeline drives a letter's PDF through its lifecycle: render
// dispatch, virus-scan and sanitisation callbacks, permanent archival,
// and operator replay of errored files.
//
// Every operation is an independently retried unit of work with no
// shared in-memory state. Coordination happens through two sources of
// truth only: the notification store (status) and the object storage
// gateway (PDF location). Steps that mutate both follow a two-phase
// protocol: commit the logical state first, then perform the physical
// move. A failure between the phases leaves the task safely re-runnable
// or, at worst, a duplicate object to reconcile, never a lost letter.
package pipeline

import (
	"context"
	"time"

	"postroom/internal/storage"
	"postroom/internal/types"
)

// NotificationStore is the subset of the letter repository the
// orchestrator needs. The store owns the records; the orchestrator only
// reads and issues update commands.
type NotificationStore interface {
	GetByID(ctx context.Context, id string) (*types.Notification, error)
	GetByReference(ctx context.Context, reference string) (*types.Notification, error)
	UpdateStatus(ctx context.Context, id string, status types.Status) (bool, error)
	SetBillableUnits(ctx context.Context, id string, units int) error
	UpdateByReference(ctx context.Context, reference string, update types.NotificationUpdate) (int64, error)
}

// ObjectStore is the letter-location surface of the storage gateway.
type ObjectStore interface {
	ScanObjectSize(ctx context.Context, filename string) (int64, error)
	CopyScanToInvalid(ctx context.Context, filename string, meta storage.InvalidLetterMeta) error
	DeleteScanObject(ctx context.Context, filename string) error
	MoveSanitisedToArchive(ctx context.Context, filename string, isTest bool, destKey string) error
	CopyScanToError(ctx context.Context, filename string) error
	MoveErrorToScan(ctx context.Context, filename string) error
	ListErrorFiles(ctx context.Context) ([]string, error)
}

// TaskDispatcher is the queue surface the orchestrator produces to.
type TaskDispatcher interface {
	SendRenderJob(ctx context.Context, sealed string) error
	SendSanitiseJob(ctx context.Context, msg types.SanitiseJobMessage) error
	SendScanFile(ctx context.Context, msg types.ScanFileMessage) error
	SendScanPassed(ctx context.Context, msg types.ScanPassedMessage) error
	RetryRenderRequest(ctx context.Context, msg types.RenderRequestMessage, delay time.Duration) error
	RetryBillableUnits(ctx context.Context, msg types.BillableUnitsMessage, delay time.Duration) error
	RetryScanPassed(ctx context.Context, msg types.ScanPassedMessage, delay time.Duration) error
	RetrySanitisedResult(ctx context.Context, msg types.SanitisedResultMessage, delay time.Duration) error
}

// PayloadCodec seals and opens the payloads exchanged with the external
// renderer and sanitiser.
type PayloadCodec interface {
	Seal(v any) (string, error)
	Open(data string, v any) error
}

// Orchestrator coordinates the notification store, object storage and
// task queues for every letter lifecycle operation.
type Orchestrator struct {
	repo    NotificationStore
	store   ObjectStore
	tasks   TaskDispatcher
	codec   PayloadCodec
	retry   RetryPolicy
	logger  types.Logger
	metrics OutcomeRecorder

	// antivirusEnabled mirrors the environment: when the scanner is
	// disabled, replayed files go straight to the sanitise step.
	antivirusEnabled bool
}

// Config carries the orchestrator's constructor arguments.
type Config struct {
	Repo             NotificationStore
	Store            ObjectStore
	Tasks            TaskDispatcher
	Codec            PayloadCodec
	Retry            RetryPolicy
	Logger           types.Logger
	Metrics          OutcomeRecorder
	AntivirusEnabled bool
}

// New creates an Orchestrator. A nil Metrics recorder is replaced with a
// no-op so call sites never need to guard.
func New(cfg Config) *Orchestrator {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NopOutcomeRecorder{}
	}
	return &Orchestrator{
		repo:             cfg.Repo,
		store:            cfg.Store,
		tasks:            cfg.Tasks,
		codec:            cfg.Codec,
		retry:            cfg.Retry,
		logger:           cfg.Logger,
		metrics:          metrics,
		antivirusEnabled: cfg.AntivirusEnabled,
	}
}
