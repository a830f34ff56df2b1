package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postroom/internal/types"
)

func TestProcessScanFailure_RejectedFile(t *testing.T) {
	n := testNotification("n1", "REF1")
	repo := newFakeRepo(n)
	store := newFakeStore(scanFilename)
	f := newFixture(repo, store)

	err := f.orch.ProcessScanFailure(context.Background(),
		types.ScanFailureMessage{Filename: scanFilename, Kind: types.ScanFailureRejected})

	// The move completed and the status landed, and the distinguished
	// error still surfaces so the failure alerts.
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeVirusScanFailed, appErr.Code)

	assert.Equal(t, []string{scanFilename}, store.errorCopies)
	assert.Equal(t, []string{scanFilename}, store.deletedScans)

	require.Len(t, repo.refUpdates, 1)
	assert.Equal(t, types.StatusVirusScanFailed, repo.refUpdates[0].update.Status)
	assert.Equal(t, 0, repo.refUpdates[0].update.BillableUnits)
}

func TestProcessScanFailure_ScannerError(t *testing.T) {
	n := testNotification("n1", "REF1")
	repo := newFakeRepo(n)
	store := newFakeStore(scanFilename)
	f := newFixture(repo, store)

	err := f.orch.ProcessScanFailure(context.Background(),
		types.ScanFailureMessage{Filename: scanFilename, Kind: types.ScanFailureError})

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeVirusScanError, appErr.Code)

	require.Len(t, repo.refUpdates, 1)
	assert.Equal(t, types.StatusTechnicalFailure, repo.refUpdates[0].update.Status)
}

func TestProcessScanFailure_CopyFailureStopsBeforeDelete(t *testing.T) {
	n := testNotification("n1", "REF1")
	repo := newFakeRepo(n)
	store := newFakeStore(scanFilename)
	store.copyErr = errors.New("bucket unavailable")
	f := newFixture(repo, store)

	err := f.orch.ProcessScanFailure(context.Background(),
		types.ScanFailureMessage{Filename: scanFilename, Kind: types.ScanFailureRejected})

	require.Error(t, err)
	// The original must survive a failed copy.
	assert.Empty(t, store.deletedScans)
	assert.Empty(t, repo.refUpdates)
}

func TestProcessScanFailure_AmbiguousUpdate(t *testing.T) {
	n := testNotification("n1", "REF1")
	repo := newFakeRepo(n)
	repo.updateByRefN = 0
	store := newFakeStore(scanFilename)
	f := newFixture(repo, store)

	err := f.orch.ProcessScanFailure(context.Background(),
		types.ScanFailureMessage{Filename: scanFilename, Kind: types.ScanFailureRejected})

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeReferenceAmbiguous, appErr.Code)
}
