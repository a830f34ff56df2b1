package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"postroom/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// notifMockRows implements pgx.Rows over the notification select list
// (the notificationColumns join projection).
type notifMockRows struct {
	data    []types.Notification
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func (r *notifMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *notifMockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	fillNotificationDest(dest, r.data[r.idx])
	return nil
}

func (r *notifMockRows) Close()                                       { r.closed = true }
func (r *notifMockRows) Err() error                                   { return r.errVal }
func (r *notifMockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *notifMockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *notifMockRows) RawValues() [][]byte                          { return nil }
func (r *notifMockRows) Values() ([]any, error)                       { return nil, nil }
func (r *notifMockRows) Conn() *pgx.Conn                              { return nil }

func fillNotificationDest(dest []any, n types.Notification) {
	*dest[0].(*string) = n.ID
	*dest[1].(*string) = n.Reference
	*dest[2].(*string) = n.ServiceID
	*dest[3].(*types.Status) = n.Status
	*dest[4].(*types.KeyType) = n.KeyType
	*dest[5].(*types.Postage) = n.Postage
	*dest[6].(*int) = n.BillableUnits
	*dest[7].(*bool) = n.International
	*dest[8].(*string) = n.To
	*dest[9].(*string) = n.TemplateSubject
	*dest[10].(*string) = n.TemplateContent
	*dest[11].(*string) = n.TemplateType
	*dest[12].(*map[string]string) = n.Personalisation
	*dest[13].(*string) = n.ReplyToText
	*dest[14].(*bool) = n.Crown
	*dest[15].(*bool) = n.AllowInternationalLetters
	*dest[16].(*string) = n.LetterBrandingFilename
	*dest[17].(*time.Time) = n.CreatedAt
	*dest[18].(**time.Time) = n.UpdatedAt
}

// printMockRows implements pgx.Rows over the letters-to-be-printed
// projection.
type printMockRows struct {
	data    []types.LetterForPrint
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func (r *printMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *printMockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx]
	*dest[0].(*string) = row.NotificationID
	*dest[1].(*string) = row.Reference
	*dest[2].(*string) = row.ServiceID
	*dest[3].(*types.Postage) = row.Postage
	*dest[4].(*bool) = row.Crown
	*dest[5].(*time.Time) = row.CreatedAt
	return nil
}

func (r *printMockRows) Close()                                       { r.closed = true }
func (r *printMockRows) Err() error                                   { return r.errVal }
func (r *printMockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *printMockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *printMockRows) RawValues() [][]byte                          { return nil }
func (r *printMockRows) Values() ([]any, error)                       { return nil, nil }
func (r *printMockRows) Conn() *pgx.Conn                              { return nil }

func sampleNotification(id, reference string) types.Notification {
	return types.Notification{
		ID:        id,
		Reference: reference,
		ServiceID: "svc_1",
		Status:    types.StatusPendingVirusCheck,
		KeyType:   types.KeyTypeNormal,
		Postage:   types.PostageSecond,
		Crown:     true,
		CreatedAt: time.Date(2021, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

// ============================================================
// GetByID Tests
// ============================================================

func TestLetterRepository_GetByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	want := sampleNotification("notif_1", "REF1")
	row := &mockRow{
		scanFn: func(dest ...any) error {
			fillNotificationDest(dest, want)
			return nil
		},
	}

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(row)

	got, err := repo.GetByID(ctx, "notif_1")
	require.NoError(t, err)
	assert.Equal(t, "notif_1", got.ID)
	assert.Equal(t, "REF1", got.Reference)
	assert.Equal(t, types.StatusPendingVirusCheck, got.Status)
	assert.True(t, got.Crown)
	db.AssertExpectations(t)
}

func TestLetterRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetByID(ctx, "notif_missing")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundNotification, appErr.Code)
	db.AssertExpectations(t)
}

func TestLetterRepository_GetByID_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection refused")})

	_, err := repo.GetByID(ctx, "notif_1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	db.AssertExpectations(t)
}

// ============================================================
// GetByReference Tests
// ============================================================

func TestLetterRepository_GetByReference_ExactlyOne(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	rows := &notifMockRows{
		data: []types.Notification{sampleNotification("notif_1", "REF1")},
		idx:  -1,
	}

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	got, err := repo.GetByReference(ctx, "REF1")
	require.NoError(t, err)
	assert.Equal(t, "notif_1", got.ID)
	db.AssertExpectations(t)
}

func TestLetterRepository_GetByReference_NoMatch(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	rows := &notifMockRows{data: nil, idx: -1}

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	_, err := repo.GetByReference(ctx, "REF_UNKNOWN")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeReferenceNotFound, appErr.Code)
	db.AssertExpectations(t)
}

func TestLetterRepository_GetByReference_MultipleMatches(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	rows := &notifMockRows{
		data: []types.Notification{
			sampleNotification("notif_1", "REF1"),
			sampleNotification("notif_2", "REF1"),
		},
		idx: -1,
	}

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	_, err := repo.GetByReference(ctx, "REF1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeReferenceAmbiguous, appErr.Code)
	assert.Equal(t, 2, appErr.Details["matches"])
	db.AssertExpectations(t)
}

func TestLetterRepository_GetByReference_QueryError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection reset"))

	_, err := repo.GetByReference(ctx, "REF1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	db.AssertExpectations(t)
}

// ============================================================
// UpdateStatus Tests
// ============================================================

func TestLetterRepository_UpdateStatus_AllowedTransition(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	statusRow := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*types.Status) = types.StatusPendingVirusCheck
			return nil
		},
	}

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(statusRow)
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			sql := args.Get(1).(string)
			// The write must re-check the pre-state.
			assert.Contains(t, sql, "AND status =")
		}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	changed, err := repo.UpdateStatus(ctx, "notif_1", types.StatusCreated)
	require.NoError(t, err)
	assert.True(t, changed)
	db.AssertExpectations(t)
}

func TestLetterRepository_UpdateStatus_ForbiddenTransitionIsNoOp(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	statusRow := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*types.Status) = types.StatusDelivered
			return nil
		},
	}

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(statusRow)

	changed, err := repo.UpdateStatus(ctx, "notif_1", types.StatusCreated)
	require.NoError(t, err)
	assert.False(t, changed)

	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
	db.AssertExpectations(t)
}

func TestLetterRepository_UpdateStatus_ConcurrentWriterWins(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	statusRow := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*types.Status) = types.StatusPendingVirusCheck
			return nil
		},
	}

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(statusRow)
	// The guarded UPDATE matches nothing because the pre-state moved
	// between the read and the write.
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	changed, err := repo.UpdateStatus(ctx, "notif_1", types.StatusCreated)
	require.NoError(t, err)
	assert.False(t, changed)
	db.AssertExpectations(t)
}

func TestLetterRepository_UpdateStatus_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.UpdateStatus(ctx, "notif_missing", types.StatusCreated)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundNotification, appErr.Code)
	db.AssertExpectations(t)
}

// ============================================================
// SetBillableUnits Tests
// ============================================================

func TestLetterRepository_SetBillableUnits_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			sqlArgs := args.Get(2).([]any)
			assert.Equal(t, "notif_1", sqlArgs[0])
			assert.Equal(t, 3, sqlArgs[1])
		}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.SetBillableUnits(ctx, "notif_1", 3)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestLetterRepository_SetBillableUnits_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("deadlock"))

	err := repo.SetBillableUnits(ctx, "notif_1", 3)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	db.AssertExpectations(t)
}

// ============================================================
// UpdateByReference Tests
// ============================================================

func TestLetterRepository_UpdateByReference_BaseFields(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			sql := args.Get(1).(string)
			assert.NotContains(t, sql, `"to" =`)
			assert.NotContains(t, sql, "postage =")
			assert.NotContains(t, sql, "international =")
		}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	count, err := repo.UpdateByReference(ctx, "REF1", types.NotificationUpdate{
		Status:        types.StatusCreated,
		BillableUnits: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	db.AssertExpectations(t)
}

func TestLetterRepository_UpdateByReference_OptionalFields(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	to := "A. Person\nSomewhere"
	postage := types.PostageEurope
	international := true

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			sql := args.Get(1).(string)
			assert.Contains(t, sql, `"to" =`)
			assert.Contains(t, sql, "postage =")
			assert.Contains(t, sql, "international =")

			sqlArgs := args.Get(2).([]any)
			assert.Contains(t, sqlArgs, to)
			assert.Contains(t, sqlArgs, postage)
			assert.Contains(t, sqlArgs, international)
		}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	count, err := repo.UpdateByReference(ctx, "REF1", types.NotificationUpdate{
		Status:        types.StatusCreated,
		BillableUnits: 2,
		To:            &to,
		Postage:       &postage,
		International: &international,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	db.AssertExpectations(t)
}

func TestLetterRepository_UpdateByReference_ReportsAffectedCount(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	count, err := repo.UpdateByReference(ctx, "REF_UNKNOWN", types.NotificationUpdate{
		Status: types.StatusValidationFailed,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	db.AssertExpectations(t)
}

func TestLetterRepository_UpdateByReference_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	_, err := repo.UpdateByReference(ctx, "REF1", types.NotificationUpdate{
		Status: types.StatusCreated,
	})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	db.AssertExpectations(t)
}

// ============================================================
// LettersToBePrinted Tests
// ============================================================

func TestLetterRepository_LettersToBePrinted_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	deadline := time.Date(2021, 3, 10, 17, 30, 0, 0, time.UTC)
	created := deadline.Add(-2 * time.Hour)

	rows := &printMockRows{
		data: []types.LetterForPrint{
			{NotificationID: "notif_1", Reference: "REF1", ServiceID: "svc_1",
				Postage: types.PostageSecond, Crown: true, CreatedAt: created},
			{NotificationID: "notif_2", Reference: "REF2", ServiceID: "svc_2",
				Postage: types.PostageSecond, Crown: false, CreatedAt: created.Add(time.Minute)},
		},
		idx: -1,
	}

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			sql := args.Get(1).(string)
			assert.Contains(t, sql, "ORDER BY n.service_id, n.created_at")

			sqlArgs := args.Get(2).([]any)
			assert.Equal(t, types.StatusCreated, sqlArgs[0])
			assert.Equal(t, types.KeyTypeTest, sqlArgs[1])
			assert.Equal(t, types.PostageSecond, sqlArgs[2])
			assert.Equal(t, deadline, sqlArgs[3])
		}).
		Return(rows, nil)

	letters, err := repo.LettersToBePrinted(ctx, deadline, types.PostageSecond)
	require.NoError(t, err)
	require.Len(t, letters, 2)
	assert.Equal(t, "REF1", letters[0].Reference)
	assert.Equal(t, "svc_2", letters[1].ServiceID)
	db.AssertExpectations(t)
}

func TestLetterRepository_LettersToBePrinted_Empty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	rows := &printMockRows{data: nil, idx: -1}

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	letters, err := repo.LettersToBePrinted(ctx, time.Now(), types.PostageFirst)
	require.NoError(t, err)
	assert.Empty(t, letters)
	db.AssertExpectations(t)
}

func TestLetterRepository_LettersToBePrinted_ScanError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	rows := &printMockRows{
		data:    []types.LetterForPrint{{NotificationID: "notif_1"}},
		idx:     -1,
		scanErr: errors.New("type mismatch"),
	}

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	_, err := repo.LettersToBePrinted(ctx, time.Now(), types.PostageFirst)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	db.AssertExpectations(t)
}

func TestLetterRepository_LettersToBePrinted_QueryError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLetterRepository(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := repo.LettersToBePrinted(ctx, time.Now(), types.PostageFirst)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	db.AssertExpectations(t)
}
