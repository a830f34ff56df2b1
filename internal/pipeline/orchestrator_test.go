package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"postroom/internal/storage"
	"postroom/internal/types"
)

// Shared test doubles for the pipeline package. Fakes record their calls
// and take function fields for failure injection; the default behavior
// of every method is success.

type nopLogger struct{}

func (nopLogger) Info(string, ...any)      {}
func (nopLogger) Error(string, ...any)     {}
func (nopLogger) Warn(string, ...any)      {}
func (nopLogger) With(...any) types.Logger { return nopLogger{} }

// --- NotificationStore fake ---

type fakeRepo struct {
	byID  map[string]*types.Notification
	byRef map[string][]*types.Notification

	getErr       error
	updateErr    error
	updateByRefN int64 // rows affected override, defaults to 1

	statusUpdates []statusUpdate
	unitUpdates   []unitUpdate
	refUpdates    []refUpdate
}

type statusUpdate struct {
	id     string
	status types.Status
}

type unitUpdate struct {
	id    string
	units int
}

type refUpdate struct {
	reference string
	update    types.NotificationUpdate
}

func newFakeRepo(notifications ...*types.Notification) *fakeRepo {
	r := &fakeRepo{
		byID:         map[string]*types.Notification{},
		byRef:        map[string][]*types.Notification{},
		updateByRefN: 1,
	}
	for _, n := range notifications {
		r.byID[n.ID] = n
		r.byRef[n.Reference] = append(r.byRef[n.Reference], n)
	}
	return r
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*types.Notification, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	n, ok := r.byID[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundNotification, "no such notification", nil)
	}
	return n, nil
}

func (r *fakeRepo) GetByReference(_ context.Context, reference string) (*types.Notification, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	matches := r.byRef[reference]
	switch len(matches) {
	case 0:
		return nil, types.NewAppError(types.ErrCodeReferenceNotFound, "no matching notification", nil)
	case 1:
		return matches[0], nil
	default:
		return nil, types.NewAppError(types.ErrCodeReferenceAmbiguous, "multiple notifications", nil)
	}
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id string, status types.Status) (bool, error) {
	if r.updateErr != nil {
		return false, r.updateErr
	}
	r.statusUpdates = append(r.statusUpdates, statusUpdate{id: id, status: status})
	return true, nil
}

func (r *fakeRepo) SetBillableUnits(_ context.Context, id string, units int) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.unitUpdates = append(r.unitUpdates, unitUpdate{id: id, units: units})
	return nil
}

func (r *fakeRepo) UpdateByReference(_ context.Context, reference string, update types.NotificationUpdate) (int64, error) {
	if r.updateErr != nil {
		return 0, r.updateErr
	}
	r.refUpdates = append(r.refUpdates, refUpdate{reference: reference, update: update})
	return r.updateByRefN, nil
}

// --- ObjectStore fake ---

type fakeStore struct {
	scanSizes map[string]int64
	errorList []string

	headErr   error
	copyErr   error
	deleteErr error
	moveErr   error
	listErr   error

	invalidCopies  []invalidCopy
	deletedScans   []string
	archiveMoves   []archiveMove
	errorCopies    []string
	errorToScan    []string
}

type invalidCopy struct {
	filename string
	meta     storage.InvalidLetterMeta
}

type archiveMove struct {
	filename string
	isTest   bool
	destKey  string
}

func newFakeStore(scanFiles ...string) *fakeStore {
	s := &fakeStore{scanSizes: map[string]int64{}}
	for _, f := range scanFiles {
		s.scanSizes[f] = 1024
	}
	return s
}

func (s *fakeStore) ScanObjectSize(_ context.Context, filename string) (int64, error) {
	if s.headErr != nil {
		return 0, s.headErr
	}
	size, ok := s.scanSizes[filename]
	if !ok {
		return 0, types.NewAppError(types.ErrCodeNotFoundObject, "no such object", nil)
	}
	return size, nil
}

func (s *fakeStore) CopyScanToInvalid(_ context.Context, filename string, meta storage.InvalidLetterMeta) error {
	if s.copyErr != nil {
		return s.copyErr
	}
	s.invalidCopies = append(s.invalidCopies, invalidCopy{filename: filename, meta: meta})
	return nil
}

func (s *fakeStore) DeleteScanObject(_ context.Context, filename string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletedScans = append(s.deletedScans, filename)
	return nil
}

func (s *fakeStore) MoveSanitisedToArchive(_ context.Context, filename string, isTest bool, destKey string) error {
	if s.moveErr != nil {
		return s.moveErr
	}
	s.archiveMoves = append(s.archiveMoves, archiveMove{filename: filename, isTest: isTest, destKey: destKey})
	return nil
}

func (s *fakeStore) CopyScanToError(_ context.Context, filename string) error {
	if s.copyErr != nil {
		return s.copyErr
	}
	s.errorCopies = append(s.errorCopies, filename)
	return nil
}

func (s *fakeStore) MoveErrorToScan(_ context.Context, filename string) error {
	if s.moveErr != nil {
		return s.moveErr
	}
	s.errorToScan = append(s.errorToScan, filename)
	return nil
}

func (s *fakeStore) ListErrorFiles(_ context.Context) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.errorList, nil
}

// --- TaskDispatcher fake ---

type retriedRender struct {
	msg   types.RenderRequestMessage
	delay time.Duration
}

type fakeTasks struct {
	sendErr error

	renderJobs     []string
	sanitiseJobs   []types.SanitiseJobMessage
	scanFiles      []types.ScanFileMessage
	scanPassed     []types.ScanPassedMessage
	renderRetries  []retriedRender
	billingRetries []types.BillableUnitsMessage
	scanRetries    []types.ScanPassedMessage
	resultRetries  []types.SanitisedResultMessage
}

func (t *fakeTasks) SendRenderJob(_ context.Context, sealed string) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.renderJobs = append(t.renderJobs, sealed)
	return nil
}

func (t *fakeTasks) SendSanitiseJob(_ context.Context, msg types.SanitiseJobMessage) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sanitiseJobs = append(t.sanitiseJobs, msg)
	return nil
}

func (t *fakeTasks) SendScanFile(_ context.Context, msg types.ScanFileMessage) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.scanFiles = append(t.scanFiles, msg)
	return nil
}

func (t *fakeTasks) SendScanPassed(_ context.Context, msg types.ScanPassedMessage) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.scanPassed = append(t.scanPassed, msg)
	return nil
}

func (t *fakeTasks) RetryRenderRequest(_ context.Context, msg types.RenderRequestMessage, delay time.Duration) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.renderRetries = append(t.renderRetries, retriedRender{msg: msg, delay: delay})
	return nil
}

func (t *fakeTasks) RetryBillableUnits(_ context.Context, msg types.BillableUnitsMessage, _ time.Duration) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.billingRetries = append(t.billingRetries, msg)
	return nil
}

func (t *fakeTasks) RetryScanPassed(_ context.Context, msg types.ScanPassedMessage, _ time.Duration) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.scanRetries = append(t.scanRetries, msg)
	return nil
}

func (t *fakeTasks) RetrySanitisedResult(_ context.Context, msg types.SanitisedResultMessage, _ time.Duration) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.resultRetries = append(t.resultRetries, msg)
	return nil
}

// --- PayloadCodec stub ---

// plainCodec passes payloads through as JSON with no encryption, so
// tests can inspect what was sealed.
type plainCodec struct {
	sealErr error
	openErr error
}

func (c *plainCodec) Seal(v any) (string, error) {
	if c.sealErr != nil {
		return "", c.sealErr
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func (c *plainCodec) Open(data string, v any) error {
	if c.openErr != nil {
		return c.openErr
	}
	return json.Unmarshal([]byte(data), v)
}

// --- Builders ---

func testNotification(id, reference string) *types.Notification {
	return &types.Notification{
		ID:              id,
		Reference:       reference,
		ServiceID:       "svc-1",
		Status:          types.StatusPendingVirusCheck,
		KeyType:         types.KeyTypeNormal,
		Postage:         types.PostageSecond,
		To:              "Someone\n1 Test Street\nLondon",
		TemplateSubject: "Your letter",
		TemplateContent: "Dear ((name))",
		TemplateType:    "letter",
		Personalisation: map[string]string{"name": "Sam"},
		ReplyToText:     "Reply to us",
		Crown:           true,
		CreatedAt:       time.Date(2021, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

type orchFixture struct {
	repo  *fakeRepo
	store *fakeStore
	tasks *fakeTasks
	codec *plainCodec
	orch  *Orchestrator
}

func newFixture(repo *fakeRepo, store *fakeStore, opts ...func(*Config)) *orchFixture {
	f := &orchFixture{
		repo:  repo,
		store: store,
		tasks: &fakeTasks{},
		codec: &plainCodec{},
	}
	cfg := Config{
		Repo:             repo,
		Store:            store,
		Tasks:            f.tasks,
		Codec:            f.codec,
		Retry:            DefaultRetryPolicy(),
		Logger:           nopLogger{},
		AntivirusEnabled: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f.orch = New(cfg)
	return f
}

var errTransient = errors.New("connection reset")
