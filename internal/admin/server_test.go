package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postroom/internal/logging"
	"postroom/internal/types"
)

type fakeReplayer struct {
	filenames []string
	err       error
}

func (f *fakeReplayer) ReplayErroredFiles(_ context.Context, filename string) error {
	if f.err != nil {
		return f.err
	}
	f.filenames = append(f.filenames, filename)
	return nil
}

const testAPIKey = "admin-api-key-test-value"

func newTestServer(replayer *fakeReplayer) http.Handler {
	logger := logging.NewAdapter(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	return NewServer(replayer, types.SecretString(testAPIKey), logger).Handler()
}

func doRequest(t *testing.T, handler http.Handler, method, target, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsUnauthenticated(t *testing.T) {
	handler := newTestServer(&fakeReplayer{})

	rec := doRequest(t, handler, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestReplayRequiresAPIKey(t *testing.T) {
	replayer := &fakeReplayer{}
	handler := newTestServer(replayer)

	rec := doRequest(t, handler, http.MethodPost, "/v1/letters/replay", "", `{"filename":"a.pdf"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, replayer.filenames)
}

func TestReplayRejectsWrongAPIKey(t *testing.T) {
	replayer := &fakeReplayer{}
	handler := newTestServer(replayer)

	rec := doRequest(t, handler, http.MethodPost, "/v1/letters/replay", "wrong-key", `{"filename":"a.pdf"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, replayer.filenames)
}

func TestReplaySingleFile(t *testing.T) {
	replayer := &fakeReplayer{}
	handler := newTestServer(replayer)

	rec := doRequest(t, handler, http.MethodPost, "/v1/letters/replay", testAPIKey,
		`{"filename":"NOTIFY.REF1.D.2.C.C.20210310090000.pdf"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"NOTIFY.REF1.D.2.C.C.20210310090000.pdf"}, replayer.filenames)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "replayed", body["result"])
}

func TestReplayEmptyBodySweepsArchive(t *testing.T) {
	replayer := &fakeReplayer{}
	handler := newTestServer(replayer)

	rec := doRequest(t, handler, http.MethodPost, "/v1/letters/replay", testAPIKey, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{""}, replayer.filenames)
}

func TestReplayMalformedJSON(t *testing.T) {
	replayer := &fakeReplayer{}
	handler := newTestServer(replayer)

	rec := doRequest(t, handler, http.MethodPost, "/v1/letters/replay", testAPIKey, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, replayer.filenames)
}

func TestReplayMapsAppErrorStatus(t *testing.T) {
	replayer := &fakeReplayer{
		err: types.NewAppError(types.ErrCodeNotFoundObject, "no such errored file", nil),
	}
	handler := newTestServer(replayer)

	rec := doRequest(t, handler, http.MethodPost, "/v1/letters/replay", testAPIKey, `{"filename":"missing.pdf"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(types.ErrCodeNotFoundObject), body.Code)
}

func TestReplayUnknownErrorIs500(t *testing.T) {
	replayer := &fakeReplayer{err: errors.New("boom")}
	handler := newTestServer(replayer)

	rec := doRequest(t, handler, http.MethodPost, "/v1/letters/replay", testAPIKey, `{"filename":"a.pdf"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Message)
}
