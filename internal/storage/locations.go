package storage

import (
	"context"
	"io"
	"strconv"
	"strings"
)

// Buckets names the logical letter locations. A letter PDF lives in
// exactly one of the first six at any time; PrintDispatch receives the
// zipped archives handed to the print partner.
type Buckets struct {
	ScanIntake     string
	SanitiseIntake string
	InvalidArchive string
	TestArchive    string
	LiveArchive    string
	ErrorArchive   string
	PrintDispatch  string
}

// InvalidLetterMeta is attached to an invalid letter's archived copy so
// an operator reviewing the bucket can see why validation failed without
// consulting logs.
type InvalidLetterMeta struct {
	Message      string
	InvalidPages []int
	PageCount    int
}

// metadata renders the review fields as S3 object metadata.
func (m InvalidLetterMeta) metadata() map[string]string {
	meta := map[string]string{}
	if m.Message != "" {
		meta["message"] = m.Message
	}
	if len(m.InvalidPages) > 0 {
		pages := make([]string, len(m.InvalidPages))
		for i, p := range m.InvalidPages {
			pages[i] = strconv.Itoa(p)
		}
		meta["invalid_pages"] = strings.Join(pages, ",")
	}
	if m.PageCount > 0 {
		meta["page_count"] = strconv.Itoa(m.PageCount)
	}
	return meta
}

// LetterStore layers the letter location moves over the Gateway. Each
// method is one leg of a move; the pipeline sequences the legs so the
// copy-before-delete ordering stays visible at the call site that is
// responsible for it.
type LetterStore struct {
	gw      *Gateway
	buckets Buckets
}

// NewLetterStore creates a LetterStore over the gateway and bucket names.
func NewLetterStore(gw *Gateway, buckets Buckets) *LetterStore {
	return &LetterStore{gw: gw, buckets: buckets}
}

// ScanObjectSize confirms the original still sits in scan-intake and
// returns its size. Processing a sanitiser verdict starts here: if the
// original is gone the move already happened or something is badly wrong,
// and either way the caller must not proceed as if it were present.
func (s *LetterStore) ScanObjectSize(ctx context.Context, filename string) (int64, error) {
	return s.gw.Head(ctx, s.buckets.ScanIntake, filename)
}

// CopyScanToInvalid copies a failed letter from scan-intake to the
// invalid archive, tagging it with the validation failure details.
func (s *LetterStore) CopyScanToInvalid(ctx context.Context, filename string, meta InvalidLetterMeta) error {
	return s.gw.Copy(ctx, s.buckets.ScanIntake, filename, s.buckets.InvalidArchive, filename, meta.metadata())
}

// DeleteScanObject removes the original from scan-intake. Callers invoke
// this only after a copy to the letter's next location has succeeded.
func (s *LetterStore) DeleteScanObject(ctx context.Context, filename string) error {
	return s.gw.Delete(ctx, s.buckets.ScanIntake, filename)
}

// MoveSanitisedToArchive moves the sanitised PDF from sanitise-intake to
// its permanent archive under destKey: the test archive for test-key
// letters, the live archive otherwise. The sanitise-intake copy is
// deleted only after the archive copy succeeds.
func (s *LetterStore) MoveSanitisedToArchive(ctx context.Context, filename string, isTest bool, destKey string) error {
	if err := s.gw.Copy(ctx, s.buckets.SanitiseIntake, filename, s.FinalBucket(isTest), destKey, nil); err != nil {
		return err
	}
	return s.gw.Delete(ctx, s.buckets.SanitiseIntake, filename)
}

// CopyScanToError copies a letter the scanner could not pass from
// scan-intake to the error archive.
func (s *LetterStore) CopyScanToError(ctx context.Context, filename string) error {
	return s.gw.Copy(ctx, s.buckets.ScanIntake, filename, s.buckets.ErrorArchive, filename, nil)
}

// MoveErrorToScan returns an errored letter to scan-intake for another
// pass through the scanner. The error-archive copy is deleted only after
// the scan-intake copy succeeds.
func (s *LetterStore) MoveErrorToScan(ctx context.Context, filename string) error {
	if err := s.gw.Copy(ctx, s.buckets.ErrorArchive, filename, s.buckets.ScanIntake, filename, nil); err != nil {
		return err
	}
	return s.gw.Delete(ctx, s.buckets.ErrorArchive, filename)
}

// ListErrorFiles returns every filename currently in the error archive.
func (s *LetterStore) ListErrorFiles(ctx context.Context) ([]string, error) {
	return s.gw.List(ctx, s.buckets.ErrorArchive, "")
}

// FinalArchiveSize heads a letter in the live archive. The collator uses
// this to resolve each print candidate's size.
func (s *LetterStore) FinalArchiveSize(ctx context.Context, key string) (int64, error) {
	return s.gw.Head(ctx, s.buckets.LiveArchive, key)
}

// GetArchiveMember streams a letter PDF from the live archive for
// inclusion in a print batch ZIP.
func (s *LetterStore) GetArchiveMember(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.gw.Get(ctx, s.buckets.LiveArchive, key)
}

// PutDispatchArchive writes a completed print batch ZIP into the
// dispatch bucket, where the delivery transfer picks it up.
func (s *LetterStore) PutDispatchArchive(ctx context.Context, name string, body io.Reader) error {
	return s.gw.Put(ctx, s.buckets.PrintDispatch, name, body, "application/zip")
}

// FinalBucket returns the permanent archive bucket for a letter.
func (s *LetterStore) FinalBucket(isTest bool) string {
	if isTest {
		return s.buckets.TestArchive
	}
	return s.buckets.LiveArchive
}
