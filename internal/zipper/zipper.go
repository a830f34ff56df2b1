// Package zipper assembles print batch ZIP archives from manifests
// emitted by the collator and delivers them to the dispatch bucket.
package zipper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"postroom/internal/types"
)

// memberFetchConcurrency bounds parallel archive downloads per batch.
const memberFetchConcurrency = 8

// MemberStore is the storage surface the zipper needs: read letter PDFs
// out of the archive and write the finished ZIP into dispatch.
type MemberStore interface {
	GetArchiveMember(ctx context.Context, key string) (io.ReadCloser, error)
	PutDispatchArchive(ctx context.Context, name string, body io.Reader) error
}

// Zipper builds one ZIP per manifest. Batches are bounded by the
// collator's size limit, so assembly buffers in memory.
type Zipper struct {
	store  MemberStore
	logger types.Logger
}

// New creates a Zipper.
func New(store MemberStore, logger types.Logger) *Zipper {
	return &Zipper{store: store, logger: logger}
}

// ZipAndSend fetches every member named in the manifest, writes them
// into a ZIP in manifest order, and uploads the result under the
// manifest's archive name. Any missing or unreadable member fails the
// whole batch: a partial archive must never reach the print partner.
func (z *Zipper) ZipAndSend(ctx context.Context, msg types.ZipBatchMessage) error {
	logger := z.logger.With(
		"archive", msg.UploadFilename,
		"service_id", msg.ServiceID,
		"letters", len(msg.FilenamesToZip),
	)
	logger.Info("assembling print batch archive")

	if len(msg.FilenamesToZip) == 0 {
		return types.NewAppError(types.ErrCodeValidationMissingField,
			"zip batch manifest has no members", nil)
	}

	bodies, err := z.fetchMembers(ctx, msg.FilenamesToZip)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, key := range msg.FilenamesToZip {
		// Entries carry the bare filename: print-day folders are an
		// archive-bucket concern, not part of the batch layout.
		w, err := zw.Create(path.Base(key))
		if err != nil {
			return fmt.Errorf("creating zip entry for %s: %w", key, err)
		}
		if _, err := w.Write(bodies[i]); err != nil {
			return fmt.Errorf("writing zip entry for %s: %w", key, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalising zip archive: %w", err)
	}

	if err := z.store.PutDispatchArchive(ctx, msg.UploadFilename, &buf); err != nil {
		return err
	}

	logger.Info("uploaded print batch archive", "zip_size", buf.Len())
	return nil
}

// fetchMembers downloads the member PDFs concurrently, preserving
// manifest order in the returned slice.
func (z *Zipper) fetchMembers(ctx context.Context, keys []string) ([][]byte, error) {
	bodies := make([][]byte, len(keys))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(memberFetchConcurrency)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			rc, err := z.store.GetArchiveMember(ctx, key)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", key, err)
			}
			defer rc.Close()

			body, err := io.ReadAll(rc)
			if err != nil {
				return fmt.Errorf("reading %s: %w", key, err)
			}
			bodies[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bodies, nil
}
