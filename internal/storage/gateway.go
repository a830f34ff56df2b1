// Package storage is the object-storage gateway for letter PDFs. It
// wraps the S3 API behind bucket/key operations and the letter-specific
// location moves between the scan-intake, sanitise-intake, invalid,
// final and error archives.
//
// The gateway offers no cross-bucket transaction. A "move" is a copy
// followed by a delete, and callers own the ordering: the source is
// deleted only after the copy observably succeeded, and a failed copy
// means nothing happened yet.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"postroom/internal/types"
)

// S3API abstracts the S3 operations the gateway needs. Production code
// uses *s3.Client from aws-sdk-go-v2.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Gateway provides bucket/key object operations over S3.
type Gateway struct {
	client S3API
}

// NewGateway creates a Gateway backed by the given S3 client.
func NewGateway(client S3API) *Gateway {
	return &Gateway{client: client}
}

// Head returns the byte size of an object. A missing object surfaces as
// ErrCodeNotFoundObject so callers can distinguish "gone" from "broken".
func (g *Gateway) Head(ctx context.Context, bucket, key string) (int64, error) {
	out, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, types.NewAppError(types.ErrCodeNotFoundObject,
				fmt.Sprintf("object %s/%s does not exist", bucket, key), err)
		}
		return 0, types.NewAppError(types.ErrCodeStorageOperation,
			fmt.Sprintf("head %s/%s", bucket, key), err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Get opens an object for reading. The caller must close the stream.
func (g *Gateway) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundObject,
				fmt.Sprintf("object %s/%s does not exist", bucket, key), err)
		}
		return nil, types.NewAppError(types.ErrCodeStorageOperation,
			fmt.Sprintf("get %s/%s", bucket, key), err)
	}
	return out.Body, nil
}

// Put writes an object.
func (g *Gateway) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeStorageOperation,
			fmt.Sprintf("put %s/%s", bucket, key), err)
	}
	return nil
}

// Copy duplicates an object between buckets. When metadata is non-nil it
// replaces the destination object's metadata wholesale; invalid-letter
// moves use this to attach the failure message for operator review.
//
// Copy completing without error is the only signal that the destination
// object exists; callers must not delete the source on any other basis.
func (g *Gateway) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string, metadata map[string]string) error {
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(url.PathEscape(srcBucket + "/" + srcKey)),
	}
	if metadata != nil {
		input.Metadata = metadata
		input.MetadataDirective = s3types.MetadataDirectiveReplace
	}

	if _, err := g.client.CopyObject(ctx, input); err != nil {
		if isNotFound(err) {
			return types.NewAppError(types.ErrCodeNotFoundObject,
				fmt.Sprintf("copy source %s/%s does not exist", srcBucket, srcKey), err)
		}
		return types.NewAppError(types.ErrCodeStorageOperation,
			fmt.Sprintf("copy %s/%s to %s/%s", srcBucket, srcKey, dstBucket, dstKey), err)
	}
	return nil
}

// Delete removes an object. Deleting a missing object is not an error;
// that is what makes copy-then-delete retryable after a crash between
// the two phases.
func (g *Gateway) Delete(ctx context.Context, bucket, key string) error {
	if _, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return types.NewAppError(types.ErrCodeStorageOperation,
			fmt.Sprintf("delete %s/%s", bucket, key), err)
	}
	return nil
}

// List returns all object keys under the prefix, following pagination.
func (g *Gateway) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	var continuation *string

	for {
		out, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeStorageOperation,
				fmt.Sprintf("list %s/%s", bucket, prefix), err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuation = out.NextContinuationToken
	}

	return keys, nil
}

// isNotFound reports whether the S3 error means the object is absent.
func isNotFound(err error) bool {
	var notFound *s3types.NotFound
	var noSuchKey *s3types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
