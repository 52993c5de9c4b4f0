package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/aeriallabs/registry/pkg/blob"
)

// S3Store implements blob.Store on Amazon S3 or S3-compatible storage.
//
// All logical buckets share one physical S3 bucket: the logical bucket name
// becomes the first segment of the object key ("<prefix><bucket>/<key>").
// This keeps dataset provisioning free of S3 bucket-creation round trips and
// works with providers that cap the number of buckets per account.
//
// Characteristics:
//   - Range of consistency depends on the provider; writes to the same key
//     from concurrent callers are last-write-wins.
//   - Copy uses server-side CopyObject, so object bytes never transit the
//     registry host during a Move.
//   - Custom endpoints (MinIO, Localstack, Cubbit DS3, ...) are supported
//     through the client configuration.
type S3Store struct {
	client    *s3.Client
	s3Bucket  string
	keyPrefix string
}

// S3StoreConfig contains configuration for the S3 blob store.
type S3StoreConfig struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the physical S3 bucket holding every dataset
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	KeyPrefix string
}

// NewS3Store creates an S3-backed blob store and verifies bucket access.
// The physical bucket must already exist.
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3Store{
		client:    cfg.Client,
		s3Bucket:  cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// objectKey maps a logical bucket/key pair onto the physical key namespace.
func (s *S3Store) objectKey(bucket, key string) string {
	return s.keyPrefix + bucket + "/" + key
}

// isNotFound reports whether an S3 error means "no such object".
// HeadObject surfaces a generic 404 ("NotFound") rather than NoSuchKey.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound"
}

func (s *S3Store) Put(ctx context.Context, bucket, key string, data io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.s3Bucket),
		Key:    aws.String(s.objectKey(bucket, key)),
		Body:   data,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.s3Bucket),
		Key:    aws.String(s.objectKey(bucket, key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, key, blob.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s/%s: %w", bucket, key, err)
	}
	return result.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	// S3 DeleteObject is already idempotent: deleting a missing key succeeds.
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.s3Bucket),
		Key:    aws.String(s.objectKey(bucket, key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	fullPrefix := s.objectKey(bucket, prefix)
	strip := s.objectKey(bucket, "")

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.s3Bucket),
		Prefix: aws.String(fullPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", bucket, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, strings.TrimPrefix(aws.ToString(obj.Key), strip))
		}
	}

	return keys, nil
}

func (s *S3Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.s3Bucket),
		Key:    aws.String(s.objectKey(bucket, key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

func (s *S3Store) Copy(ctx context.Context, bucket, src, dst string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.s3Bucket),
		CopySource: aws.String(s.s3Bucket + "/" + s.objectKey(bucket, src)),
		Key:        aws.String(s.objectKey(bucket, dst)),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%s/%s: %w", bucket, src, blob.ErrNotFound)
		}
		return fmt.Errorf("failed to copy object %s/%s: %w", bucket, src, err)
	}
	return nil
}
