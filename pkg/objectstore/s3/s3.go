// Package s3 implements the object store on Amazon S3 or any
// S3-compatible backend (MinIO, Ceph RGW, Garage).
//
// The hub never proxies payload bytes: every upload and download is a
// presigned URL the client follows directly. When the backend sits on
// a private network, PublicEndpoint configures a second client whose
// presigned URLs resolve from outside.
package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/objectstore"
)

// Metrics is the optional metrics collector for backend calls.
type Metrics interface {
	// ObserveOperation records one backend operation with its duration
	// and outcome.
	ObserveOperation(operation string, duration time.Duration, err error)
}

// Config contains the S3 object store configuration.
type Config struct {
	// Endpoint is the backend URL the hub itself talks to. Empty means
	// the AWS default resolver.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// PublicEndpoint, when set, is the URL presigned requests are
	// signed against so clients outside the hub's network can reach
	// the backend. Empty means presign against Endpoint.
	PublicEndpoint string `mapstructure:"public_endpoint" yaml:"public_endpoint"`

	Region          string `mapstructure:"region" yaml:"region"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`

	// ForcePathStyle addresses the bucket in the URL path instead of
	// the host name. Required by most self-hosted backends.
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// retryConfig holds retry settings for backend operations.
type retryConfig struct {
	maxRetries     uint
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// Store implements objectstore.Store on S3.
type Store struct {
	client  *awss3.Client
	presign *awss3.PresignClient
	bucket  string
	retry   retryConfig
	metrics Metrics
}

// newClient builds an S3 client for one endpoint.
func newClient(ctx context.Context, cfg Config, endpoint string) (*awss3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}

// New creates the S3 object store and verifies bucket access. The
// bucket must already exist.
func New(ctx context.Context, cfg Config, metrics Metrics) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	client, err := newClient(ctx, cfg, cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	// Presigned URLs are signed against the public endpoint when one is
	// configured, so the signature stays valid for external clients.
	presignClient := client
	if cfg.PublicEndpoint != "" && cfg.PublicEndpoint != cfg.Endpoint {
		presignClient, err = newClient(ctx, cfg, cfg.PublicEndpoint)
		if err != nil {
			return nil, err
		}
	}

	if _, err := client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &Store{
		client:  client,
		presign: awss3.NewPresignClient(presignClient),
		bucket:  cfg.Bucket,
		retry: retryConfig{
			maxRetries:     2,
			initialBackoff: 100 * time.Millisecond,
			maxBackoff:     2 * time.Second,
		},
		metrics: metrics,
	}, nil
}

// withRetry runs fn, retrying transient failures with exponential
// backoff. After the retries are exhausted the error is wrapped in
// ErrBackendUnavailable so callers can map it uniformly.
func (s *Store) withRetry(ctx context.Context, operation string, fn func() error) error {
	backoff := s.retry.initialBackoff

	var err error
	for attempt := uint(0); ; attempt++ {
		start := time.Now()
		err = fn()
		if s.metrics != nil {
			s.metrics.ObserveOperation(operation, time.Since(start), err)
		}
		if err == nil || !isTransient(err) || attempt == s.retry.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.retry.maxBackoff {
			backoff = s.retry.maxBackoff
		}
	}

	if err != nil && isTransient(err) {
		return fmt.Errorf("%w: %s: %v", models.ErrBackendUnavailable, operation, err)
	}
	return err
}

// isTransient reports whether an error is worth retrying. Missing
// objects and cancelled contexts are terminal.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return false
	}
	var noSuchUpload *types.NoSuchUpload
	return !errors.As(err, &noSuchUpload)
}

// fromPresigned converts an SDK presigned request into the transport
// neutral form handed to clients.
func fromPresigned(req *v4.PresignedHTTPRequest, expiry time.Duration) objectstore.PresignedURL {
	header := make(map[string]string, len(req.SignedHeader))
	for name, values := range req.SignedHeader {
		if len(values) > 0 {
			header[name] = values[0]
		}
	}
	return objectstore.PresignedURL{
		URL:       req.URL,
		Method:    req.Method,
		Header:    header,
		ExpiresAt: time.Now().Add(expiry).UTC(),
	}
}

// PresignPut returns a URL authorising a single PUT of the object.
func (s *Store) PresignPut(ctx context.Context, key string, size int64, expiry time.Duration) (objectstore.PresignedURL, error) {
	req, err := s.presign.PresignPutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentLength: aws.Int64(size),
	}, awss3.WithPresignExpires(expiry))
	if err != nil {
		return objectstore.PresignedURL{}, fmt.Errorf("%w: presign put: %v", models.ErrBackendUnavailable, err)
	}
	return fromPresigned(req, expiry), nil
}

// PresignGet returns a URL authorising a GET of the object.
func (s *Store) PresignGet(ctx context.Context, key string, expiry time.Duration) (objectstore.PresignedURL, error) {
	req, err := s.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(expiry))
	if err != nil {
		return objectstore.PresignedURL{}, fmt.Errorf("%w: presign get: %v", models.ErrBackendUnavailable, err)
	}
	return fromPresigned(req, expiry), nil
}

// InitiateMultipart starts a multipart upload and returns its id.
func (s *Store) InitiateMultipart(ctx context.Context, key string) (string, error) {
	var uploadID string
	err := s.withRetry(ctx, "CreateMultipartUpload", func() error {
		result, err := s.client.CreateMultipartUpload(ctx, &awss3.CreateMultipartUploadInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		uploadID = aws.ToString(result.UploadId)
		return nil
	})
	return uploadID, err
}

// PresignPart returns a URL authorising the upload of one part.
func (s *Store) PresignPart(ctx context.Context, key, uploadID string, partNumber int32, expiry time.Duration) (objectstore.PresignedURL, error) {
	req, err := s.presign.PresignUploadPart(ctx, &awss3.UploadPartInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}, awss3.WithPresignExpires(expiry))
	if err != nil {
		return objectstore.PresignedURL{}, fmt.Errorf("%w: presign part: %v", models.ErrBackendUnavailable, err)
	}
	return fromPresigned(req, expiry), nil
}

// CompleteMultipart assembles the uploaded parts into the object.
func (s *Store) CompleteMultipart(ctx context.Context, key, uploadID string, parts []objectstore.MultipartPart) error {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			PartNumber: aws.Int32(p.Number),
			ETag:       aws.String(p.ETag),
		}
	}

	return s.withRetry(ctx, "CompleteMultipartUpload", func() error {
		_, err := s.client.CompleteMultipartUpload(ctx, &awss3.CompleteMultipartUploadInput{
			Bucket:   aws.String(s.bucket),
			Key:      aws.String(key),
			UploadId: aws.String(uploadID),
			MultipartUpload: &types.CompletedMultipartUpload{
				Parts: completed,
			},
		})
		return err
	})
}

// AbortMultipart abandons a multipart upload and frees its parts.
func (s *Store) AbortMultipart(ctx context.Context, key, uploadID string) error {
	err := s.withRetry(ctx, "AbortMultipartUpload", func() error {
		_, err := s.client.AbortMultipartUpload(ctx, &awss3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.bucket),
			Key:      aws.String(key),
			UploadId: aws.String(uploadID),
		})
		return err
	})
	var noSuchUpload *types.NoSuchUpload
	if errors.As(err, &noSuchUpload) {
		return nil
	}
	return err
}

// Stat returns size information for an object.
func (s *Store) Stat(ctx context.Context, key string) (objectstore.ObjectInfo, error) {
	var info objectstore.ObjectInfo
	err := s.withRetry(ctx, "HeadObject", func() error {
		result, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		info = objectstore.ObjectInfo{
			Key:  key,
			Size: aws.ToInt64(result.ContentLength),
		}
		return nil
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return objectstore.ObjectInfo{}, objectstore.ErrObjectMissing
		}
		return objectstore.ObjectInfo{}, err
	}
	return info, nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.withRetry(ctx, "DeleteObject", func() error {
		_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return err
	})
}

// List walks every key under prefix.
func (s *Store) List(ctx context.Context, prefix string, fn func(objectstore.ObjectInfo) error) error {
	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("%w: list objects: %v", models.ErrBackendUnavailable, err)
		}
		for _, obj := range page.Contents {
			info := objectstore.ObjectInfo{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if err := fn(info); err != nil {
				return err
			}
		}
	}
	return nil
}
