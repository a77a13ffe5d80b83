package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	infraconfig "github.com/quotedesk/renderd/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Ensure S3ArtifactSink implements ArtifactSink
var _ ArtifactSink = (*S3ArtifactSink)(nil)

// S3ArtifactSink stores artifacts in S3-compatible object storage (AWS S3,
// MinIO, RustFS, etc.) and returns presigned GET URLs as locators.
type S3ArtifactSink struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	keyPrefix         string
	presignExpiration time.Duration
	logger            *zap.Logger
}

// S3Option is a functional option for configuring S3ArtifactSink
type S3Option func(*S3ArtifactSink)

// WithLogger sets a custom logger for the sink
func WithLogger(logger *zap.Logger) S3Option {
	return func(s *S3ArtifactSink) {
		s.logger = logger
	}
}

// WithPresignExpiration sets a custom locator expiration
func WithPresignExpiration(d time.Duration) S3Option {
	return func(s *S3ArtifactSink) {
		s.presignExpiration = d
	}
}

// NewS3ArtifactSink creates an S3-backed artifact sink from configuration
func NewS3ArtifactSink(cfg *infraconfig.StorageConfig, opts ...S3Option) (*S3ArtifactSink, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:9000" // MinIO default
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	sink := &S3ArtifactSink{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		keyPrefix:         strings.Trim(cfg.KeyPrefix, "/"),
		presignExpiration: cfg.PresignExpiration,
		logger:            zap.NewNop(),
	}

	for _, opt := range opts {
		opt(sink)
	}

	if sink.presignExpiration == 0 {
		sink.presignExpiration = 15 * time.Minute
	}

	return sink, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup.
func (s *S3ArtifactSink) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating storage bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Ignore "BucketAlreadyOwnedByYou" (startup race)
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// Store uploads the artifact and returns a presigned GET URL as its locator
func (s *S3ArtifactSink) Store(ctx context.Context, req *StoreRequest) (*StoreResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	key := s.objectKey(req.Key)
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(req.Data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(req.Data))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload artifact %s: %w", key, err)
	}

	presigned, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignExpiration))
	if err != nil {
		return nil, fmt.Errorf("failed to presign locator for %s: %w", key, err)
	}

	s.logger.Debug("artifact stored",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(req.Data)))

	return &StoreResult{
		Key:     key,
		Locator: presigned.URL,
		Size:    int64(len(req.Data)),
	}, nil
}

// Ready checks that the bucket is reachable
func (s *S3ArtifactSink) Ready(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("storage bucket %s not reachable: %w", s.bucket, err)
	}
	return nil
}

// objectKey prefixes the artifact filename with the configured key prefix
// and a year/month partition so buckets stay listable.
func (s *S3ArtifactSink) objectKey(filename string) string {
	now := time.Now().UTC()
	partition := fmt.Sprintf("%04d/%02d", now.Year(), now.Month())
	if s.keyPrefix == "" {
		return path.Join(partition, filename)
	}
	return path.Join(s.keyPrefix, partition, filename)
}
