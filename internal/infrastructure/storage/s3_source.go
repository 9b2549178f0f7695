package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

// S3ImportSource reads import files from AWS S3 or any S3-compatible store
// (MinIO, RustFS). Locations name the bucket, so one source serves every
// bucket the credentials can read.
type S3ImportSource struct {
	client  *s3.Client
	maxSize int64
	logger  *zap.Logger
}

// S3ImportSourceOption configures an S3ImportSource
type S3ImportSourceOption func(*S3ImportSource)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) S3ImportSourceOption {
	return func(s *S3ImportSource) {
		s.logger = logger
	}
}

// WithMaxSize rejects objects larger than n bytes before downloading them
func WithMaxSize(n int64) S3ImportSourceOption {
	return func(s *S3ImportSource) {
		s.maxSize = n
	}
}

// NewS3ImportSource builds a client from cfg. Static credentials are used when
// configured, otherwise the default AWS credential chain applies.
func NewS3ImportSource(ctx context.Context, cfg config.StorageConfig, opts ...S3ImportSourceOption) (*S3ImportSource, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.Configured() {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return NewS3ImportSourceWithClient(client, opts...), nil
}

// NewS3ImportSourceWithClient wraps an existing client
func NewS3ImportSourceWithClient(client *s3.Client, opts ...S3ImportSourceOption) *S3ImportSource {
	s := &S3ImportSource{client: client, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// normalizeEndpoint adds a scheme to a bare host:port. Empty means AWS.
func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		return "", nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	return endpoint, nil
}

// Open streams an object. Objects above the size limit are rejected from
// their metadata without downloading.
func (s *S3ImportSource) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	if loc.Key == "" || strings.HasSuffix(loc.Key, "/") {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("%s names a prefix, not an object", location))
	}

	if s.maxSize > 0 {
		head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(loc.Bucket),
			Key:    aws.String(loc.Key),
		})
		if err != nil {
			return nil, s.mapError(location, err)
		}
		if size := aws.ToInt64(head.ContentLength); size > s.maxSize {
			return nil, shared.NewDomainError(shared.CodeValidationFailed,
				fmt.Sprintf("%s is %d bytes, the limit is %d", location, size, s.maxSize))
		}
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, s.mapError(location, err)
	}
	s.logger.Debug("opened import object",
		zap.String("location", location),
		zap.Int64("size", aws.ToInt64(out.ContentLength)),
	)
	return out.Body, nil
}

// List returns the CSV objects under a key prefix. A location naming a
// single object returns just that object.
func (s *S3ImportSource) List(ctx context.Context, location string) ([]Object, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(loc.Bucket),
		Prefix: aws.String(loc.Key),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.mapError(location, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || !isCSV(key) {
				continue
			}
			objects = append(objects, Object{
				Location: Location{Bucket: loc.Bucket, Key: key}.String(),
				Size:     aws.ToInt64(obj.Size),
			})
		}
	}
	return objects, nil
}

func (s *S3ImportSource) mapError(location string, err error) error {
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) || errors.As(err, &notFound) {
		return shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("import object %s not found", location))
	}
	return fmt.Errorf("failed to read %s: %w", location, err)
}

var _ ImportSource = (*S3ImportSource)(nil)
