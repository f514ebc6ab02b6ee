package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of *s3.Client used by S3Storage.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config is loaded from the environment by cmd/server.
type S3Config struct {
	Bucket         string `env:"S3_BUCKET" envDefault:"com-kfchess-public"`
	Region         string `env:"S3_REGION" envDefault:"us-west-2"`
	AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"S3_SECRET_ACCESS_KEY"`
	Endpoint       string `env:"S3_ENDPOINT"`
	BaseURL        string `env:"S3_PUBLIC_BASE_URL"`
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`
}

// S3Storage is safe for concurrent use.
type S3Storage struct {
	client        S3Client
	bucket        string
	baseURL       string
	uploadTimeout time.Duration
}

type S3Option func(*s3Options)

type s3Options struct {
	httpClient    *http.Client
	s3Client      S3Client
	uploadTimeout time.Duration
}

// WithS3Client injects a pre-built client, typically a mock.
func WithS3Client(client S3Client) S3Option {
	return func(o *s3Options) { o.s3Client = client }
}

func WithHTTPClient(client *http.Client) S3Option {
	return func(o *s3Options) { o.httpClient = client }
}

// WithS3UploadTimeout bounds each Put on top of the caller's context.
func WithS3UploadTimeout(d time.Duration) S3Option {
	return func(o *s3Options) { o.uploadTimeout = d }
}

func NewS3Storage(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Storage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	options := &s3Options{}
	for _, opt := range opts {
		opt(options)
	}

	client := options.s3Client
	if client == nil {
		awsOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOpts = append(awsOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
			))
		}
		if options.httpClient != nil {
			awsOpts = append(awsOpts, config.WithHTTPClient(options.httpClient))
		}

		awsCfg, err := config.LoadDefaultConfig(ctx, awsOpts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedToLoadConfig, err)
		}
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
		})
	}

	return &S3Storage{
		client:        client,
		bucket:        cfg.Bucket,
		baseURL:       publicBaseURL(cfg),
		uploadTimeout: options.uploadTimeout,
	}, nil
}

// publicBaseURL mirrors the addressing style S3 uses for public objects.
func publicBaseURL(cfg S3Config) string {
	switch {
	case cfg.BaseURL != "":
		return cfg.BaseURL
	case cfg.Endpoint != "":
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(cfg.Endpoint, "/"), cfg.Bucket)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

func (s *S3Storage) Put(ctx context.Context, key string, body []byte, opts ...PutOption) (*Object, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, ErrEmptyObject
	}
	if s.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.uploadTimeout)
		defer cancel()
	}

	o := resolvePutOptions(body, opts)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(o.contentType),
	}
	if o.publicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}
	if o.cacheControl != "" {
		input.CacheControl = aws.String(o.cacheControl)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, classifyS3Error(err, "upload object")
	}

	return &Object{
		Key:         key,
		URL:         s.URL(key),
		Size:        int64(len(body)),
		ContentType: o.contentType,
	}, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return classifyS3Error(err, "delete object")
}

func (s *S3Storage) URL(key string) string {
	return joinURL(s.baseURL, strings.TrimPrefix(key, "/"))
}

// classifyS3Error maps SDK errors onto the package's sentinel errors.
func classifyS3Error(err error, operation string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrOperationTimeout, operation)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", ErrOperationCanceled, operation)
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return ErrBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); code {
		case "AccessDenied":
			return fmt.Errorf("%w: %s", ErrAccessDenied, operation)
		case "RequestTimeout":
			return fmt.Errorf("%w: %s", ErrRequestTimeout, operation)
		case "SlowDown", "ServiceUnavailable":
			return fmt.Errorf("%w: %s", ErrServiceUnavailable, operation)
		case "NoSuchKey":
			return fmt.Errorf("%w: %v", ErrFileNotFound, err)
		case "NoSuchBucket":
			return ErrBucketNotFound
		default:
			return fmt.Errorf("%s failed (code: %s): %w", operation, code, err)
		}
	}

	return fmt.Errorf("%s failed: %w", operation, err)
}
