package output

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/fisdef/internal/logger"
)

// S3Config holds the bucket settings. Credentials fall back to the default AWS
// chain when AccessKeyID is empty.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, e.g. a MinIO URL
	KeyPrefix       string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
}

// S3Sink uploads output files to an S3 compatible bucket.
type S3Sink struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// NewS3Sink creates an S3Sink from cfg.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return &S3Sink{client: client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}, nil
}

// Key maps a local output path to an object key under the key prefix.
func (s *S3Sink) Key(p string) string {
	key := strings.TrimLeft(path.Clean(filepath.ToSlash(p)), "/")
	key = strings.TrimPrefix(key, "./")
	return s.keyPrefix + key
}

// Write uploads data to the key derived from p. Buckets have no directories
// to create, so defaultName is never used.
func (s *S3Sink) Write(ctx context.Context, p, _ string, data []byte) (string, bool, error) {
	key := s.Key(p)
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	}); err != nil {
		return "", false, fmt.Errorf("%w: s3://%s/%s: %v", ErrFileCreate, s.bucket, key, err)
	}

	location := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	logger.Debug("Uploaded %s to %s", humanize.Bytes(uint64(len(data))), location)
	return location, false, nil
}
