// Package s3 uploads media to an S3-compatible bucket (AWS S3 or MinIO).
package s3

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vidtube/backend/internal/media"
)

// Config holds the bucket location and credentials.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// PublicBaseURL overrides the URL prefix returned for uploaded objects.
	PublicBaseURL string
	UsePathStyle  bool
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

// Host implements media.Host on S3.
type Host struct {
	client  putObjectAPI
	bucket  string
	baseURL string
}

// New builds an S3 client from cfg. Static credentials are used when given,
// otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config) (*Host, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewWithClient(client, cfg.Bucket, PublicBaseURL(cfg)), nil
}

// NewWithClient wraps an existing client. baseURL prefixes returned URLs.
func NewWithClient(client putObjectAPI, bucket, baseURL string) *Host {
	return &Host{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

// PublicBaseURL returns the URL prefix under which objects of cfg.Bucket are
// reachable.
func PublicBaseURL(cfg Config) string {
	switch {
	case cfg.PublicBaseURL != "":
		return cfg.PublicBaseURL
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

// Upload puts the object and returns its public URL.
func (h *Host) Upload(ctx context.Context, input *media.UploadInput) (*media.UploadResult, error) {
	in := &awss3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(input.Key),
		Body:        input.Data,
		ContentType: aws.String(input.ContentType),
	}
	if input.Size > 0 {
		in.ContentLength = aws.Int64(input.Size)
	}

	if _, err := h.client.PutObject(ctx, in); err != nil {
		return nil, fmt.Errorf("s3 put %s: %w", input.Key, err)
	}

	return &media.UploadResult{
		Key: input.Key,
		URL: h.baseURL + "/" + (&url.URL{Path: input.Key}).EscapedPath(),
	}, nil
}
