// Package s3 reads audit-log blobs from Amazon S3 or an S3-compatible store.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/V4T54L/trailwatch/internal/domain"
)

// API is the subset of *s3.Client used by Source.
type API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Source implements domain.LogSource over S3.
type Source struct {
	client API
	logger *slog.Logger
}

func NewSource(client API, logger *slog.Logger) *Source {
	return &Source{client: client, logger: logger.With("component", "s3_source")}
}

func (s *Source) List(ctx context.Context, bucket, prefix string) ([]domain.ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}

	var objects []domain.ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list s3://%s/%s: %w", domain.ErrSource, bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// Folder placeholders carry no events.
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			objects = append(objects, domain.ObjectInfo{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	s.logger.Debug("Listed objects", "bucket", bucket, "prefix", prefix, "count", len(objects))
	return objects, nil
}

func (s *Source) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get s3://%s/%s: %w", domain.ErrSource, bucket, key, err)
	}
	defer func() {
		if err := output.Body.Close(); err != nil {
			s.logger.Error("failed to close S3 object body", "key", key, "error", err)
		}
	}()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read s3://%s/%s: %w", domain.ErrSource, bucket, key, err)
	}
	return data, nil
}

// Options configures client construction.
type Options struct {
	Region string
	// Endpoint points the client at an S3-compatible store and enables path-style addressing.
	Endpoint string
}

// NewClient builds an S3 client. A nil creds provider uses the default AWS chain.
func NewClient(ctx context.Context, opts Options, creds aws.CredentialsProvider) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if creds != nil {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(creds))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// StaticCredentials wraps an access key pair.
func StaticCredentials(accessKey, secretKey string) aws.CredentialsProvider {
	return credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")
}

// Factory builds sources bound to caller-supplied credentials.
type Factory struct {
	defaults Options
	logger   *slog.Logger
}

func NewFactory(defaults Options, logger *slog.Logger) *Factory {
	return &Factory{defaults: defaults, logger: logger}
}

// ForCredentials returns a source that signs every request with the given key
// pair. An empty region falls back to the configured one.
func (f *Factory) ForCredentials(ctx context.Context, accessKey, secretKey, region string) (domain.LogSource, error) {
	if accessKey == "" || secretKey == "" {
		return nil, errors.New("access key and secret key are required")
	}
	opts := f.defaults
	if region != "" {
		opts.Region = region
	}
	client, err := NewClient(ctx, opts, StaticCredentials(accessKey, secretKey))
	if err != nil {
		return nil, err
	}
	return NewSource(client, f.logger), nil
}

// ParseLocation splits "s3://bucket/prefix" or "bucket/prefix" into its parts.
func ParseLocation(location string) (bucket, prefix string, err error) {
	rest := strings.TrimSpace(location)
	rest = strings.TrimPrefix(rest, "s3://")
	rest = strings.TrimPrefix(rest, "/")
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid log location %q: missing bucket", location)
	}
	return bucket, prefix, nil
}
