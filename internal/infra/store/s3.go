package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"notico/internal/common"
	"notico/internal/domain/dispatch"
)

// S3Config holds S3-compatible object storage settings.
type S3Config struct {
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string // optional, for MinIO or other S3-compatible services
	PathStyle bool   // required for MinIO
}

var _ dispatch.TemplateStore = (*S3TemplateStore)(nil)

// S3TemplateStore implements the template blob store on S3-compatible
// object storage.
type S3TemplateStore struct {
	client *s3.Client
	bucket string
}

// Configured reports whether the credentials are complete. A store built
// from an incomplete config is still usable as a dependency; callers
// gate access on this flag rather than failing construction, so
// unconfigured services stay discoverable.
func (c S3Config) Configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// NewS3TemplateStore creates a new S3-backed template store.
func NewS3TemplateStore(cfg S3Config) *S3TemplateStore {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		},
	}

	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		})
	}

	return &S3TemplateStore{
		client: s3.New(s3.Options{}, opts...),
		bucket: cfg.Bucket,
	}
}

// Get returns the blob at key, or a NotFoundError when the object does
// not exist.
func (s *S3TemplateStore) Get(ctx context.Context, key string) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, common.NewNotFoundError("object", key)
		}
		return nil, fmt.Errorf("fetching object %s: %w", key, err)
	}
	defer output.Body.Close()

	blob, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", key, err)
	}

	return blob, nil
}

// Put writes the blob at key, overwriting any existing object.
func (s *S3TemplateStore) Put(ctx context.Context, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("storing object %s: %w", key, err)
	}
	return nil
}

// Delete removes the blob at key. Deleting an absent object is not an
// error (S3 semantics).
func (s *S3TemplateStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting object %s: %w", key, err)
	}
	return nil
}

// List returns all keys under the given prefix.
func (s *S3TemplateStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing objects under %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	return keys, nil
}
