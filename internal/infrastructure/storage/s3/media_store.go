// Package s3 stores user images (avatars, cover images) in an S3-compatible
// bucket such as MinIO and hands back their public URLs.
package s3

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/pkg/metrics"
)

const defaultContentType = "application/octet-stream"

// Config holds bucket location and credentials.
type Config struct {
	Region    string
	Endpoint  string // empty for AWS, set for MinIO and friends
	AccessKey string
	SecretKey string
	Bucket    string
	// PublicURL is the base under which objects are served. Defaults to
	// <Endpoint>/<Bucket>.
	PublicURL string
}

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// MediaStore implements ports.MediaStore.
type MediaStore struct {
	client    objectAPI
	bucket    string
	publicURL string
	now       func() time.Time
}

// New builds an S3 client from static credentials and wraps it in a MediaStore.
func New(ctx context.Context, cfg Config) (*MediaStore, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return NewMediaStore(client, cfg.Bucket, publicURL), nil
}

// NewMediaStore wraps an existing client.
func NewMediaStore(client objectAPI, bucket, publicURL string) *MediaStore {
	return &MediaStore{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

// Upload stores file under a fresh key below kind and returns its public URL.
func (m *MediaStore) Upload(ctx context.Context, kind string, file domain.Upload) (string, error) {
	start := time.Now()
	defer func() {
		metrics.MediaUploadDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	if file.Body == nil {
		return "", fmt.Errorf("upload %s: empty body", kind)
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	key := m.objectKey(kind, file.Filename)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        file.Body,
		ContentType: aws.String(contentType),
	}
	if file.Size > 0 {
		input.ContentLength = aws.Int64(file.Size)
	}

	if _, err := m.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return m.publicURL + "/" + key, nil
}

// Delete removes the object behind url. URLs outside publicURL are ignored.
func (m *MediaStore) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, m.publicURL+"/")
	if !ok || key == "" {
		return nil
	}

	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// objectKey has the form <kind>/<yyyy>/<mm>/<dd>/<uuid><ext>.
func (m *MediaStore) objectKey(kind, filename string) string {
	d := m.now().UTC()
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s%s", kind, d.Year(), d.Month(), d.Day(), uuid.NewString(), ext)
}
