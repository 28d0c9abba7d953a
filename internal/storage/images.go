// Package storage keeps uploaded doctor images in S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// S3API is the subset of the S3 client used by ImageStore.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config locates the bucket. EndpointURL is set for S3-compatible endpoints
// (LocalStack, MinIO) and switches object URLs to path style.
type Config struct {
	Bucket      string
	Region      string
	EndpointURL string
}

// ImageStore uploads doctor images and returns their object URL.
type ImageStore struct {
	client S3API
	cfg    Config
	logger *logging.Logger
	newKey func() string
}

// NewImageStore returns nil when no bucket is configured, which disables uploads.
func NewImageStore(client S3API, cfg Config, logger *logging.Logger) *ImageStore {
	if strings.TrimSpace(cfg.Bucket) == "" || client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg.EndpointURL = strings.TrimRight(strings.TrimSpace(cfg.EndpointURL), "/")
	return &ImageStore{client: client, cfg: cfg, logger: logger, newKey: uuid.NewString}
}

func (s *ImageStore) PutDoctorImage(ctx context.Context, doctorID, contentType string, body io.Reader, size int64) (string, error) {
	if s == nil {
		return "", fmt.Errorf("storage: image store not configured")
	}
	if strings.TrimSpace(doctorID) == "" {
		return "", fmt.Errorf("storage: doctor id required")
	}
	key := fmt.Sprintf("doctors/%s/%s%s", doctorID, s.newKey(), extensionFor(contentType))

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("storage: s3 put %s: %w", key, err)
	}

	objectURL := s.objectURL(key)
	s.logger.Info("stored doctor image", "doctor_id", doctorID, "s3_key", key, "bytes", size)
	return objectURL, nil
}

func (s *ImageStore) objectURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if s.cfg.EndpointURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.cfg.EndpointURL, s.cfg.Bucket, escaped)
	}
	region := s.cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, region, escaped)
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
