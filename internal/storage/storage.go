// Package storage puts résumé attachments into S3 under a derived,
// collision-free key and computes their public URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/thepathwise/intake/internal/config"
)

// ContentType is declared on every stored object.
const ContentType = "application/pdf"

const fallbackBasename = "resume.pdf"

var ErrNotConfigured = errors.New("storage bucket or region not configured")

// ObjectAPI is the subset of the S3 client the uploader uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Object identifies a stored attachment.
type Object struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type Uploader struct {
	api    ObjectAPI
	bucket string
	region string
	prefix string
	logger *slog.Logger
	newID  func() (uuid.UUID, error)
}

func NewUploader(api ObjectAPI, cfg config.StorageConfig, logger *slog.Logger) (*Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" || strings.TrimSpace(cfg.Region) == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Uploader{
		api:    api,
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: prefix,
		logger: logger,
		newID:  uuid.NewV7,
	}, nil
}

// NewS3Client builds an S3 client from the default AWS credential chain.
// A custom endpoint switches to path-style addressing for S3-compatible
// servers.
func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Upload stores the file at path under a key derived from basename. The
// local file is left in place.
func (u *Uploader) Upload(ctx context.Context, path, basename string) (Object, error) {
	key, err := u.DeriveKey(basename)
	if err != nil {
		return Object{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Object{}, fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return Object{}, fmt.Errorf("stat staged file: %w", err)
	}

	if _, err := u.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(ContentType),
	}); err != nil {
		return Object{}, fmt.Errorf("put object %s: %w", key, err)
	}

	u.logger.Info("resume uploaded", "key", key, "bytes", info.Size())
	return Object{Key: key, URL: u.URL(key)}, nil
}

// Delete removes key from the bucket.
func (u *Uploader) Delete(ctx context.Context, key string) error {
	if _, err := u.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// DeriveKey returns prefix + a time-ordered random token + "-" + the
// sanitized basename.
func (u *Uploader) DeriveKey(basename string) (string, error) {
	id, err := u.newID()
	if err != nil {
		return "", fmt.Errorf("generate upload token: %w", err)
	}
	return u.prefix + id.String() + "-" + SanitizeBasename(basename), nil
}

// URL is the virtual-hosted S3 URL for key.
func (u *Uploader) URL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key)
}

// SanitizeBasename strips any client path and replaces characters outside
// [A-Za-z0-9._-] with '_'.
func SanitizeBasename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if strings.Trim(out, "_") == "" {
		return fallbackBasename
	}
	return out
}
