// Package archive copies rendered invoice summaries to S3-compatible object storage.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config holds S3 settings.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string // optional custom endpoint (MinIO, LocalStack)
	Prefix   string // optional key prefix, e.g. "invoices/"
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive uploads files to one bucket.
type S3Archive struct {
	client putter
	bucket string
	prefix string
}

// NewS3 loads the default AWS configuration and returns an archive for cfg.Bucket.
func NewS3(ctx context.Context, cfg Config) (*S3Archive, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Archive{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Archive uploads the file at path under prefix + invoiceID + ".pdf" and
// returns the object key.
func (a *S3Archive) Archive(ctx context.Context, invoiceID, path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the renderer
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = f.Close() }()

	key := a.prefix + invoiceID + ".pdf"
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return key, nil
}
