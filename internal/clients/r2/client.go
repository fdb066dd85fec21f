// Package r2 uploads objects to Cloudflare R2 (or any S3-compatible store).
package r2

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Config holds R2 connection settings
type Config struct {
	Endpoint        string // e.g. https://<account>.r2.cloudflarestorage.com
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// Enabled reports whether every setting needed for uploads is present
func (c Config) Enabled() bool {
	return c.Endpoint != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Bucket != ""
}

// R2Client uploads objects to one bucket
type R2Client struct {
	client *s3.Client
	bucket string
	log    zerolog.Logger
}

// NewR2Client creates a client for cfg.Bucket
func NewR2Client(cfg Config, log zerolog.Logger) (*R2Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("r2: endpoint, credentials and bucket are required")
	}

	client := s3.New(s3.Options{
		Region:       "auto",
		BaseEndpoint: aws.String(cfg.Endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle: true,
		// R2 rejects the streaming checksum trailers newer SDKs send by default
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})

	return &R2Client{
		client: client,
		bucket: cfg.Bucket,
		log:    log.With().Str("client", "r2").Logger(),
	}, nil
}

// Upload stores data under key, replacing any existing object
func (c *R2Client) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to r2: %w", key, err)
	}

	c.log.Debug().
		Str("bucket", c.bucket).
		Str("key", key).
		Int("bytes", len(data)).
		Msg("Uploaded object")
	return nil
}
