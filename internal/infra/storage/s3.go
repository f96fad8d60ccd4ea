// Package storage retains uploaded scan archives in object storage
// when configured. Retention is best effort and never fails a scan.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vibescan/api/internal/config"
	"github.com/vibescan/api/pkg/logger"
)

// ArchiveStore uploads scan archives to S3-compatible storage. A nil
// store disables retention.
type ArchiveStore struct {
	client *s3.Client
	bucket string
	log    *logger.Logger
}

// NewArchiveStore creates an ArchiveStore from configuration. Returns
// nil when retention is disabled.
func NewArchiveStore(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (*ArchiveStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required when retention is enabled")
	}

	awsOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Opts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return &ArchiveStore{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		log:    log.With("component", "archive_store"),
	}, nil
}

// StoreArchive uploads one scan's archive bytes. Keys are partitioned
// by date so lifecycle rules can expire old uploads.
func (s *ArchiveStore) StoreArchive(ctx context.Context, scanID string, archive []byte) error {
	if s == nil {
		return nil
	}

	key := fmt.Sprintf("archives/%s/%s.zip", time.Now().UTC().Format("2006/01/02"), scanID)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(archive),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("failed to store archive: %w", err)
	}

	s.log.WithContext(ctx).Debug("archive stored", "key", key, "bytes", len(archive))
	return nil
}
