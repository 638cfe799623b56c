package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

// MinioArchiveMirror uploads finalized archives to S3-compatible storage
type MinioArchiveMirror struct {
	client *minio.Client
	config domain.MirrorConfig
	logger *zap.Logger
}

// NewMinioArchiveMirror connects to the configured bucket and checks it exists
func NewMinioArchiveMirror(ctx context.Context, config domain.MirrorConfig, logger *zap.Logger) (*MinioArchiveMirror, error) {
	if config.Endpoint == "" || config.Bucket == "" {
		return nil, fmt.Errorf("mirror endpoint and bucket must be set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	endpoint := config.Endpoint
	secure := config.UseSSL
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = strings.TrimPrefix(endpoint, "https://")
		secure = true
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = strings.TrimPrefix(endpoint, "http://")
		secure = false
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure:       secure,
		Region:       config.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", config.Bucket)
	}

	return &MinioArchiveMirror{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// ObjectKey returns the key an archive is stored under
func (m *MinioArchiveMirror) ObjectKey(archiveName string) string {
	return path.Join(m.config.Prefix, archiveName)
}

// Upload stores the archive and returns its s3:// location
func (m *MinioArchiveMirror) Upload(ctx context.Context, archive *domain.Archive) (string, error) {
	key := m.ObjectKey(archive.Name)
	_, err := m.client.PutObject(ctx, m.config.Bucket, key,
		bytes.NewReader(archive.Data), archive.Size(),
		minio.PutObjectOptions{ContentType: "application/zip"})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive to mirror: %w", err)
	}

	m.logger.Info("Archive mirrored",
		zap.String("bucket", m.config.Bucket),
		zap.String("key", key),
		zap.Int64("size", archive.Size()))
	return fmt.Sprintf("s3://%s/%s", m.config.Bucket, key), nil
}

// Exists checks whether an archive is already mirrored
func (m *MinioArchiveMirror) Exists(ctx context.Context, archiveName string) bool {
	_, err := m.client.StatObject(ctx, m.config.Bucket, m.ObjectKey(archiveName), minio.StatObjectOptions{})
	return err == nil
}
