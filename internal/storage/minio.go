package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/config"
)

// MinIOStore stores attachments in an S3-compatible bucket.
type MinIOStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *zap.Logger
}

// NewMinIOStore connects and creates the bucket when missing.
func NewMinIOStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		logger.Info("bucket created", zap.String("bucket", cfg.Bucket))
	}

	return &MinIOStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		logger:    logger,
	}, nil
}

// Put uploads body under name. The reference is a public URL when one is
// configured, otherwise bucket/name.
func (m *MinIOStore) Put(ctx context.Context, name, contentType string, body io.Reader, size int64) (string, error) {
	info, err := m.client.PutObject(ctx, m.bucket, name, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	m.logger.Info("attachment uploaded",
		zap.String("bucket", m.bucket),
		zap.String("key", info.Key),
		zap.Int64("size", info.Size))
	return m.reference(name), nil
}

// Remove deletes the object behind ref.
func (m *MinIOStore) Remove(ctx context.Context, ref string) error {
	key, ok := m.objectKey(ref)
	if !ok {
		return fmt.Errorf("reference %q does not belong to bucket %s", ref, m.bucket)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (m *MinIOStore) reference(name string) string {
	if m.publicURL != "" {
		return m.publicURL + "/" + m.bucket + "/" + name
	}
	return m.bucket + "/" + name
}

func (m *MinIOStore) objectKey(ref string) (string, bool) {
	prefix := m.bucket + "/"
	if m.publicURL != "" {
		prefix = m.publicURL + "/" + prefix
	}
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	return strings.TrimPrefix(ref, prefix), true
}
