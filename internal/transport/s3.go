package transport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hszk-dev/livecast/internal/config"
	"github.com/hszk-dev/livecast/internal/domain/repository"
)

// s3Client defines the object store operations this transport needs.
// This abstraction allows for easier unit testing with mocks.
type s3Client interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Transport publishes into an object store bucket. Published objects
// are world-readable: segments and playlists are meant to be fetched
// by players directly.
type S3Transport struct {
	client    s3Client
	bucket    string
	keyPrefix string
	logger    *slog.Logger
}

var _ repository.Transport = (*S3Transport)(nil)

// NewS3Transport creates the object store transport and verifies the
// bucket exists to fail fast on misconfiguration.
func NewS3Transport(ctx context.Context, cfg config.TransferConfig, logger *slog.Logger) (*S3Transport, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	return newS3TransportWithClient(ctx, client, cfg, logger)
}

// newS3TransportWithClient builds the transport around a given client.
// This is used for dependency injection in tests.
func newS3TransportWithClient(ctx context.Context, client s3Client, cfg config.TransferConfig, logger *slog.Logger) (*S3Transport, error) {
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrTransportUnavailable, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: bucket %s not found", repository.ErrTransportUnavailable, cfg.Bucket)
	}

	return &S3Transport{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger,
	}, nil
}

// Publish uploads localPath under the configured key prefix. Playlists
// and segments get their respective content types so players receive
// the right MIME type straight from the store.
func (t *S3Transport) Publish(ctx context.Context, localPath, remoteName string) error {
	if _, err := os.Stat(localPath); err != nil {
		return fmt.Errorf("failed to access source: %w", err)
	}

	key := path.Join(t.keyPrefix, remoteName)
	_, err := t.client.FPutObject(ctx, t.bucket, key, localPath, minio.PutObjectOptions{
		ContentType:  contentTypeFor(remoteName),
		UserMetadata: map[string]string{"x-amz-acl": "public-read"},
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}

	t.logger.Debug("published file",
		slog.String("transport", "s3"),
		slog.String("bucket", t.bucket),
		slog.String("key", key),
	)
	return nil
}
