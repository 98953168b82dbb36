package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hszk-dev/livecast/internal/config"
	"github.com/hszk-dev/livecast/internal/domain/repository"
)

// CopyTransport publishes into a local directory. It is the backend
// the retention sweeper consumes from.
type CopyTransport struct {
	directory string
	logger    *slog.Logger
}

var _ repository.Transport = (*CopyTransport)(nil)

// NewCopyTransport verifies the destination directory is writable.
func NewCopyTransport(cfg config.TransferConfig, logger *slog.Logger) (*CopyTransport, error) {
	info, err := os.Stat(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrTransportUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", repository.ErrTransportUnavailable, cfg.Directory)
	}

	return &CopyTransport{
		directory: cfg.Directory,
		logger:    logger,
	}, nil
}

// Publish copies localPath into the destination directory under
// remoteName. The copy goes through a temp name and a rename so a
// concurrent playlist reader never sees a partial file.
func (t *CopyTransport) Publish(ctx context.Context, localPath, remoteName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	dest := filepath.Join(t.directory, remoteName)
	tmp, err := os.CreateTemp(t.directory, ".publish-*")
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to flush destination: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to move into place: %w", err)
	}

	t.logger.Debug("published file",
		slog.String("transport", "copy"),
		slog.String("destination", dest),
	)
	return nil
}
