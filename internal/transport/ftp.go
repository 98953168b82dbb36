package transport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/hszk-dev/livecast/internal/config"
	"github.com/hszk-dev/livecast/internal/domain/repository"
)

const ftpDialTimeout = 10 * time.Second

// FTPTransport publishes over FTP. Each publish opens a fresh session;
// publish frequency is bounded by the segment duration, so the login
// cost is acceptable and no connection state can go stale between
// segments.
type FTPTransport struct {
	addr      string
	user      string
	password  string
	directory string
	logger    *slog.Logger
}

var _ repository.Transport = (*FTPTransport)(nil)

// NewFTPTransport probes the server with a full login round-trip so a
// bad host or credential fails at startup.
func NewFTPTransport(ctx context.Context, cfg config.TransferConfig, logger *slog.Logger) (*FTPTransport, error) {
	port := cfg.Port
	if port == 0 {
		port = 21
	}
	t := &FTPTransport{
		addr:      fmt.Sprintf("%s:%d", cfg.RemoteHost, port),
		user:      cfg.UserName,
		password:  cfg.Password,
		directory: cfg.Directory,
		logger:    logger,
	}

	conn, err := t.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrTransportUnavailable, err)
	}
	_ = conn.Quit()

	return t, nil
}

func (t *FTPTransport) dial(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(t.addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(ftpDialTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", t.addr, err)
	}
	if err := conn.Login(t.user, t.password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("failed to log in: %w", err)
	}
	return conn, nil
}

// Publish uploads localPath as remoteName inside the configured
// directory.
func (t *FTPTransport) Publish(ctx context.Context, localPath, remoteName string) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Quit() }()

	if t.directory != "" {
		if err := conn.ChangeDir(t.directory); err != nil {
			return fmt.Errorf("failed to change directory: %w", err)
		}
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	if err := conn.Stor(remoteName, src); err != nil {
		return fmt.Errorf("failed to store %s: %w", remoteName, err)
	}

	t.logger.Debug("published file",
		slog.String("transport", "ftp"),
		slog.String("destination", remoteName),
	)
	return nil
}
