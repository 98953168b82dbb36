package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/hszk-dev/livecast/internal/config"
	"github.com/hszk-dev/livecast/internal/domain/repository"
)

const sshDialTimeout = 10 * time.Second

// SCPTransport publishes over SSH using the SFTP subsystem. Like the
// FTP backend it authenticates per call; sessions are cheap relative
// to the segment cadence.
//
// TODO: support known_hosts verification; host keys are currently not
// checked, which is only acceptable on trusted networks.
type SCPTransport struct {
	addr      string
	directory string
	sshConfig *ssh.ClientConfig
	logger    *slog.Logger
}

var _ repository.Transport = (*SCPTransport)(nil)

// NewSCPTransport probes the server with an SSH handshake so bad hosts
// or credentials fail at startup.
func NewSCPTransport(cfg config.TransferConfig, logger *slog.Logger) (*SCPTransport, error) {
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	t := &SCPTransport{
		addr:      fmt.Sprintf("%s:%d", cfg.RemoteHost, port),
		directory: cfg.Directory,
		sshConfig: &ssh.ClientConfig{
			User:            cfg.UserName,
			Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         sshDialTimeout,
		},
		logger: logger,
	}

	conn, err := ssh.Dial("tcp", t.addr, t.sshConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrTransportUnavailable, err)
	}
	_ = conn.Close()

	return t, nil
}

// Publish uploads localPath as remoteName inside the configured
// remote directory.
func (t *SCPTransport) Publish(ctx context.Context, localPath, remoteName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := ssh.Dial("tcp", t.addr, t.sshConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", t.addr, err)
	}
	defer conn.Close()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return fmt.Errorf("failed to open sftp session: %w", err)
	}
	defer client.Close()

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	dest := path.Join(t.directory, remoteName)
	remote, err := client.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if _, err := io.Copy(remote, src); err != nil {
		_ = remote.Close()
		return fmt.Errorf("failed to upload %s: %w", dest, err)
	}
	if err := remote.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", dest, err)
	}

	t.logger.Debug("published file",
		slog.String("transport", "scp"),
		slog.String("destination", dest),
	)
	return nil
}
