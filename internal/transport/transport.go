// Package transport implements the publish backends: local copy, FTP,
// SCP and object store. The backend is selected once at startup; every
// constructor probes its target so that an unusable backend fails the
// process before any media work begins.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hszk-dev/livecast/internal/config"
	"github.com/hszk-dev/livecast/internal/domain/repository"
)

// Content types set on published files. Playlists use the HLS manifest
// type, everything else is treated as a transport stream segment.
const (
	contentTypeManifest = "application/vnd.apple.mpegurl"
	contentTypeSegment  = "video/MP2T"
)

// New builds the transport selected by the transfer config and probes
// its availability. An unknown or unreachable backend is a startup
// error, never a runtime one.
func New(ctx context.Context, cfg config.TransferConfig, logger *slog.Logger) (repository.Transport, error) {
	switch cfg.Kind {
	case "copy":
		return NewCopyTransport(cfg, logger)
	case "ftp":
		return NewFTPTransport(ctx, cfg, logger)
	case "scp":
		return NewSCPTransport(cfg, logger)
	case "s3":
		return NewS3Transport(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %q", repository.ErrUnknownTransferKind, cfg.Kind)
	}
}

// contentTypeFor maps a published file name to its content type.
func contentTypeFor(name string) string {
	if strings.HasSuffix(name, ".m3u8") {
		return contentTypeManifest
	}
	return contentTypeSegment
}
