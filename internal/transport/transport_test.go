package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hszk-dev/livecast/internal/config"
	"github.com/hszk-dev/livecast/internal/domain/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(context.Background(), config.TransferConfig{Kind: "carrier-pigeon"}, testLogger())
	if !errors.Is(err, repository.ErrUnknownTransferKind) {
		t.Errorf("New with unknown kind = %v, want ErrUnknownTransferKind", err)
	}
}

func TestNew_CopyKind(t *testing.T) {
	tr, err := New(context.Background(), config.TransferConfig{
		Kind:      "copy",
		Directory: t.TempDir(),
	}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := tr.(*CopyTransport); !ok {
		t.Errorf("New returned %T, want *CopyTransport", tr)
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		name string
		file string
		want string
	}{
		{"playlist", "stream_low.m3u8", "application/vnd.apple.mpegurl"},
		{"master playlist", "stream_multi.m3u8", "application/vnd.apple.mpegurl"},
		{"segment", "sample_low-00001.ts", "video/MP2T"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := contentTypeFor(tt.file); got != tt.want {
				t.Errorf("contentTypeFor(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}
