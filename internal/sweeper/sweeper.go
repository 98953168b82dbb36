// Package sweeper removes published segment files that have rolled out
// of the playlist window. It consumes only the published playlist; the
// oldest segment a playlist still advertises defines the retention
// cutoff.
package sweeper

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNoSegments is returned when a playlist advertises no segments.
var ErrNoSegments = errors.New("playlist lists no segments")

// Sweeper deletes out-of-window segments from a published stream
// directory. It only works against a copy transport's destination;
// remote targets handle retention with their own lifecycle rules.
type Sweeper struct {
	directory string
	logger    *slog.Logger
}

// New creates a sweeper for the given published directory.
func New(directory string, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		directory: directory,
		logger:    logger,
	}
}

// SweepProfile reads the published playlist with the given file name
// and deletes every segment file older than the oldest segment the
// playlist still lists.
func (s *Sweeper) SweepProfile(indexName string) error {
	oldest, err := oldestListedSegment(filepath.Join(s.directory, indexName))
	if err != nil {
		return err
	}

	info, err := os.Stat(filepath.Join(s.directory, oldest))
	if err != nil {
		return fmt.Errorf("failed to stat oldest listed segment: %w", err)
	}

	return s.purgeOlderThan(info, oldest)
}

// oldestListedSegment returns the file name of the first segment entry
// in the playlist. Entry URLs may carry a remote prefix; only the base
// name matters here.
func oldestListedSegment(indexPath string) (string, error) {
	f, err := os.Open(indexPath)
	if err != nil {
		return "", fmt.Errorf("failed to open playlist: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	expectURI := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if expectURI && line != "" && !strings.HasPrefix(line, "#") {
			return path.Base(line), nil
		}
		expectURI = strings.HasPrefix(line, "#EXTINF:")
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}
	return "", fmt.Errorf("%w: %s", ErrNoSegments, indexPath)
}

// purgeOlderThan deletes every .ts file modified before the cutoff
// segment.
func (s *Sweeper) purgeOlderThan(cutoff os.FileInfo, keep string) error {
	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return fmt.Errorf("failed to read stream directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".ts") || name == keep {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff.ModTime()) {
			if err := os.Remove(filepath.Join(s.directory, name)); err != nil {
				s.logger.Warn("failed to remove segment", slog.String("file", name), slog.String("error", err.Error()))
				continue
			}
			s.logger.Debug("purged segment", slog.String("file", name))
			removed++
		}
	}

	s.logger.Info("sweep complete",
		slog.String("directory", s.directory),
		slog.Int("removed", removed),
	)
	return nil
}
