package sweeper

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeFile(t *testing.T, dir, name, content string, modTime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatalf("failed to set mtime on %s: %v", name, err)
		}
	}
}

const playlist = `#EXTM3U
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:3
#EXTINF:10,
http://cdn.example.com/sample_low-00003.ts
#EXTINF:10,
http://cdn.example.com/sample_low-00004.ts
#EXTINF:10,
http://cdn.example.com/sample_low-00005.ts
`

func TestSweepProfile(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)

	// Segments 1 and 2 rolled out of the window; 3 through 5 are live.
	for seq, offset := range map[string]time.Duration{
		"sample_low-00001.ts": 0,
		"sample_low-00002.ts": 10 * time.Second,
		"sample_low-00003.ts": 20 * time.Second,
		"sample_low-00004.ts": 30 * time.Second,
		"sample_low-00005.ts": 40 * time.Second,
	} {
		writeFile(t, dir, seq, "segment", base.Add(offset))
	}
	writeFile(t, dir, "stream_low.m3u8", playlist, time.Time{})

	s := New(dir, discardLogger())
	if err := s.SweepProfile("stream_low.m3u8"); err != nil {
		t.Fatalf("SweepProfile failed: %v", err)
	}

	for _, name := range []string{"sample_low-00001.ts", "sample_low-00002.ts"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s should have been removed, stat err = %v", name, err)
		}
	}
	for _, name := range []string{"sample_low-00003.ts", "sample_low-00004.ts", "sample_low-00005.ts", "stream_low.m3u8"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s should have been kept: %v", name, err)
		}
	}
}

func TestSweepProfile_OnlyTouchesSegmentFiles(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-time.Hour)

	writeFile(t, dir, "sample_low-00001.ts", "segment", old)
	writeFile(t, dir, "sample_low-00003.ts", "segment", time.Now())
	writeFile(t, dir, "notes.txt", "unrelated", old)
	writeFile(t, dir, "stream_high.m3u8", "#EXTM3U\n", old)

	content := `#EXTM3U
#EXTINF:10,
sample_low-00003.ts
`
	writeFile(t, dir, "stream_low.m3u8", content, time.Time{})

	s := New(dir, discardLogger())
	if err := s.SweepProfile("stream_low.m3u8"); err != nil {
		t.Fatalf("SweepProfile failed: %v", err)
	}

	for _, name := range []string{"notes.txt", "stream_high.m3u8"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s should not have been touched: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "sample_low-00001.ts")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("old segment should have been removed, stat err = %v", err)
	}
}

func TestSweepProfile_EmptyPlaylist(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stream_low.m3u8", "#EXTM3U\n#EXT-X-TARGETDURATION:10\n", time.Time{})

	s := New(dir, discardLogger())
	err := s.SweepProfile("stream_low.m3u8")
	if !errors.Is(err, ErrNoSegments) {
		t.Errorf("SweepProfile = %v, want ErrNoSegments", err)
	}
}

func TestSweepProfile_MissingPlaylist(t *testing.T) {
	s := New(t.TempDir(), discardLogger())
	err := s.SweepProfile("stream_low.m3u8")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("SweepProfile = %v, want wrapped os.ErrNotExist", err)
	}
}

func TestOldestListedSegment_StripsURLPrefix(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.m3u8", playlist, time.Time{})

	got, err := oldestListedSegment(filepath.Join(dir, "index.m3u8"))
	if err != nil {
		t.Fatalf("oldestListedSegment failed: %v", err)
	}
	if got != "sample_low-00003.ts" {
		t.Errorf("oldest = %q, want sample_low-00003.ts", got)
	}
}
