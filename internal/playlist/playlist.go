// Package playlist renders HLS index documents from segment window
// state. Rendering is pure: the same window state always yields
// byte-identical output, and documents are always rebuilt in full
// rather than patched.
package playlist

import (
	"fmt"
	"strings"

	"github.com/hszk-dev/livecast/internal/domain/model"
)

// Generator produces profile-level and master playlists using the
// configured naming scheme. It carries no mutable state.
type Generator struct {
	// TargetDuration is the declared segment duration in seconds.
	TargetDuration int
	// URLPrefix is prepended to every segment and variant playlist URL.
	URLPrefix string
	// SegmentPrefix is the base name shared by all segment files.
	SegmentPrefix string
	// IndexPrefix is the base name shared by all playlist files.
	IndexPrefix string
}

// SegmentFileName returns the canonical segment file name for a
// profile and sequence number.
func (g Generator) SegmentFileName(profile string, sequence int) string {
	return fmt.Sprintf("%s_%s-%05d.ts", g.SegmentPrefix, profile, sequence)
}

// IndexFileName returns the published playlist name for a profile.
func (g Generator) IndexFileName(profile string) string {
	return fmt.Sprintf("%s_%s.m3u8", g.IndexPrefix, profile)
}

// MasterIndexFileName returns the published master playlist name.
func (g Generator) MasterIndexFileName() string {
	return fmt.Sprintf("%s_multi.m3u8", g.IndexPrefix)
}

// RenderProfile renders the sliding-window playlist for one profile.
func (g Generator) RenderProfile(snap model.WindowSnapshot) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", g.TargetDuration)
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", snap.MediaSequence)

	for _, seg := range snap.Segments {
		fmt.Fprintf(&b, "#EXTINF:%d,\n", seg.Duration)
		b.WriteString(g.URLPrefix)
		b.WriteString(g.SegmentFileName(seg.Profile, seg.Sequence))
		b.WriteString("\n")
	}

	if snap.Ended {
		b.WriteString("#EXT-X-ENDLIST\n")
	}

	return b.String()
}

// RenderMaster renders the multi-rate index: one stream reference per
// profile, in the given order, each pointing at that profile's variant
// playlist.
func (g Generator) RenderMaster(profiles []model.EncodingProfile) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	for _, p := range profiles {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=%d\n", p.Bandwidth)
		b.WriteString(g.URLPrefix)
		b.WriteString(g.IndexFileName(p.Name))
		b.WriteString("\n")
	}

	return b.String()
}
