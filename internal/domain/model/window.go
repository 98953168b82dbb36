package model

import "fmt"

// SegmentWindow holds the most recent segments of one profile, bounded
// by the configured index depth. It is owned exclusively by the publish
// worker; there is no internal locking.
//
// Invariants:
//   - sequence numbers are strictly increasing and contiguous
//   - the window never holds more than depth entries
//   - once closed, no further segments are admitted
type SegmentWindow struct {
	profile  string
	depth    int
	segments []Segment
	closed   bool
}

// WindowSnapshot is an immutable view of a SegmentWindow, suitable for
// rendering a playlist.
type WindowSnapshot struct {
	Profile       string
	Segments      []Segment
	MediaSequence int
	Ended         bool
}

// NewSegmentWindow creates an empty window for the given profile.
// Depth must be at least 1.
func NewSegmentWindow(profile string, depth int) *SegmentWindow {
	if depth < 1 {
		depth = 1
	}
	return &SegmentWindow{
		profile: profile,
		depth:   depth,
	}
}

// Admit appends a finished segment, evicting the oldest entry when the
// window would exceed its depth. Segments must arrive in sequence order
// with no gaps.
func (w *SegmentWindow) Admit(seg Segment) error {
	if w.closed {
		return fmt.Errorf("%w: profile %s", ErrWindowClosed, w.profile)
	}
	if n := len(w.segments); n > 0 {
		prev := w.segments[n-1].Sequence
		if seg.Sequence != prev+1 {
			return fmt.Errorf("%w: profile %s got %d after %d", ErrSequenceGap, w.profile, seg.Sequence, prev)
		}
	}

	w.segments = append(w.segments, seg)
	if len(w.segments) > w.depth {
		w.segments = w.segments[1:]
	}
	return nil
}

// Close marks the end of the stream. The window admits nothing more and
// renders with a terminal marker from now on.
func (w *SegmentWindow) Close() {
	w.closed = true
}

// Closed reports whether the stream has ended for this profile.
func (w *SegmentWindow) Closed() bool {
	return w.closed
}

// Len returns the number of segments currently retained.
func (w *SegmentWindow) Len() int {
	return len(w.segments)
}

// Newest returns the most recently admitted segment.
func (w *SegmentWindow) Newest() (Segment, bool) {
	if len(w.segments) == 0 {
		return Segment{}, false
	}
	return w.segments[len(w.segments)-1], true
}

// MediaSequence returns the sequence number of the oldest retained
// segment once the window is full, and 1 while it is still filling.
func (w *SegmentWindow) MediaSequence() int {
	if len(w.segments) < w.depth {
		return 1
	}
	return w.segments[0].Sequence
}

// Snapshot copies the window state for rendering.
func (w *SegmentWindow) Snapshot() WindowSnapshot {
	segs := make([]Segment, len(w.segments))
	copy(segs, w.segments)
	return WindowSnapshot{
		Profile:       w.profile,
		Segments:      segs,
		MediaSequence: w.MediaSequence(),
		Ended:         w.closed,
	}
}
