package model

import (
	"errors"
	"testing"
)

func admit(t *testing.T, w *SegmentWindow, sequences ...int) {
	t.Helper()
	for _, seq := range sequences {
		err := w.Admit(Segment{Profile: "test", Sequence: seq, Duration: 10})
		if err != nil {
			t.Fatalf("Admit(%d) failed: %v", seq, err)
		}
	}
}

func TestSegmentWindow_DepthBound(t *testing.T) {
	w := NewSegmentWindow("test", 3)
	admit(t, w, 1, 2, 3, 4, 5)

	if w.Len() != 3 {
		t.Errorf("Len() = %d, want 3", w.Len())
	}

	snap := w.Snapshot()
	want := []int{3, 4, 5}
	for i, seg := range snap.Segments {
		if seg.Sequence != want[i] {
			t.Errorf("segment %d sequence = %d, want %d", i, seg.Sequence, want[i])
		}
	}
}

func TestSegmentWindow_ContiguousSequences(t *testing.T) {
	w := NewSegmentWindow("test", 3)
	admit(t, w, 1, 2)

	err := w.Admit(Segment{Profile: "test", Sequence: 5, Duration: 10})
	if !errors.Is(err, ErrSequenceGap) {
		t.Errorf("Admit with gap = %v, want ErrSequenceGap", err)
	}

	if w.Len() != 2 {
		t.Errorf("Len() after rejected admit = %d, want 2", w.Len())
	}
}

func TestSegmentWindow_MediaSequence(t *testing.T) {
	tests := []struct {
		name      string
		depth     int
		sequences []int
		want      int
	}{
		{"empty window", 3, nil, 1},
		{"underfilled window", 3, []int{1, 2}, 1},
		{"exactly full", 3, []int{1, 2, 3}, 1},
		{"rolled past depth", 3, []int{1, 2, 3, 4}, 2},
		{"long stream", 3, []int{1, 2, 3, 4, 5, 6, 7}, 5},
		{"depth one", 1, []int{1, 2, 3}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewSegmentWindow("test", tt.depth)
			admit(t, w, tt.sequences...)

			if got := w.MediaSequence(); got != tt.want {
				t.Errorf("MediaSequence() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSegmentWindow_CloseRejectsFurtherSegments(t *testing.T) {
	w := NewSegmentWindow("test", 3)
	admit(t, w, 1, 2)
	w.Close()

	if !w.Closed() {
		t.Fatal("Closed() = false after Close")
	}

	err := w.Admit(Segment{Profile: "test", Sequence: 3, Duration: 10})
	if !errors.Is(err, ErrWindowClosed) {
		t.Errorf("Admit after Close = %v, want ErrWindowClosed", err)
	}

	snap := w.Snapshot()
	if !snap.Ended {
		t.Error("Snapshot().Ended = false, want true")
	}
	if len(snap.Segments) != 2 {
		t.Errorf("Snapshot() holds %d segments, want 2", len(snap.Segments))
	}
}

func TestSegmentWindow_Newest(t *testing.T) {
	w := NewSegmentWindow("test", 3)

	if _, ok := w.Newest(); ok {
		t.Error("Newest() on empty window reported a segment")
	}

	admit(t, w, 1, 2, 3, 4)
	newest, ok := w.Newest()
	if !ok || newest.Sequence != 4 {
		t.Errorf("Newest() = %v, %v, want sequence 4", newest, ok)
	}
}

func TestSegmentWindow_SnapshotIsACopy(t *testing.T) {
	w := NewSegmentWindow("test", 3)
	admit(t, w, 1, 2, 3)

	snap := w.Snapshot()
	snap.Segments[0].Sequence = 99

	if w.Snapshot().Segments[0].Sequence != 1 {
		t.Error("mutating a snapshot changed the window")
	}
}
