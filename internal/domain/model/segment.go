package model

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodingProfile describes one target encoding. Profiles are loaded once
// from configuration and never mutated afterwards.
type EncodingProfile struct {
	// Name identifies the profile (e.g. "low", "high") and is embedded in
	// segment and playlist file names.
	Name string
	// Bandwidth is the declared target bandwidth in bits per second,
	// advertised in the master playlist.
	Bandwidth int
	// Command is the transcode command template for this profile.
	Command string
}

// Segment is one bounded-duration chunk of the transcoded stream.
// Segments are created by the segmenter subprocess, referenced by the
// playlist generator and deleted by the publish worker after upload.
type Segment struct {
	Profile  string
	Sequence int
	// Duration is the segment length in seconds.
	Duration int
	// Path is the on-disk location of the segment file.
	Path string
}

// SegmentEvent is the atomic unit flowing from the encoder to the
// publish queue: a closed range of finished segments for one profile.
type SegmentEvent struct {
	Profile string
	First   int
	Last    int
	// End reports the segmenter saw end of stream; no further events
	// for this profile follow.
	End bool
}

// ParseSegmentEvent parses the payload of a segmenter progress line.
// The payload is a comma-separated tuple:
//
//	<first segment>, <last segment>, <stream end 0/1>, <profile or empty>
func ParseSegmentEvent(payload string) (SegmentEvent, error) {
	parts := strings.Split(payload, ",")
	if len(parts) != 4 {
		return SegmentEvent{}, fmt.Errorf("%w: %q", ErrMalformedEvent, payload)
	}

	first, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return SegmentEvent{}, fmt.Errorf("%w: first segment in %q", ErrMalformedEvent, payload)
	}
	last, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return SegmentEvent{}, fmt.Errorf("%w: last segment in %q", ErrMalformedEvent, payload)
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return SegmentEvent{}, fmt.Errorf("%w: end flag in %q", ErrMalformedEvent, payload)
	}

	return SegmentEvent{
		Profile: strings.TrimSpace(parts[3]),
		First:   first,
		Last:    last,
		End:     end == 1,
	}, nil
}
