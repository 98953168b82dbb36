package model

import "errors"

var (
	// ErrWindowClosed is returned when a segment arrives for a profile
	// whose stream has already ended.
	ErrWindowClosed = errors.New("segment window closed")

	// ErrSequenceGap is returned when a segment's sequence number does
	// not directly follow the newest retained segment.
	ErrSequenceGap = errors.New("segment sequence gap")

	// ErrMalformedEvent is returned when a segmenter progress line does
	// not carry a valid event tuple.
	ErrMalformedEvent = errors.New("malformed segment event")
)
