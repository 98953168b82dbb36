package repository

import (
	"context"
	"time"
)

// PublishNotice describes one completed publish, fanned out to
// downstream consumers (retention sweepers, analytics).
type PublishNotice struct {
	Profile     string    `json:"profile"`
	First       int       `json:"first_segment"`
	Last        int       `json:"last_segment"`
	StreamEnd   bool      `json:"stream_end"`
	PublishedAt time.Time `json:"published_at"`
}

// Notifier broadcasts publish completions to interested systems.
// Implementations must be safe for use from the single publish worker;
// failures are advisory and never stall the pipeline.
type Notifier interface {
	SegmentPublished(ctx context.Context, notice PublishNotice) error
	Close() error
}
