package repository

import "context"

// Stream states recorded by a StatusStore.
const (
	StreamStateLive  = "live"
	StreamStateEnded = "ended"
)

// StatusStore records per-profile liveness so operators can observe a
// stream without fetching playlists. Updates are advisory; failures
// are logged and never stall publishing.
type StatusStore interface {
	// SetSequence records the newest published segment sequence for a
	// profile and marks the stream live.
	SetSequence(ctx context.Context, profile string, sequence int) error

	// SetEnded marks a profile's stream as ended.
	SetEnded(ctx context.Context, profile string) error
}
