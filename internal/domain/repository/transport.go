package repository

import "context"

// Transport delivers a local file to the configured distribution
// target. Implementations are provided by the infrastructure layer
// (local copy, FTP, SCP, object store) and are selected once at
// startup after a capability probe.
//
// Transports hold no mutable state across calls beyond their static
// configuration; Publish may be called from exactly one worker at a
// time.
type Transport interface {
	// Publish uploads localPath under remoteName inside the target's
	// namespace (directory, remote path or key prefix).
	Publish(ctx context.Context, localPath, remoteName string) error
}
