package repository

import "errors"

var (
	// ErrUnknownTransferKind is returned when configuration selects a
	// transfer backend this build does not know.
	ErrUnknownTransferKind = errors.New("unknown transfer kind")

	// ErrTransportUnavailable is returned by the startup capability
	// probe when the selected backend cannot be reached.
	ErrTransportUnavailable = errors.New("transport unavailable")
)
