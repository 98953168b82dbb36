package encoder

import (
	"errors"
	"fmt"
)

// ErrMasterEncoding marks a fatal master transcoder failure. It aborts
// the whole multi-rate run.
var ErrMasterEncoding = errors.New("master encoder failed")

// EncodingError is a per-profile encoding failure. In multi-rate mode
// it affects only that profile's pipeline branch.
type EncodingError struct {
	Profile string
	Err     error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding failed for profile %s: %v", e.Profile, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}
