package face

import "errors"

var (
	// ErrUnknownResolver is returned by ParseResolver for an unknown policy name.
	ErrUnknownResolver = errors.New("face: unknown resolver")

	// ErrStoreClosed is returned when subscribing to a closed store.
	ErrStoreClosed = errors.New("face: store closed")
)
