package gateway

import "errors"

var (
	// ErrUnresolvedDevice is returned when a command names a device the
	// registry does not know.
	ErrUnresolvedDevice = errors.New("gateway: unresolved device")

	// ErrInvalidPayload is returned when a command payload is not usable
	// text (invalid UTF-8 or empty after trimming).
	ErrInvalidPayload = errors.New("gateway: invalid command payload")

	// ErrAlreadyStarted is returned by Start on a running gateway.
	ErrAlreadyStarted = errors.New("gateway: already started")
)
