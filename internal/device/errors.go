package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrRefreshFailed) {
//	    // previous snapshot is still in place
//	}
var (
	// ErrRefreshFailed is returned when the device list could not be fetched.
	// The registry keeps serving the previous snapshot.
	ErrRefreshFailed = errors.New("device: refresh failed")

	// ErrDeviceNotFound is returned when a device id or name is not known.
	ErrDeviceNotFound = errors.New("device: not found")
)
