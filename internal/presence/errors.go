package presence

import "errors"

var (
	// ErrMalformedDiscovery is returned by DecodeDiscovery for payloads
	// that are not a list of discovery records.
	ErrMalformedDiscovery = errors.New("presence: malformed discovery payload")

	// ErrCallerUnknown means the caller's address is not in the current
	// snapshot, so its device cannot be identified yet.
	ErrCallerUnknown = errors.New("presence: caller not in discovery snapshot")
)
