package device

import "errors"

// Sentinel errors for Store operations. Check with errors.Is.
var (
	// ErrDeviceNotFound is returned by ApplyAccess and the connection-status
	// setters when device_id does not name a seeded device.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDuplicateDeviceID is returned by NewStore when the seed list
	// contains the same device_id more than once.
	ErrDuplicateDeviceID = errors.New("device: duplicate device_id in seed")

	// ErrInvalidSeed is returned by NewStore for a seed record with an
	// empty device_id or an unrecognised kind.
	ErrInvalidSeed = errors.New("device: invalid seed record")
)
