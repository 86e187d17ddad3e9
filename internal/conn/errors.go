package conn

import "errors"

// ErrUnknownDevice is returned by AcceptController when no seeded device
// matches the requested device_id.
var ErrUnknownDevice = errors.New("conn: unknown device")
