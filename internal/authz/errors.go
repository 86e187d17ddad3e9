package authz

import "errors"

// ErrUnknownCommand is returned by Process when asked to evaluate a
// command outside {open, close, lock, unlock}. It is a validation error,
// not an authorization denial, so callers must report it without
// recording an access event.
var ErrUnknownCommand = errors.New("authz: unknown command")
