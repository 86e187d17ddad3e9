// Package device holds the authoritative state of every door and the
// append-only access-event log behind a single serialization point.
//
// Every mutation — a device patch, an event append, or both together for one
// access attempt — is applied while holding the Store's mutex for the whole
// operation, so a caller's "read current state, decide, write" sequence is
// atomic with respect to every other caller. Committed state changes and
// access events are handed synchronously, inside that same critical section,
// to an EventSink so broadcast order always matches commit order.
//
// # Thread Safety
//
// All Store methods are safe for concurrent use from multiple goroutines.
package device
