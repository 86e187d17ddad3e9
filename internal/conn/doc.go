// Package conn is the Connection Registry: it tracks every dashboard
// observer session and the single controller session allowed per physical
// device, drives the heartbeat state machine that detects dead controllers,
// and fans committed state changes and access events out to observers.
//
// Registry implements both authz.Dispatcher (sending commands to a
// controller) and device.EventSink (broadcasting commits), so it sits
// between the device Store and the HTTP/WebSocket ingress surface without
// either side depending on the other's transport details. The Conn
// interface is the only thing a caller needs to supply per session; the
// registry never imports net/http or gorilla/websocket.
//
// # Non-blocking sends
//
// device.Store invokes OnStateChange and OnAccessEvent synchronously, while
// holding its commit mutex, and authz.Engine invokes Dispatch the same way.
// Every send in this package is therefore required to return immediately:
// Conn implementations must buffer and hand off to their own write loop
// rather than blocking on network I/O inline.
//
// # Thread safety
//
// All Registry methods are safe for concurrent use from multiple
// goroutines.
package conn
