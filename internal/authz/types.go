package authz

import "github.com/doorguard/core/internal/device"

// DispatchOutcome is the result of handing a command to a physical
// device's controller session.
type DispatchOutcome string

const (
	DispatchDelivered    DispatchOutcome = "delivered"
	DispatchNotConnected DispatchOutcome = "not_connected"
)

// Dispatcher sends commands to a physical device's controller session.
// Dispatch must not block waiting for the device's confirmation; it
// reports only whether the send itself succeeded. Implementations must
// never call back into the device Store, since Dispatch is invoked while
// the Store's commit lock is held.
type Dispatcher interface {
	Dispatch(deviceID string, command device.Command) DispatchOutcome

	// SendDenied best-effort notifies the controller that a
	// physical-button request was refused, so the device can suppress
	// local actuation. It is called outside the Store's lock and never
	// affects the access-log outcome.
	SendDenied(deviceID string, command device.Command, reason string)
}

// physicalButtonUserID is the literal user_id a controller session uses
// when relaying a button press as an access attempt.
const physicalButtonUserID = "physical_button"
