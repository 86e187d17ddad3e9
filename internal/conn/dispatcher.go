package conn

import (
	"github.com/doorguard/core/internal/authz"
	"github.com/doorguard/core/internal/device"
)

// Dispatch implements authz.Dispatcher. It is invoked while the device
// Store's commit lock is held, so it only looks up the controller session
// and hands off a non-blocking write; it never waits for the device's
// confirmation.
func (r *Registry) Dispatch(deviceID string, command device.Command) authz.DispatchOutcome {
	r.mu.RLock()
	sess, ok := r.controllers[deviceID]
	r.mu.RUnlock()
	if !ok {
		return authz.DispatchNotConnected
	}

	msg := controllerCommandMessage{
		Type:      "command",
		Command:   string(command),
		Timestamp: r.timestamp(),
	}
	if err := sess.Send(msg); err != nil {
		r.logger.Debug("dispatch send failed", "device_id", deviceID, "error", err)
		return authz.DispatchNotConnected
	}
	return authz.DispatchDelivered
}

// SendDenied implements authz.Dispatcher. It best-effort notifies a
// controller that a physical-button request was refused, so the device can
// suppress local actuation. Failure is swallowed; the originating access
// event's outcome is already decided.
func (r *Registry) SendDenied(deviceID string, command device.Command, reason string) {
	r.mu.RLock()
	sess, ok := r.controllers[deviceID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	msg := controllerDeniedMessage{
		Type:      "command_denied",
		Command:   string(command),
		Reason:    reason,
		Timestamp: r.timestamp(),
	}
	if err := sess.Send(msg); err != nil {
		r.logger.Debug("command_denied send failed", "device_id", deviceID, "error", err)
	}
}
