package conn

import (
	"encoding/json"

	"github.com/doorguard/core/internal/device"
)

// OnStateChange implements device.EventSink. It is called synchronously
// from inside the Store's commit lock, so the broadcast itself must not
// block: the observer snapshot is taken and released before any send is
// attempted, exactly as OnAccessEvent does below.
func (r *Registry) OnStateChange(d device.Device) {
	msg := stateChangeMessage{
		Type: "device_state_change",
		Data: stateChangeBody{
			DeviceID:  d.ID,
			NewState:  d,
			Timestamp: r.timestamp(),
		},
	}
	r.broadcastObservers(msg)

	if payload, err := json.Marshal(d); err == nil {
		r.publish(r.topics.DeviceState(d.ID), payload, true)
	}
}

// OnAccessEvent implements device.EventSink.
func (r *Registry) OnAccessEvent(e device.AccessEvent) {
	msg := accessEventMessage{
		Type: "access_event",
		Data: e,
	}
	r.broadcastObservers(msg)

	if payload, err := json.Marshal(e); err == nil {
		r.publish(r.topics.DeviceAccess(e.DeviceID), payload, false)
	}
}

// broadcastObservers snapshots the observer set under the registry lock,
// releases it, then sends to each observer without holding the lock —
// matching the ordering guarantee that per-device broadcasts are never
// reordered relative to the Store's commit order.
func (r *Registry) broadcastObservers(msg any) {
	r.mu.RLock()
	observers := make([]*ObserverSession, 0, len(r.observers))
	for s := range r.observers {
		observers = append(observers, s)
	}
	r.mu.RUnlock()

	for _, s := range observers {
		if err := s.Send(msg); err != nil {
			r.logger.Debug("observer send failed, dropping", "error", err)
			r.DropObserver(s)
		}
	}
}
