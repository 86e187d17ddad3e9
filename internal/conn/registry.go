package conn

import (
	"sync"
	"time"

	"github.com/doorguard/core/internal/device"
	"github.com/doorguard/core/internal/infrastructure/config"
	"github.com/doorguard/core/internal/infrastructure/mqtt"
)

// Registry is the Connection Registry. It owns the observer set, the
// device_id-keyed controller map, and the heartbeat timers that detect a
// dead controller. It implements authz.Dispatcher and device.EventSink, so
// the Authorization Engine and the device Store reach sessions only
// through the small interfaces this package defines.
type Registry struct {
	mu          sync.RWMutex
	observers   map[*ObserverSession]struct{}
	controllers map[string]*ControllerSession

	store     *device.Store
	heartbeat config.HeartbeatConfig
	logger    Logger

	metrics   MetricsRecorder
	telemetry Publisher
	topics    mqtt.Topics

	now func() time.Time
}

// New creates a Registry backed by store. The registry does not call
// store.SetEventSink itself; wire it explicitly at startup once the
// registry is constructed.
func New(store *device.Store, heartbeat config.HeartbeatConfig, logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Registry{
		observers:   make(map[*ObserverSession]struct{}),
		controllers: make(map[string]*ControllerSession),
		store:       store,
		heartbeat:   heartbeat,
		logger:      logger,
		now:         time.Now,
	}
}

// SetMetricsRecorder wires optional long-horizon connection-uptime
// recording. Pass nil to disable (the default).
func (r *Registry) SetMetricsRecorder(m MetricsRecorder) {
	r.mu.Lock()
	r.metrics = m
	r.mu.Unlock()
}

// SetTelemetryPublisher wires optional MQTT republish of device state and
// access events. Pass nil to disable (the default).
func (r *Registry) SetTelemetryPublisher(p Publisher) {
	r.mu.Lock()
	r.telemetry = p
	r.mu.Unlock()
}

// ObserverCount returns the number of connected dashboard sessions.
func (r *Registry) ObserverCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}

// ControllerCount returns the number of connected controller sessions.
func (r *Registry) ControllerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}

// ControllerStatus reports the last time the named device's controller
// session received any inbound frame, and whether a session currently
// exists.
func (r *Registry) ControllerStatus(deviceID string) (time.Time, bool) {
	r.mu.RLock()
	sess, ok := r.controllers[deviceID]
	r.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	return sess.lastSeenAt(), true
}

// AcceptObserver registers a new dashboard session and pushes the initial
// device snapshot to it.
func (r *Registry) AcceptObserver(c Conn) *ObserverSession {
	s := &ObserverSession{conn: c}

	r.mu.Lock()
	r.observers[s] = struct{}{}
	r.mu.Unlock()

	r.logger.Debug("observer connected", "observers", r.ObserverCount())

	msg := initialDataMessage{
		Type: "initial_data",
		Data: initialDataBody{
			Devices:   r.store.ListDevices(),
			Timestamp: r.timestamp(),
		},
	}
	if err := s.Send(msg); err != nil {
		r.logger.Warn("initial snapshot send failed", "error", err)
	}

	go r.runObserverHeartbeat(s)

	return s
}

// DropObserver removes an observer session and closes its transport. Safe
// to call more than once for the same session.
func (r *Registry) DropObserver(s *ObserverSession) {
	r.mu.Lock()
	_, existed := r.observers[s]
	delete(r.observers, s)
	r.mu.Unlock()

	if existed {
		s.conn.Close()
		r.logger.Debug("observer disconnected", "observers", r.ObserverCount())
	}
}

// AcceptController registers the sole controller session for deviceID,
// displacing and closing any prior session for the same device, marking
// the device online, and starting its heartbeat timer. It returns
// ErrUnknownDevice if deviceID does not name a seeded device.
func (r *Registry) AcceptController(deviceID string, c Conn) (*ControllerSession, error) {
	dev, ok := r.store.GetDevice(deviceID)
	if !ok {
		return nil, ErrUnknownDevice
	}

	sess := &ControllerSession{
		deviceID: deviceID,
		conn:     c,
		lastSeen: r.now(),
		state:    stateAlive,
		stop:     make(chan struct{}),
	}

	r.mu.Lock()
	old, existed := r.controllers[deviceID]
	r.controllers[deviceID] = sess
	r.mu.Unlock()

	if existed {
		close(old.stop)
		old.conn.Close()
		r.logger.Debug("controller session replaced", "device_id", deviceID)
	}

	if _, err := r.store.SetConnectionOnline(deviceID); err != nil {
		r.logger.Warn("set connection online failed", "device_id", deviceID, "error", err)
	}
	r.recordConnectionEvent(deviceID, stateAlive)

	go r.runControllerHeartbeat(sess)

	if dev.Kind == device.KindPhysical {
		if err := sess.SendHandshake(); err != nil {
			r.logger.Debug("handshake send failed", "device_id", deviceID, "error", err)
		}
	}

	return sess, nil
}

// DropController removes a controller session, provided it is still the
// current session for its device (a session already displaced by a newer
// one is a no-op here). Marks the device offline and broadcasts.
func (r *Registry) DropController(sess *ControllerSession) {
	r.removeController(sess, false)
}

// removeController is the shared path for an explicit disconnect and a
// heartbeat timeout.
func (r *Registry) removeController(sess *ControllerSession, timedOut bool) {
	r.mu.Lock()
	current, ok := r.controllers[sess.deviceID]
	if !ok || current != sess {
		r.mu.Unlock()
		return
	}
	delete(r.controllers, sess.deviceID)
	r.mu.Unlock()

	select {
	case <-sess.stop:
	default:
		close(sess.stop)
	}
	sess.conn.Close()

	if timedOut {
		if _, err := r.store.RecordHeartbeatTimeout(sess.deviceID); err != nil {
			r.logger.Warn("record heartbeat timeout failed", "device_id", sess.deviceID, "error", err)
		}
	} else if _, err := r.store.SetConnectionOffline(sess.deviceID); err != nil {
		r.logger.Warn("set connection offline failed", "device_id", sess.deviceID, "error", err)
	}
	r.recordConnectionEvent(sess.deviceID, stateDead)
}

// timestamp renders the registry's clock as ISO-8601 UTC.
func (r *Registry) timestamp() string {
	return r.now().UTC().Format(time.RFC3339)
}

func (r *Registry) recordConnectionEvent(deviceID, state string) {
	r.mu.RLock()
	m := r.metrics
	r.mu.RUnlock()
	if m != nil {
		m.WriteConnectionEvent(deviceID, state)
	}
}

func (r *Registry) publish(topic string, payload []byte, retained bool) {
	r.mu.RLock()
	p := r.telemetry
	r.mu.RUnlock()
	if p == nil {
		return
	}
	if err := p.Publish(topic, payload, 1, retained); err != nil {
		r.logger.Debug("telemetry publish failed", "topic", topic, "error", err)
	}
}
