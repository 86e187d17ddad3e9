package device

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultEventRetention is the access-log FIFO eviction ceiling used when a
// Store is constructed with retention <= 0.
const defaultEventRetention = 10000

// Logger is the minimal logging surface the Store needs. Passing nil to
// NewStore installs a no-op logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store holds the device table and the access-event log behind a single
// mutex. Every exported mutator holds that mutex for its entire body, so a
// "read current state, decide, write, notify" sequence is atomic relative
// to every other caller, including the synchronous EventSink callbacks.
type Store struct {
	mu sync.Mutex

	devices map[string]Device
	order   []string // device_id insertion order, for ListDevices

	events    []AccessEvent
	retention int

	sink   EventSink
	logger Logger

	now func() time.Time
}

// NewStore creates a Store seeded from the given configuration records.
// Seeds must have unique, non-empty device_id values and a recognised kind.
func NewStore(seeds []Seed, retention int, logger Logger) (*Store, error) {
	if retention <= 0 {
		retention = defaultEventRetention
	}
	if logger == nil {
		logger = noopLogger{}
	}

	s := &Store{
		devices:   make(map[string]Device, len(seeds)),
		order:     make([]string, 0, len(seeds)),
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}

	for _, seed := range seeds {
		if seed.ID == "" || (seed.Kind != KindPhysical && seed.Kind != KindVirtual) {
			return nil, ErrInvalidSeed
		}
		if _, exists := s.devices[seed.ID]; exists {
			return nil, ErrDuplicateDeviceID
		}

		conn := ConnOffline
		if seed.Kind == KindVirtual {
			conn = ConnOnline
		}

		s.devices[seed.ID] = Device{
			ID:               seed.ID,
			Location:         seed.Location,
			Kind:             seed.Kind,
			PhysicalStatus:   seed.InitialPhysicalStatus,
			LockState:        seed.InitialLockState,
			ConnectionStatus: conn,
		}
		s.order = append(s.order, seed.ID)
	}

	return s, nil
}

// SetEventSink installs the broadcaster invoked on every commit. It exists
// separately from NewStore because the sink (the connection registry) is
// typically constructed after the store it observes.
func (s *Store) SetEventSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// GetDevice returns a copy of the current device state.
func (s *Store) GetDevice(id string) (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	return d, ok
}

// ListDevices returns every device in seed order.
func (s *Store) ListDevices() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Device, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.devices[id])
	}
	return out
}

// ApplyAccess is the atomic decide-and-commit primitive. It looks up
// deviceID, invokes decide with the current, lock-protected snapshot, and —
// still holding the lock — commits any returned patch and always appends
// the resulting AccessEvent. The sink (if set) observes the state change
// before the access event, exactly in commit order.
//
// ApplyAccess returns ErrDeviceNotFound if deviceID does not name a known
// device; decide is never called in that case.
func (s *Store) ApplyAccess(deviceID, userID string, command Command, decide DecideFunc) (Device, Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.devices[deviceID]
	if !ok {
		return Device{}, Decision{}, ErrDeviceNotFound
	}

	decision := decide(current)

	result := current
	if decision.Patch != nil {
		result = applyPatch(current, decision.Patch)
		s.devices[deviceID] = result
		s.notifyStateChange(result)
	}

	s.appendEventLocked(AccessEvent{
		ID:        uuid.NewString(),
		Timestamp: s.now().UTC(),
		DeviceID:  deviceID,
		UserID:    userID,
		Command:   command,
		Outcome:   decision.Outcome,
		Message:   decision.Message,
	})

	return result, decision, nil
}

// SetConnectionOnline marks a physical device's controller session as
// attached and notifies the sink. No access event is logged.
func (s *Store) SetConnectionOnline(deviceID string) (Device, error) {
	return s.setConnection(deviceID, ConnOnline)
}

// SetConnectionOffline marks a physical device's controller session as
// detached and notifies the sink. No access event is logged. Use
// RecordHeartbeatTimeout instead when the drop is due to a heartbeat
// deadline, which additionally logs an audit entry.
func (s *Store) SetConnectionOffline(deviceID string) (Device, error) {
	return s.setConnection(deviceID, ConnOffline)
}

func (s *Store) setConnection(deviceID string, status ConnectionStatus) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.devices[deviceID]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	if current.Kind == KindVirtual {
		return current, nil
	}
	current.ConnectionStatus = status
	s.devices[deviceID] = current
	s.notifyStateChange(current)
	return current, nil
}

// RecordHeartbeatTimeout atomically marks a physical device offline and
// appends the "controller timeout" audit entry, so observers never see the
// event without having first seen the state change. A virtual device stays
// online; only the audit entry is appended.
func (s *Store) RecordHeartbeatTimeout(deviceID string) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.devices[deviceID]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	if current.Kind != KindVirtual {
		current.ConnectionStatus = ConnOffline
		s.devices[deviceID] = current
		s.notifyStateChange(current)
	}

	s.appendEventLocked(AccessEvent{
		ID:        uuid.NewString(),
		Timestamp: s.now().UTC(),
		DeviceID:  deviceID,
		UserID:    "system",
		Command:   CommandHeartbeat,
		Outcome:   OutcomeDenied,
		Message:   "controller timeout",
	})
	return current, nil
}

// ConfirmPhysicalStatus applies a controller's authoritative status_update.
// No access event is logged; this is a transport-confirmed state change,
// not an access attempt.
func (s *Store) ConfirmPhysicalStatus(deviceID string, status PhysicalStatus) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.devices[deviceID]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	current.PhysicalStatus = status
	s.devices[deviceID] = current
	s.notifyStateChange(current)
	return current, nil
}

// ListEvents returns up to limit of the most recently appended events,
// most-recent-first. limit <= 0 returns every retained event.
func (s *Store) ListEvents(limit int) []AccessEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]AccessEvent, n)
	for i := 0; i < n; i++ {
		out[i] = s.events[len(s.events)-1-i]
	}
	return out
}

func (s *Store) appendEventLocked(e AccessEvent) {
	s.events = append(s.events, e)
	if overflow := len(s.events) - s.retention; overflow > 0 {
		s.events = s.events[overflow:]
	}
	if s.sink != nil {
		s.sink.OnAccessEvent(e)
	}
}

func (s *Store) notifyStateChange(d Device) {
	if s.sink != nil {
		s.sink.OnStateChange(d)
	}
}
