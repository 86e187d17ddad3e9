package conn

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/doorguard/core/internal/authz"
	"github.com/doorguard/core/internal/device"
	"github.com/doorguard/core/internal/infrastructure/config"
)

// fakeConn records every message written to it and can be made to fail.
type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	failSend bool
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errSendFailed
	}
	c.messages = append(c.messages, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *fakeConn) last() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(c.messages[len(c.messages)-1], &out); err != nil {
		return nil
	}
	return out
}

var errSendFailed = &sendError{}

type sendError struct{}

func (*sendError) Error() string { return "send failed" }

func newTestStore(t *testing.T) *device.Store {
	t.Helper()
	s, err := device.NewStore([]device.Seed{
		{ID: "DOOR-001", Kind: device.KindPhysical, InitialPhysicalStatus: device.StatusClosed, InitialLockState: device.LockLocked},
		{ID: "DOOR-002", Kind: device.KindVirtual, InitialPhysicalStatus: device.StatusClosed, InitialLockState: device.LockUnlocked},
	}, 0, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func testHeartbeat() config.HeartbeatConfig {
	return config.HeartbeatConfig{PingIntervalSeconds: 10, PongDeadlineSeconds: 30}
}

func TestAcceptObserverSendsInitialSnapshot(t *testing.T) {
	store := newTestStore(t)
	r := New(store, testHeartbeat(), nil)

	c := &fakeConn{}
	r.AcceptObserver(c)

	msg := c.last()
	if msg == nil || msg["type"] != "initial_data" {
		t.Fatalf("want initial_data message, got %v", msg)
	}
	data, ok := msg["data"].(map[string]any)
	if !ok {
		t.Fatalf("want data object, got %v", msg)
	}
	devices, ok := data["devices"].([]any)
	if !ok || len(devices) != 2 {
		t.Fatalf("want 2 devices in snapshot, got %v", data["devices"])
	}
}

func TestAcceptControllerUnknownDevice(t *testing.T) {
	store := newTestStore(t)
	r := New(store, testHeartbeat(), nil)

	if _, err := r.AcceptController("NOPE", &fakeConn{}); err != ErrUnknownDevice {
		t.Fatalf("want ErrUnknownDevice, got %v", err)
	}
}

func TestAcceptControllerMarksOnlineAndSendsHandshake(t *testing.T) {
	store := newTestStore(t)
	r := New(store, testHeartbeat(), nil)

	c := &fakeConn{}
	sess, err := r.AcceptController("DOOR-001", c)
	if err != nil {
		t.Fatalf("AcceptController: %v", err)
	}
	defer close(sess.stop)

	dev, _ := store.GetDevice("DOOR-001")
	if dev.ConnectionStatus != device.ConnOnline {
		t.Fatalf("want online after accept, got %v", dev.ConnectionStatus)
	}

	if c.count() != 1 {
		t.Fatalf("want one handshake message sent, got %d", c.count())
	}
	if msg := c.last(); msg["type"] != "handshake" {
		t.Fatalf("want handshake message, got %v", msg)
	}
}

func TestAcceptControllerDisplacesPriorSession(t *testing.T) {
	store := newTestStore(t)
	r := New(store, testHeartbeat(), nil)

	first := &fakeConn{}
	firstSess, err := r.AcceptController("DOOR-001", first)
	if err != nil {
		t.Fatalf("AcceptController: %v", err)
	}

	second := &fakeConn{}
	secondSess, err := r.AcceptController("DOOR-001", second)
	if err != nil {
		t.Fatalf("AcceptController: %v", err)
	}
	defer close(secondSess.stop)

	if !first.closed {
		t.Fatal("want prior controller session closed on displacement")
	}
	select {
	case <-firstSess.stop:
	default:
		t.Fatal("want prior session's heartbeat stopped")
	}

	r.mu.RLock()
	current := r.controllers["DOOR-001"]
	r.mu.RUnlock()
	if current != secondSess {
		t.Fatal("want the new session to be the current controller")
	}

	dev, _ := store.GetDevice("DOOR-001")
	if dev.ConnectionStatus != device.ConnOnline {
		t.Fatalf("want device still online after displacement, got %v", dev.ConnectionStatus)
	}
}

func TestDispatchNotConnectedWithoutController(t *testing.T) {
	store := newTestStore(t)
	r := New(store, testHeartbeat(), nil)

	if outcome := r.Dispatch("DOOR-001", device.CommandOpen); outcome != authz.DispatchNotConnected {
		t.Fatalf("want DispatchNotConnected, got %v", outcome)
	}
}

func TestDispatchDeliveredSendsCommand(t *testing.T) {
	store := newTestStore(t)
	r := New(store, testHeartbeat(), nil)

	c := &fakeConn{}
	sess, err := r.AcceptController("DOOR-001", c)
	if err != nil {
		t.Fatalf("AcceptController: %v", err)
	}
	defer close(sess.stop)

	if outcome := r.Dispatch("DOOR-001", device.CommandOpen); outcome != authz.DispatchDelivered {
		t.Fatalf("want DispatchDelivered, got %v", outcome)
	}

	msg := c.last()
	if msg["type"] != "command" || msg["command"] != "open" {
		t.Fatalf("want command open message, got %v", msg)
	}
}

func TestSendDeniedNotifiesController(t *testing.T) {
	store := newTestStore(t)
	r := New(store, testHeartbeat(), nil)

	c := &fakeConn{}
	sess, err := r.AcceptController("DOOR-001", c)
	if err != nil {
		t.Fatalf("AcceptController: %v", err)
	}
	defer close(sess.stop)

	r.SendDenied("DOOR-001", device.CommandOpen, "door_locked")

	msg := c.last()
	if msg["type"] != "command_denied" || msg["reason"] != "door_locked" {
		t.Fatalf("want command_denied with reason, got %v", msg)
	}
}

func TestStateChangeBroadcastsBeforeAccessEvent(t *testing.T) {
	store := newTestStore(t)
	r := New(store, testHeartbeat(), nil)
	store.SetEventSink(r)

	obs := &fakeConn{}
	r.AcceptObserver(obs) // consumes message 1: initial_data

	_, _, err := store.ApplyAccess("DOOR-002", "alice", device.CommandOpen, func(device.Device) device.Decision {
		open := device.StatusOpen
		return device.Decision{Outcome: device.OutcomeGranted, Patch: &device.Patch{PhysicalStatus: &open}}
	})
	if err != nil {
		t.Fatalf("ApplyAccess: %v", err)
	}

	if obs.count() != 3 {
		t.Fatalf("want initial_data + state change + access event, got %d messages", obs.count())
	}

	var second, third map[string]any
	obs.mu.Lock()
	json.Unmarshal(obs.messages[1], &second) //nolint:errcheck // test fixture
	json.Unmarshal(obs.messages[2], &third)  //nolint:errcheck // test fixture
	obs.mu.Unlock()

	if second["type"] != "device_state_change" {
		t.Fatalf("want state change second, got %v", second["type"])
	}
	if third["type"] != "access_event" {
		t.Fatalf("want access event third, got %v", third["type"])
	}
}

func TestBroadcastDropsObserverOnSendFailure(t *testing.T) {
	store := newTestStore(t)
	r := New(store, testHeartbeat(), nil)
	store.SetEventSink(r)

	obs := &fakeConn{}
	r.AcceptObserver(obs)
	obs.mu.Lock()
	obs.failSend = true
	obs.mu.Unlock()

	if _, err := store.ConfirmPhysicalStatus("DOOR-001", device.StatusOpen); err != nil {
		t.Fatalf("ConfirmPhysicalStatus: %v", err)
	}

	if r.ObserverCount() != 0 {
		t.Fatalf("want observer dropped after send failure, got count=%d", r.ObserverCount())
	}
}

func TestTickControllerTransitionsToDeadPastDeadline(t *testing.T) {
	store := newTestStore(t)
	r := New(store, testHeartbeat(), nil)

	c := &fakeConn{}
	sess, err := r.AcceptController("DOOR-001", c)
	if err != nil {
		t.Fatalf("AcceptController: %v", err)
	}

	base := time.Now()
	r.now = func() time.Time { return base.Add(31 * time.Second) }

	dead := r.tickController(sess, 10*time.Second, 30*time.Second)
	if !dead {
		t.Fatal("want tickController to report dead past pong_deadline")
	}

	dev, _ := store.GetDevice("DOOR-001")
	if dev.ConnectionStatus != device.ConnOffline {
		t.Fatalf("want offline after timeout, got %v", dev.ConnectionStatus)
	}

	events := store.ListEvents(1)
	if len(events) != 1 || events[0].Message != "controller timeout" {
		t.Fatalf("want controller timeout audit entry, got %+v", events)
	}
}

func TestTickControllerTransitionsToSuspectBetweenIntervalAndDeadline(t *testing.T) {
	store := newTestStore(t)
	r := New(store, testHeartbeat(), nil)

	c := &fakeConn{}
	sess, err := r.AcceptController("DOOR-001", c)
	if err != nil {
		t.Fatalf("AcceptController: %v", err)
	}
	defer close(sess.stop)

	base := time.Now()
	r.now = func() time.Time { return base.Add(15 * time.Second) }

	dead := r.tickController(sess, 10*time.Second, 30*time.Second)
	if dead {
		t.Fatal("want session to remain alive (suspect) within pong_deadline")
	}

	sess.mu.Lock()
	state := sess.state
	sess.mu.Unlock()
	if state != stateSuspect {
		t.Fatalf("want suspect state, got %q", state)
	}
}

func TestTouchResetsHeartbeatClock(t *testing.T) {
	store := newTestStore(t)
	r := New(store, testHeartbeat(), nil)

	c := &fakeConn{}
	sess, err := r.AcceptController("DOOR-001", c)
	if err != nil {
		t.Fatalf("AcceptController: %v", err)
	}
	defer close(sess.stop)

	before := sess.lastSeenAt()
	time.Sleep(time.Millisecond)
	sess.Touch()
	if !sess.lastSeenAt().After(before) {
		t.Fatal("want Touch to advance lastSeen")
	}
}

func TestDropControllerIgnoresAlreadyDisplacedSession(t *testing.T) {
	store := newTestStore(t)
	r := New(store, testHeartbeat(), nil)

	first := &fakeConn{}
	firstSess, err := r.AcceptController("DOOR-001", first)
	if err != nil {
		t.Fatalf("AcceptController: %v", err)
	}

	second := &fakeConn{}
	secondSess, err := r.AcceptController("DOOR-001", second)
	if err != nil {
		t.Fatalf("AcceptController: %v", err)
	}
	defer close(secondSess.stop)

	// The first session's own read loop finally notices the close; dropping
	// it must not clobber the second session's online status.
	r.DropController(firstSess)

	dev, _ := store.GetDevice("DOOR-001")
	if dev.ConnectionStatus != device.ConnOnline {
		t.Fatalf("want device to remain online, got %v", dev.ConnectionStatus)
	}
	if r.ControllerCount() != 1 {
		t.Fatalf("want exactly one controller tracked, got %d", r.ControllerCount())
	}
}
