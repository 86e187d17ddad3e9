package conn

import (
	"encoding/json"
	"sync"
	"time"
)

// ObserverSession is an accepted dashboard WebSocket. It carries no
// identity; the registry addresses it only by pointer.
type ObserverSession struct {
	conn Conn
}

// Send marshals v and writes it to the session's transport.
func (s *ObserverSession) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(data)
}

// ControllerSession is the single accepted WebSocket authoritative for one
// physical device's status. lastSeen resets on any inbound frame; the
// heartbeat loop reads it to decide alive/suspect/dead transitions.
type ControllerSession struct {
	deviceID string
	conn     Conn

	mu       sync.Mutex
	lastSeen time.Time
	state    string

	stop chan struct{}
}

// DeviceID returns the device this session controls.
func (s *ControllerSession) DeviceID() string {
	return s.deviceID
}

// Touch resets the heartbeat deadline. Call it on every inbound frame:
// pong, status_update, button_command_request, or command_response.
func (s *ControllerSession) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *ControllerSession) lastSeenAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *ControllerSession) setState(state string) (changed bool) {
	s.mu.Lock()
	changed = s.state != state
	s.state = state
	s.mu.Unlock()
	return changed
}

// Send marshals v and writes it to the controller's transport.
func (s *ControllerSession) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(data)
}

// SendAck writes a {type:"ack"} receipt acknowledgement.
func (s *ControllerSession) SendAck(message string) error {
	return s.Send(ackMessage{Type: "ack", Message: message})
}

// SendHandshake writes a {type:"handshake"} request for the device to
// re-announce its current status.
func (s *ControllerSession) SendHandshake() error {
	return s.Send(handshakeMessage{Type: "handshake"})
}
