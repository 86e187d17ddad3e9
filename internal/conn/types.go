package conn

import "github.com/doorguard/core/internal/device"

// Conn is the transport a session writes to. WriteMessage must not block on
// network I/O; implementations backed by a real socket should hand the
// payload to a buffered write loop instead, as the gorilla/websocket
// adapter in internal/api does. Close is idempotent.
type Conn interface {
	WriteMessage(data []byte) error
	Close() error
}

// Logger is the minimal logging surface the registry needs.
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

// MetricsRecorder receives heartbeat-state transitions for long-horizon
// connection-uptime queries. Implemented by infrastructure/influxdb.Client;
// nil is a valid "not configured" value.
type MetricsRecorder interface {
	WriteConnectionEvent(deviceID, state string)
}

// Publisher republishes device state and access events to an external
// telemetry consumer. Implemented by infrastructure/mqtt.Client; nil is a
// valid "not configured" value.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Heartbeat states, also used verbatim as the MetricsRecorder state label.
const (
	stateAlive   = "alive"
	stateSuspect = "suspect"
	stateDead    = "dead"
)

// Wire message shapes. Field names and nesting follow the documented
// dashboard and controller WebSocket contracts exactly.

type initialDataMessage struct {
	Type string          `json:"type"`
	Data initialDataBody `json:"data"`
}

type initialDataBody struct {
	Devices   []device.Device `json:"devices"`
	Timestamp string          `json:"timestamp"`
}

type stateChangeMessage struct {
	Type string          `json:"type"`
	Data stateChangeBody `json:"data"`
}

type stateChangeBody struct {
	DeviceID  string        `json:"device_id"`
	NewState  device.Device `json:"new_state"`
	Timestamp string        `json:"timestamp"`
}

type accessEventMessage struct {
	Type string            `json:"type"`
	Data device.AccessEvent `json:"data"`
}

type pingMessage struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp,omitempty"`
}

type controllerCommandMessage struct {
	Type      string `json:"type"`
	Command   string `json:"command"`
	Timestamp string `json:"timestamp"`
}

type controllerDeniedMessage struct {
	Type      string `json:"type"`
	Command   string `json:"command"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
}

type handshakeMessage struct {
	Type string `json:"type"`
}

type ackMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
