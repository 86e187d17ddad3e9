package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsSendBufferSize is the per-connection outbound message buffer size.
const wsSendBufferSize = 64

// wsWriteWait bounds how long a single frame write may block.
const wsWriteWait = 10 * time.Second

// errSendBufferFull is returned by wsConn.WriteMessage when the connection's
// outbound buffer cannot absorb another frame without blocking.
var errSendBufferFull = errors.New("api: websocket send buffer full")

// upgrader configures the WebSocket upgrader shared by the dashboard and
// controller endpoints. It accepts every origin; corsMiddleware only adds
// CORS headers and does not reject upgrade requests.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// wsConn adapts a gorilla/websocket connection to conn.Conn. WriteMessage
// never blocks on network I/O: it hands the payload to send, a buffered
// channel drained by writePump in its own goroutine.
type wsConn struct {
	conn *websocket.Conn

	mu        sync.Mutex
	send      chan []byte
	closeOnce sync.Once
}

func newWSConn(c *websocket.Conn) *wsConn {
	return &wsConn{
		conn: c,
		send: make(chan []byte, wsSendBufferSize),
	}
}

// WriteMessage implements conn.Conn.
func (c *wsConn) WriteMessage(data []byte) (err error) {
	defer func() {
		if recover() != nil {
			err = errSendBufferFull
		}
	}()

	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close implements conn.Conn. Idempotent.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.send) })
	return c.conn.Close()
}

// writePump drains send and writes each frame to the underlying socket. It
// exits when send is closed (via Close) or a write fails, and always closes
// the socket on the way out.
func (c *wsConn) writePump() {
	defer c.conn.Close()

	for data := range c.send {
		//nolint:errcheck // best-effort deadline; write error caught below
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	//nolint:errcheck // best-effort close frame on graceful shutdown
	c.conn.WriteMessage(websocket.CloseMessage, nil)
}
