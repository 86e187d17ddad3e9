package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/doorguard/core/internal/conn"
	"github.com/doorguard/core/internal/device"
)

// dashboardInboundMessage covers every shape a dashboard client can send:
// {"type":"command",...} and {"type":"ping"}.
type dashboardInboundMessage struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
	Command  string `json:"command"`
	UserID   string `json:"user_id"`
}

type commandResponseMessage struct {
	Type string              `json:"type"`
	Data commandResponseBody `json:"data"`
}

type commandResponseBody struct {
	DeviceID string `json:"device_id"`
	Command  string `json:"command"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

type dashboardPongMessage struct {
	Type string `json:"type"`
}

// handleDashboardWS upgrades the request to the dashboard observer
// WebSocket. Every connected dashboard receives initial_data on accept and
// device_state_change/access_event broadcasts as the Store commits them.
func (s *Server) handleDashboardWS(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("dashboard websocket upgrade failed", "error", err)
		return
	}

	adapter := newWSConn(c)
	go adapter.writePump()

	sess := s.registry.AcceptObserver(adapter)
	s.readObserverLoop(c, sess)
}

func (s *Server) readObserverLoop(c *websocket.Conn, sess *conn.ObserverSession) {
	defer s.registry.DropObserver(sess)

	c.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		s.handleDashboardFrame(data, sess)
	}
}

func (s *Server) handleDashboardFrame(data []byte, sess *conn.ObserverSession) {
	var msg dashboardInboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug("malformed dashboard frame dropped", "error", err)
		return
	}

	switch msg.Type {
	case "ping":
		//nolint:errcheck // best-effort reply; a dead session is dropped by the heartbeat loop
		sess.Send(dashboardPongMessage{Type: "pong"})
	case "command":
		s.processDashboardCommand(msg, sess)
	default:
		s.logger.Debug("unknown dashboard message type", "type", msg.Type)
	}
}

func (s *Server) processDashboardCommand(msg dashboardInboundMessage, sess *conn.ObserverSession) {
	_, decision, err := s.engine.Process(msg.DeviceID, msg.UserID, device.Command(msg.Command))
	if err != nil {
		s.replyCommand(sess, msg, string(device.OutcomeDenied), "invalid_request")
		return
	}
	s.replyCommand(sess, msg, string(decision.Outcome), decision.Message)
}

func (s *Server) replyCommand(sess *conn.ObserverSession, msg dashboardInboundMessage, status, message string) {
	resp := commandResponseMessage{
		Type: "command_response",
		Data: commandResponseBody{
			DeviceID: msg.DeviceID,
			Command:  msg.Command,
			Status:   status,
			Message:  message,
		},
	}
	if err := sess.Send(resp); err != nil {
		s.logger.Debug("command_response send failed", "error", err)
	}
}
