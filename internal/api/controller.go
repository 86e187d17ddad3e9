package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/doorguard/core/internal/conn"
	"github.com/doorguard/core/internal/device"
)

// physicalButtonUserID is the literal user_id a controller session uses
// when relaying a local button press as an access attempt. It must match
// the value authz.Engine treats as exempt from the lock-state admin
// override.
const physicalButtonUserID = "physical_button"

// controllerInboundMessage covers status_update, button_command_request,
// command_response, and pong frames from a device controller.
type controllerInboundMessage struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Data    struct {
		PhysicalStatus string `json:"physical_status"`
	} `json:"data"`
}

// handleControllerWS upgrades the request to the controller WebSocket for
// one device_id. Only one session per device is kept; AcceptController
// displaces any prior session for the same device.
func (s *Server) handleControllerWS(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "device_id")

	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("controller websocket upgrade failed", "device_id", deviceID, "error", err)
		return
	}

	adapter := newWSConn(c)
	go adapter.writePump()

	sess, err := s.registry.AcceptController(deviceID, adapter)
	if err != nil {
		if errors.Is(err, conn.ErrUnknownDevice) {
			s.logger.Debug("controller connect rejected: unknown device", "device_id", deviceID)
		}
		adapter.Close()
		return
	}

	s.readControllerLoop(c, sess)
}

func (s *Server) readControllerLoop(c *websocket.Conn, sess *conn.ControllerSession) {
	defer s.registry.DropController(sess)

	c.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		sess.Touch()
		s.handleControllerFrame(data, sess)
	}
}

func (s *Server) handleControllerFrame(data []byte, sess *conn.ControllerSession) {
	var msg controllerInboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug("malformed controller frame dropped", "device_id", sess.DeviceID(), "error", err)
		return
	}

	switch msg.Type {
	case "status_update":
		s.applyStatusUpdate(sess, msg)
	case "button_command_request":
		s.processButtonCommand(sess, msg)
	case "command_response":
		s.logger.Debug("controller acknowledged command", "device_id", sess.DeviceID(), "command", msg.Command)
	case "pong":
		// Touch() above already reset the heartbeat deadline.
	default:
		s.logger.Debug("unknown controller message type", "device_id", sess.DeviceID(), "type", msg.Type)
	}
}

func (s *Server) applyStatusUpdate(sess *conn.ControllerSession, msg controllerInboundMessage) {
	status := device.PhysicalStatus(msg.Data.PhysicalStatus)
	if _, err := s.store.ConfirmPhysicalStatus(sess.DeviceID(), status); err != nil {
		s.logger.Warn("status_update rejected", "device_id", sess.DeviceID(), "error", err)
	}
}

func (s *Server) processButtonCommand(sess *conn.ControllerSession, msg controllerInboundMessage) {
	_, decision, err := s.engine.Process(sess.DeviceID(), physicalButtonUserID, device.Command(msg.Command))
	if err != nil {
		s.logger.Debug("button command rejected", "device_id", sess.DeviceID(), "command", msg.Command, "error", err)
		return
	}
	s.logger.Debug("button command processed",
		"device_id", sess.DeviceID(), "command", msg.Command, "outcome", decision.Outcome)
}
