package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/doorguard/core/internal/device"
)

// handleDeviceStatus returns every seeded device and its current state.
func (s *Server) handleDeviceStatus(w http.ResponseWriter, _ *http.Request) {
	devices := s.store.ListDevices()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices":     devices,
		"total_count": len(devices),
		"timestamp":   s.timestamp(),
	})
}

// handleDeviceConnections returns a device_id -> connection_status map for
// every seeded device.
func (s *Server) handleDeviceConnections(w http.ResponseWriter, _ *http.Request) {
	devices := s.store.ListDevices()
	out := make(map[string]device.ConnectionStatus, len(devices))
	for _, d := range devices {
		out[d.ID] = d.ConnectionStatus
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDeviceConnection reports one device's connection status plus the
// last time its controller session received any inbound frame.
func (s *Server) handleDeviceConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, ok := s.store.GetDevice(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	resp := map[string]any{
		"device_id":         dev.ID,
		"connection_status": dev.ConnectionStatus,
	}
	if lastSeen, connected := s.registry.ControllerStatus(id); connected {
		resp["last_seen"] = lastSeen.UTC().Format(time.RFC3339)
	} else {
		resp["last_seen"] = nil
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetDevice returns one device's full record.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, ok := s.store.GetDevice(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleListAccessLogs returns the most recent access-log entries,
// most-recent-first, capped at the configured retention limit.
func (s *Server) handleListAccessLogs(w http.ResponseWriter, r *http.Request) {
	limit := s.accessLogRetention
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		if n > 0 && n < limit {
			limit = n
		}
	}

	events := s.store.ListEvents(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":      events,
		"count":     len(events),
		"timestamp": s.timestamp(),
	})
}

// accessLogRequest is the body of POST /api/access_log.
type accessLogRequest struct {
	DeviceID   string `json:"device_id"`
	UserCardID string `json:"user_card_id"`
	Command    string `json:"command"`
}

// handlePostAccessLog submits one access attempt to the Authorization
// Engine. This is the HTTP twin of the dashboard WebSocket's
// {"type":"command"} message; both route through authz.Engine.Process.
func (s *Server) handlePostAccessLog(w http.ResponseWriter, r *http.Request) {
	var req accessLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" || req.UserCardID == "" || req.Command == "" {
		writeBadRequest(w, "device_id, user_card_id and command are required")
		return
	}

	dev, decision, err := s.engine.Process(req.DeviceID, req.UserCardID, device.Command(req.Command))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    device.OutcomeDenied,
			"message":   "invalid_request",
			"timestamp": s.timestamp(),
		})
		return
	}

	resp := map[string]any{
		"status":    decision.Outcome,
		"message":   decision.Message,
		"timestamp": s.timestamp(),
	}
	if decision.Outcome == device.OutcomeGranted {
		resp["device_state"] = dev
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRateLimiterStats returns operational rate-limiter statistics for
// the last hour.
func (s *Server) handleRateLimiterStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.limiter.Stats())
}

// handleRateLimiterUserStatus answers whether a (device, user) pair is
// currently locked out.
func (s *Server) handleRateLimiterUserStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	userID := r.URL.Query().Get("user_id")
	if deviceID == "" || userID == "" {
		writeBadRequest(w, "device_id and user_id query parameters are required")
		return
	}
	writeJSON(w, http.StatusOK, s.limiter.UserStatus(deviceID, userID))
}

// handleRateLimiterClear wipes every tracked attempt record. Only the
// configured admin user may call it.
func (s *Server) handleRateLimiterClear(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("user_id") != s.adminUserID {
		writeUnauthorized(w, "only the admin user may clear rate limiter records")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared_attempts": s.limiter.ClearAll()})
}
