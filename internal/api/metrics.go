package api

import (
	"net/http"
	"runtime"
	"time"
)

// HealthMetrics is the metrics object returned alongside GET /api/health's
// status field.
type HealthMetrics struct {
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          MQTTMetrics    `json:"mqtt"`
	DeviceCount   int            `json:"device_count"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains Connection Registry session counts.
type WSMetrics struct {
	ObserverSessions   int `json:"observer_sessions"`
	ControllerSessions int `json:"controller_sessions"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// handleHealth returns liveness plus a snapshot of runtime, WebSocket, and
// MQTT health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := HealthMetrics{
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ObserverSessions:   s.registry.ObserverCount(),
			ControllerSessions: s.registry.ControllerCount(),
		},
		DeviceCount: len(s.store.ListDevices()),
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   s.version,
		"timestamp": s.timestamp(),
		"metrics":   metrics,
	})
}
