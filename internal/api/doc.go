// Package api is the coordinator's ingress surface: a chi HTTP router and
// two WebSocket endpoints sitting in front of the Authorization Engine.
//
// It exposes the dashboard-facing REST endpoints (device status, access
// log, rate limiter introspection), the dashboard observer WebSocket at
// /ws, and the one-session-per-device controller WebSocket at
// /ws/{device_id}. Both HTTP command submission and the dashboard's
// {"type":"command"} WebSocket message route into the same
// authz.Engine.Process call, so the two ingress paths can never diverge in
// behaviour.
//
// # Transport
//
// WebSocket connections are adapted to the conn.Conn interface by wsConn in
// this package: writes are handed to a buffered channel drained by a
// per-connection write pump, so the Connection Registry's synchronous
// broadcast and dispatch calls never block on network I/O.
//
// # Graceful degradation
//
// The server operates without MQTT configured — device commands and
// WebSocket traffic still work; only external telemetry republishing is
// disabled.
package api
