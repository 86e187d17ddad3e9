// Package influxdb provides InfluxDB connectivity for the coordinator.
//
// It wraps the official influxdb-client-go v2 library with coordinator-specific
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Access attempt history (who tried what, and whether it was allowed)
//   - Device connection uptime (alive/suspect/dead transitions)
//   - Rate limiter activity (lockouts and throttling over time)
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "doorguard",
//	    Bucket: "access",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Record an access decision
//	client.WriteAccessAttempt("DOOR-001", "alice", "open", true, "")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency access logging.
package influxdb
