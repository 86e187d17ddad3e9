package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAccessAttempt writes a single access decision to InfluxDB.
//
// This is the primary method for recording access history outside the
// in-memory access log. The write is non-blocking; data is batched and
// sent asynchronously.
//
// Parameters:
//   - deviceID: The door the attempt targeted
//   - userID: The user who issued the command
//   - command: The command attempted (open, close, lock, unlock)
//   - allowed: Whether the attempt was permitted
//   - reason: The denial reason, or empty when allowed
func (c *Client) WriteAccessAttempt(deviceID, userID, command string, allowed bool, reason string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"access_attempts",
		map[string]string{
			"device_id": deviceID,
			"user_id":   userID,
			"command":   command,
		},
		map[string]interface{}{
			"allowed": allowed,
			"reason":  reason,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteConnectionEvent writes a controller connection state transition.
//
// Used for tracking device bridge uptime: how often a device drops
// to suspect/dead and how long it stays disconnected.
//
// Parameters:
//   - deviceID: Device identifier
//   - state: The connection state entered (alive, suspect, dead)
func (c *Client) WriteConnectionEvent(deviceID, state string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"connection_events",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"state": state,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRateLimitEvent writes a rate limiter decision (lockout or throttle).
//
// Used for auditing brute-force activity over time, independent of the
// limiter's own in-memory rolling stats.
//
// Parameters:
//   - deviceID: Device identifier
//   - userID: User identifier
//   - reason: The limiter's denial reason (locked_out, rate_limited)
func (c *Client) WriteRateLimitEvent(deviceID, userID, reason string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"rate_limit_events",
		map[string]string{
			"device_id": deviceID,
			"user_id":   userID,
		},
		map[string]interface{}{
			"reason": reason,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "coordinator-01"},
//	    map[string]interface{}{"uptime_seconds": 3600})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
