package mqtt

import "fmt"

// Topic prefixes for the coordinator's MQTT bus.
//
// All topics use the flat scheme: doorguard/{category}/{device_id}
const (
	// TopicPrefixBridge is the base for all device bridge topics.
	TopicPrefixBridge = "doorguard"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "doorguard/system"
)

// Topics provides builders for the coordinator's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("DOOR-001")
//	// Returns: "doorguard/state/DOOR-001"
type Topics struct{}

// =============================================================================
// Device Topics
// =============================================================================

// DeviceState returns the topic a physical door's bridge publishes
// its state updates to (lock state, physical status, connection pings).
//
// Example: doorguard/state/DOOR-001
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefixBridge, deviceID)
}

// DeviceCommand returns the topic the coordinator publishes dispatched
// commands to for a physical door's bridge to act on.
//
// Example: doorguard/command/DOOR-001
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefixBridge, deviceID)
}

// DeviceAccess returns the topic access events for a device are
// mirrored to, for external logging/auditing consumers.
//
// Example: doorguard/access/DOOR-001
func (Topics) DeviceAccess(deviceID string) string {
	return fmt.Sprintf("%s/access/%s", TopicPrefixBridge, deviceID)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: doorguard/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllDeviceStates returns a pattern matching all device state updates.
//
// Pattern: doorguard/state/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefixBridge)
}

// AllDeviceAccess returns a pattern matching all device access mirrors.
//
// Pattern: doorguard/access/+
func (Topics) AllDeviceAccess() string {
	return fmt.Sprintf("%s/access/+", TopicPrefixBridge)
}

// AllTopics returns a pattern matching every coordinator topic.
// Use with caution - this receives ALL traffic.
//
// Pattern: doorguard/#
func (Topics) AllTopics() string {
	return "doorguard/#"
}
