// Package mqtt provides MQTT client connectivity for the coordinator.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The coordinator uses MQTT only for optional outbound telemetry:
// conn.Registry republishes each committed device state to
// doorguard/state/{device_id} (retained) and each access event to
// doorguard/access/{device_id}. Door controllers do not use MQTT; they
// connect to the coordinator over its controller WebSocket.
//
//	Coordinator → MQTT Broker → external consumers
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all bridge state updates
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceStates(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a dispatched command
//	topic := mqtt.Topics{}.DeviceCommand("DOOR-001")
//	client.Publish(topic, []byte(`{"command":"unlock"}`), 1, false)
package mqtt
