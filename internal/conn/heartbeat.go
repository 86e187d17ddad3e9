package conn

import "time"

// runControllerHeartbeat drives one controller session's Alive → Suspect →
// Dead state machine. It ticks at ping_interval, sending a ping each time,
// and escalates the session's tracked state based on how long it has been
// since the last inbound frame of any kind. Exceeding pong_deadline closes
// the session and applies the timeout drop.
func (r *Registry) runControllerHeartbeat(sess *ControllerSession) {
	interval := r.heartbeat.PingInterval()
	if interval <= 0 {
		interval = 10 * time.Second
	}
	deadline := r.heartbeat.PongDeadline()
	if deadline <= 0 {
		deadline = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.stop:
			return
		case <-ticker.C:
			if r.tickController(sess, interval, deadline) {
				return
			}
		}
	}
}

// tickController evaluates one heartbeat tick for sess and returns true if
// the session died and the caller's loop should exit. Split out from
// runControllerHeartbeat so tests can drive the state machine without a
// real ticker.
func (r *Registry) tickController(sess *ControllerSession, interval, deadline time.Duration) (dead bool) {
	elapsed := r.now().Sub(sess.lastSeenAt())

	if elapsed > deadline {
		r.logger.Warn("controller heartbeat timeout", "device_id", sess.deviceID)
		r.removeController(sess, true)
		return true
	}

	if elapsed > interval {
		if sess.setState(stateSuspect) {
			r.recordConnectionEvent(sess.deviceID, stateSuspect)
		}
	} else if sess.setState(stateAlive) {
		r.recordConnectionEvent(sess.deviceID, stateAlive)
	}

	msg := pingMessage{Type: "ping", Timestamp: r.timestamp()}
	if err := sess.Send(msg); err != nil {
		r.logger.Debug("controller ping failed", "device_id", sess.deviceID, "error", err)
	}
	return false
}

// runObserverHeartbeat pings an observer session at the same cadence as
// controllers. Observers carry no pong deadline; a send failure closes the
// session quietly, as the spec requires.
func (r *Registry) runObserverHeartbeat(s *ObserverSession) {
	interval := r.heartbeat.PingInterval()
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		r.mu.RLock()
		_, alive := r.observers[s]
		r.mu.RUnlock()
		if !alive {
			return
		}

		if err := s.Send(pingMessage{Type: "ping"}); err != nil {
			r.DropObserver(s)
			return
		}
	}
}
