package ratelimit

import (
	"sync"
	"time"

	"github.com/doorguard/core/internal/device"
)

// Limiter enforces the per-(device,user) sliding-window and lockout rules
// described in Config. The zero value is not usable; construct with New.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	records map[key][]attemptRecord

	lastCleanup time.Time
	now         func() time.Time
}

// New constructs a Limiter with the given configuration.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		records: make(map[key][]attemptRecord),
		now:     time.Now,
	}
}

// Check evaluates the two-stage threshold against the key's recent
// attempt history. It does not record anything; call Record separately
// once the outcome of the attempt is known.
func (l *Limiter) Check(deviceID, userID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := key{deviceID: deviceID, userID: userID}
	recs := l.cleanupKeyLocked(k, now)

	var failedInLockoutWindow int
	var lastFailedInWindow time.Time
	for _, r := range recs {
		if !r.success && now.Sub(r.timestamp) <= l.cfg.LockoutDuration {
			failedInLockoutWindow++
			if r.timestamp.After(lastFailedInWindow) {
				lastFailedInWindow = r.timestamp
			}
		}
	}
	if failedInLockoutWindow >= l.cfg.MaxFailedAttempts {
		expiresAt := lastFailedInWindow.Add(l.cfg.LockoutDuration)
		remaining := int(expiresAt.Sub(now).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		return Decision{Allowed: false, Reason: ReasonLockedOut, RemainingLockoutSeconds: remaining}
	}

	var attemptsLastMinute int
	for _, r := range recs {
		if now.Sub(r.timestamp) <= time.Minute {
			attemptsLastMinute++
		}
	}
	if attemptsLastMinute >= l.cfg.MaxAttemptsPerMinute {
		return Decision{Allowed: false, Reason: ReasonRateLimited}
	}

	return Decision{Allowed: true}
}

// Record appends one attempt outcome for the key.
func (l *Limiter) Record(deviceID, userID string, command device.Command, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{deviceID: deviceID, userID: userID}
	l.records[k] = append(l.records[k], attemptRecord{
		timestamp: l.now(),
		command:   command,
		success:   success,
	})
}

// ClearAll wipes every retained attempt record and returns the number of
// records cleared. It is the administrative recovery escape hatch; callers
// are responsible for restricting it to the admin user.
func (l *Limiter) ClearAll() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, recs := range l.records {
		n += len(recs)
	}
	l.records = make(map[key][]attemptRecord)
	return n
}

// Cleanup drops every record older than max(60s, lockout_duration) across
// all keys, and removes keys left with no records. It is safe to call on
// a timer and opportunistically from Check.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k := range l.records {
		l.cleanupKeyLocked(k, now)
	}
}

// StartCleanupLoop runs Cleanup on cfg.CleanupInterval until stop is
// closed. Callers typically run this in its own goroutine for the life of
// the process.
func (l *Limiter) StartCleanupLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Cleanup()
		case <-stop:
			return
		}
	}
}

// cleanupKeyLocked drops records older than the retention window for k and
// returns the (possibly shortened) surviving slice. Callers must hold mu.
func (l *Limiter) cleanupKeyLocked(k key, now time.Time) []attemptRecord {
	retain := l.cfg.LockoutDuration
	if retain < time.Minute {
		retain = time.Minute
	}

	recs := l.records[k]
	kept := recs[:0:0]
	for _, r := range recs {
		if now.Sub(r.timestamp) <= retain {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		delete(l.records, k)
		return nil
	}
	l.records[k] = kept
	return kept
}

// Stats summarizes activity over the last hour across every key.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stats := Stats{
		Config: ConfigSummary{
			MaxAttemptsPerMinute: l.cfg.MaxAttemptsPerMinute,
			MaxFailedAttempts:    l.cfg.MaxFailedAttempts,
			LockoutDurationSecs:  int(l.cfg.LockoutDuration.Seconds()),
			CleanupIntervalMins:  int(l.cfg.CleanupInterval.Minutes()),
		},
	}

	users := make(map[string]struct{})
	devices := make(map[string]struct{})
	for k, recs := range l.records {
		stats.TotalRecords += len(recs)
		hasRecent := false
		for _, r := range recs {
			if now.Sub(r.timestamp) > time.Hour {
				continue
			}
			hasRecent = true
			stats.TotalAttemptsLastHour++
			if r.success {
				stats.SuccessfulAttempts++
			} else {
				stats.FailedAttempts++
			}
		}
		if hasRecent {
			users[k.userID] = struct{}{}
			devices[k.deviceID] = struct{}{}
		}
	}
	stats.UniqueUsers = len(users)
	stats.UniqueDevices = len(devices)
	return stats
}

// UserStatus reports the current lockout/rate state for one (device,user)
// pair without mutating anything.
func (l *Limiter) UserStatus(deviceID, userID string) UserStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := key{deviceID: deviceID, userID: userID}
	recs := l.cleanupKeyLocked(k, now)

	var status UserStatus
	var failedInLockoutWindow int
	var lastFailedInWindow time.Time
	for _, r := range recs {
		if now.Sub(r.timestamp) <= time.Minute {
			status.AttemptsLastMinute++
		}
		if !r.success && now.Sub(r.timestamp) <= l.cfg.LockoutDuration {
			failedInLockoutWindow++
			if r.timestamp.After(lastFailedInWindow) {
				lastFailedInWindow = r.timestamp
			}
		}
	}
	status.FailedAttemptsRecent = failedInLockoutWindow

	if failedInLockoutWindow >= l.cfg.MaxFailedAttempts {
		status.IsLockedOut = true
		remaining := int(lastFailedInWindow.Add(l.cfg.LockoutDuration).Sub(now).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		status.RemainingLockoutSecs = remaining
	}
	return status
}
