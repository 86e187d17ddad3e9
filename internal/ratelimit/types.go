package ratelimit

import (
	"time"

	"github.com/doorguard/core/internal/device"
)

// Config holds the four enumerated tunables. Zero-value fields are not
// valid; use DefaultConfig or populate every field from configuration.
type Config struct {
	MaxAttemptsPerMinute int
	MaxFailedAttempts    int
	LockoutDuration      time.Duration
	CleanupInterval      time.Duration
}

// DefaultConfig returns the shipped defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttemptsPerMinute: 10,
		MaxFailedAttempts:    5,
		LockoutDuration:      60 * time.Second,
		CleanupInterval:      60 * time.Minute,
	}
}

// Reason identifies why check denied an attempt.
type Reason string

const (
	ReasonLockedOut   Reason = "locked_out"
	ReasonRateLimited Reason = "rate_limited"
)

// Decision is the result of check.
type Decision struct {
	Allowed bool
	Reason  Reason

	// RemainingLockoutSeconds is set only when Reason is ReasonLockedOut.
	RemainingLockoutSeconds int
}

// attemptRecord is one logged attempt against a (device_id, user_id) key.
type attemptRecord struct {
	timestamp time.Time
	command   device.Command
	success   bool
}

type key struct {
	deviceID string
	userID   string
}

// Stats summarizes limiter activity over the last hour, for operational
// visibility.
type Stats struct {
	TotalAttemptsLastHour int     `json:"total_attempts_last_hour"`
	SuccessfulAttempts    int     `json:"successful_attempts"`
	FailedAttempts        int     `json:"failed_attempts"`
	UniqueUsers           int     `json:"unique_users"`
	UniqueDevices         int     `json:"unique_devices"`
	TotalRecords          int           `json:"total_records"`
	Config                ConfigSummary `json:"config"`
}

// ConfigSummary is Stats' JSON-friendly rendering of Config: Duration
// fields reported in seconds/minutes rather than Go's default nanosecond
// encoding.
type ConfigSummary struct {
	MaxAttemptsPerMinute int `json:"max_attempts_per_minute"`
	MaxFailedAttempts    int `json:"max_failed_attempts"`
	LockoutDurationSecs  int `json:"lockout_duration_seconds"`
	CleanupIntervalMins  int `json:"cleanup_interval_minutes"`
}

// UserStatus answers the "am I locked out" question for one (device,user)
// pair, matching the rate_limiter/user_status endpoint shape.
type UserStatus struct {
	AttemptsLastMinute   int  `json:"attempts_last_minute"`
	FailedAttemptsRecent int  `json:"failed_attempts_recent"`
	IsLockedOut          bool `json:"is_locked_out"`
	RemainingLockoutSecs int  `json:"remaining_lockout_seconds"`
}
