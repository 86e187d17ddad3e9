package authz

import (
	"github.com/doorguard/core/internal/device"
	"github.com/doorguard/core/internal/ratelimit"
)

// Logger is the minimal logging surface the Engine needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Config controls the policy choices the rules table leaves open.
type Config struct {
	// AdminUserID is the literal user_id that grants administrative role.
	AdminUserID string

	// AdminExemptFromRateLimit lets the admin user bypass the rate
	// limiter entirely. The default policy does not exempt admin.
	AdminExemptFromRateLimit bool
}

// Engine is the Authorization Engine: it runs the rate-limit and
// device-resolution pre-checks, then evaluates the command rules table
// against the device Store's atomic commit primitive.
type Engine struct {
	store      *device.Store
	limiter    *ratelimit.Limiter
	dispatcher Dispatcher
	cfg        Config
	logger     Logger
}

// New constructs an Engine. dispatcher may be nil; with a nil dispatcher
// every open or close of a physical device is denied as device_offline.
func New(store *device.Store, limiter *ratelimit.Limiter, dispatcher Dispatcher, cfg Config, logger Logger) *Engine {
	if cfg.AdminUserID == "" {
		cfg.AdminUserID = "admin"
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{store: store, limiter: limiter, dispatcher: dispatcher, cfg: cfg, logger: logger}
}

// Process evaluates one access attempt end to end: pre-checks, rules,
// commit, and rate-limiter bookkeeping. command must be one of {open,
// close, lock, unlock}; any other value returns ErrUnknownCommand without
// touching the limiter or the Store.
//
// The returned Device is the zero value whenever the attempt never
// reached the Store (a pre-check denial) — callers should not broadcast a
// device_state_change for those.
func (e *Engine) Process(deviceID, userID string, command device.Command) (device.Device, device.Decision, error) {
	switch command {
	case device.CommandOpen, device.CommandClose, device.CommandLock, device.CommandUnlock:
	default:
		return device.Device{}, device.Decision{}, ErrUnknownCommand
	}

	isAdmin := userID == e.cfg.AdminUserID
	isButton := userID == physicalButtonUserID

	// Every denial this function can produce, from here on, notifies the
	// controller when the attempt came from the device's own button — not
	// just the rules-table denials decide() returns.
	var decision device.Decision
	defer func() {
		if isButton && decision.Outcome == device.OutcomeDenied && e.dispatcher != nil {
			e.dispatcher.SendDenied(deviceID, command, decision.Message)
		}
	}()

	if !(isAdmin && e.cfg.AdminExemptFromRateLimit) {
		if check := e.limiter.Check(deviceID, userID); !check.Allowed {
			e.limiter.Record(deviceID, userID, command, false)
			e.logger.Info("access attempt denied by rate limiter",
				"device_id", deviceID, "user_id", userID, "reason", string(check.Reason))
			decision = device.Decision{Outcome: device.OutcomeDenied, Message: string(check.Reason)}
			return device.Device{}, decision, nil
		}
	}

	if _, ok := e.store.GetDevice(deviceID); !ok {
		e.limiter.Record(deviceID, userID, command, false)
		decision = device.Decision{Outcome: device.OutcomeDenied, Message: "unknown_device"}
		return device.Device{}, decision, nil
	}

	updated, dec, err := e.store.ApplyAccess(deviceID, userID, command, func(current device.Device) device.Decision {
		return e.decide(current, command, isAdmin, isButton)
	})
	if err != nil {
		// The device existed a moment ago; this would mean a concurrent
		// removal, which the Store never does, so this path is dead in
		// practice. Treat it the same as unknown_device defensively.
		e.limiter.Record(deviceID, userID, command, false)
		decision = device.Decision{Outcome: device.OutcomeDenied, Message: "unknown_device"}
		return device.Device{}, decision, nil
	}
	decision = dec

	e.limiter.Record(deviceID, userID, command, decision.Outcome == device.OutcomeGranted)

	return updated, decision, nil
}

// decide evaluates the command rules table against the device's
// pre-commit state. It runs inside the Store's commit lock, so the
// physical dispatch call it makes must not block.
func (e *Engine) decide(current device.Device, command device.Command, isAdmin, isButton bool) device.Decision {
	switch command {
	case device.CommandOpen:
		return e.decideOpen(current, isAdmin, isButton)
	case device.CommandClose:
		return e.decideClose(current)
	case device.CommandLock:
		return e.decideSetLock(current, isAdmin, device.LockLocked)
	case device.CommandUnlock:
		return e.decideSetLock(current, isAdmin, device.LockUnlocked)
	default:
		return device.Decision{Outcome: device.OutcomeDenied, Message: "invalid_request"}
	}
}

func (e *Engine) decideOpen(current device.Device, isAdmin, isButton bool) device.Decision {
	if current.PhysicalStatus == device.StatusOpen {
		return device.Decision{Outcome: device.OutcomeGranted, Message: "no_op"}
	}

	locked := current.LockState == device.LockLocked
	adminExempt := isAdmin && !isButton // buttons never override the lock
	if locked && !adminExempt {
		return device.Decision{Outcome: device.OutcomeDenied, Message: "door_locked"}
	}

	return e.dispatchOrApply(current, device.CommandOpen, device.StatusOpen)
}

func (e *Engine) decideClose(current device.Device) device.Decision {
	if current.PhysicalStatus == device.StatusClosed {
		return device.Decision{Outcome: device.OutcomeGranted, Message: "no_op"}
	}
	return e.dispatchOrApply(current, device.CommandClose, device.StatusClosed)
}

// dispatchOrApply grants the target physical_status immediately for a
// virtual device, or dispatches the command to a physical device's
// controller and leaves physical_status untouched until the controller
// confirms it.
func (e *Engine) dispatchOrApply(current device.Device, command device.Command, target device.PhysicalStatus) device.Decision {
	if current.Kind == device.KindVirtual {
		t := target
		return device.Decision{Outcome: device.OutcomeGranted, Patch: &device.Patch{PhysicalStatus: &t}}
	}

	if e.dispatcher == nil || e.dispatcher.Dispatch(current.ID, command) != DispatchDelivered {
		return device.Decision{Outcome: device.OutcomeDenied, Message: "device_offline"}
	}
	return device.Decision{Outcome: device.OutcomeGranted, Message: "dispatched"}
}

func (e *Engine) decideSetLock(current device.Device, isAdmin bool, target device.LockState) device.Decision {
	if !isAdmin {
		return device.Decision{Outcome: device.OutcomeDenied, Message: "not_permitted"}
	}
	if current.LockState == target {
		return device.Decision{Outcome: device.OutcomeGranted, Message: "no_op"}
	}
	t := target
	return device.Decision{Outcome: device.OutcomeGranted, Patch: &device.Patch{LockState: &t}}
}
