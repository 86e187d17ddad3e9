// Package authz applies role, lock, and device-kind rules to each access
// attempt and produces the outcome that gets logged and broadcast.
//
// Engine.Process runs two pre-checks — the rate limiter, then device
// resolution — before handing the attempt to the device Store's atomic
// decide-and-commit primitive. Only attempts that clear both pre-checks
// reach the Store, so only those are ever appended to the access log; a
// rate-limit or unknown-device denial is reported to the caller and
// recorded in the limiter, and for a physical_button attempt the
// controller is also sent a command_denied notice.
package authz
