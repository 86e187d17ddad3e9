// Package ratelimit implements a per-(device,user) sliding-window attempt
// counter with brute-force lockout.
//
// Every attempt record is kept in a flat, per-key slice ordered by
// insertion. check evaluates two thresholds against that slice: a lockout
// window over recent failures, then a one-minute window over all attempts.
// Records are dropped opportunistically on every check and, separately, on
// a fixed interval, so a quiet key's memory does not grow without bound.
package ratelimit
