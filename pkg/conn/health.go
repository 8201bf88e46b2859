package conn

import (
	"time"

	"github.com/cachemir/mc/pkg/mcerr"
)

// HealthState is a connection's position in the OK/SOFT_FAILED/HARD_FAILED
// state machine (spec.md section 4.8).
type HealthState int

const (
	// StateOK means the connection is eligible for new requests.
	StateOK HealthState = iota
	// StateSoftFailed means the last attempt timed out or hit a transient
	// I/O error; the connection is retried after retryTimeout.
	StateSoftFailed
	// StateHardFailed means a fatal, unrecoverable error was observed;
	// the connection is retried only after deadUntil elapses.
	StateHardFailed
)

// Health tracks one server's retry/backoff bookkeeping, independent of the
// live socket. A fresh Health is StateOK.
type Health struct {
	state       HealthState
	deadUntil   time.Time
	lastCode    mcerr.Code
	retryTimeout time.Duration
}

// NewHealth returns a Health that retries a hard-failed server after
// retryTimeout has elapsed since the failure.
func NewHealth(retryTimeout time.Duration) *Health {
	if retryTimeout <= 0 {
		retryTimeout = 5 * time.Second
	}
	return &Health{retryTimeout: retryTimeout}
}

// SoftFail records a transient, protocol-level failure (e.g. a
// SERVER_ERROR reply) and starts the same retry-timeout cooldown as
// HardFail: both states are skipped by the router until deadUntil
// elapses (spec.md section 3).
func (h *Health) SoftFail(code mcerr.Code, now time.Time) {
	h.state = StateSoftFailed
	h.lastCode = code
	h.deadUntil = now.Add(h.retryTimeout)
}

// HardFail records a fatal failure and starts the retry-timeout cooldown.
func (h *Health) HardFail(code mcerr.Code, now time.Time) {
	h.state = StateHardFailed
	h.lastCode = code
	h.deadUntil = now.Add(h.retryTimeout)
}

// Recover clears any failure state after a successful round-trip.
func (h *Health) Recover() {
	h.state = StateOK
	h.lastCode = mcerr.OK
}

// Dead reports whether the server should be skipped for routing purposes
// at time now: true while either soft- or hard-failed and within the
// cooldown window.
func (h *Health) Dead(now time.Time) bool {
	if h.state != StateSoftFailed && h.state != StateHardFailed {
		return false
	}
	return now.Before(h.deadUntil)
}

// State returns the current health state.
func (h *Health) State() HealthState { return h.state }

// LastCode returns the error code of the most recent failure, or
// mcerr.OK if none has occurred since the last Recover.
func (h *Health) LastCode() mcerr.Code { return h.lastCode }
