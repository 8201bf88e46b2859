package conn

import (
	"testing"
	"time"

	"github.com/cachemir/mc/pkg/mcerr"
)

func TestHealthStartsOK(t *testing.T) {
	h := NewHealth(time.Second)
	if h.State() != StateOK {
		t.Fatalf("fresh Health state = %v, want StateOK", h.State())
	}
	if h.Dead(time.Now()) {
		t.Fatal("fresh Health should never be dead")
	}
}

func TestHardFailThenRecoverCooldown(t *testing.T) {
	h := NewHealth(50 * time.Millisecond)
	now := time.Now()
	h.HardFail(mcerr.ConnPollErr, now)

	if !h.Dead(now) {
		t.Fatal("expected Dead() to be true immediately after HardFail")
	}
	if h.Dead(now.Add(100 * time.Millisecond)) {
		t.Fatal("expected Dead() to be false after the retry timeout elapses")
	}
}

func TestRecoverClearsState(t *testing.T) {
	h := NewHealth(time.Second)
	h.HardFail(mcerr.ConnPollErr, time.Now())
	h.Recover()
	if h.State() != StateOK {
		t.Fatalf("state after Recover = %v, want StateOK", h.State())
	}
	if h.Dead(time.Now()) {
		t.Fatal("expected Dead() to be false after Recover")
	}
}

func TestSoftFailMarksDeadDuringCooldown(t *testing.T) {
	h := NewHealth(50 * time.Millisecond)
	now := time.Now()
	h.SoftFail(mcerr.PollTimeoutErr, now)
	if h.State() != StateSoftFailed {
		t.Fatalf("state = %v, want StateSoftFailed", h.State())
	}
	if !h.Dead(now) {
		t.Fatal("expected a soft-failed connection to be skipped during its cooldown")
	}
	if h.Dead(now.Add(100 * time.Millisecond)) {
		t.Fatal("expected Dead() to be false once the soft-fail cooldown elapses")
	}
}
