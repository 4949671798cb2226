package mutation

import (
	"testing"
	"time"
)

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b := NewBreaker("test", 3, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if b.State() != BreakerClosed {
		t.Fatalf("expected closed below threshold, got %v", b.State())
	}

	b.RecordFailure()
	if b.State() != BreakerOpen {
		t.Fatalf("expected open at threshold, got %v", b.State())
	}
	if b.Allow() {
		t.Error("open breaker must reject calls before cooldown")
	}
}

func TestBreaker_SuccessResetsCounter(t *testing.T) {
	b := NewBreaker("test", 3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != BreakerClosed {
		t.Errorf("expected closed after counter reset, got %v", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b := NewBreaker("test", 1, 10*time.Millisecond)

	b.RecordFailure()
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %v", b.State())
	}

	time.Sleep(20 * time.Millisecond)

	// First call after cooldown is the probe
	if !b.Allow() {
		t.Fatal("expected probe allowed after cooldown")
	}
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open, got %v", b.State())
	}
	// Only one probe in flight
	if b.Allow() {
		t.Error("second call during probe must be rejected")
	}

	b.RecordSuccess()
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after successful probe, got %v", b.State())
	}
	if !b.Allow() {
		t.Error("closed breaker must allow calls")
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	b := NewBreaker("test", 1, 10*time.Millisecond)

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("expected probe allowed")
	}
	b.RecordFailure()

	if b.State() != BreakerOpen {
		t.Errorf("expected re-opened after failed probe, got %v", b.State())
	}
	if b.Allow() {
		t.Error("re-opened breaker must reject calls")
	}
}
