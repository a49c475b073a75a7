package tilegraph

import (
	"testing"
	"time"
)

func TestRateTracker_DefaultBeforeAnySample(t *testing.T) {
	rt := NewRateTracker()
	if got := rt.Rate(); got != 1e-6 {
		t.Fatalf("Rate() = %v, want 1e-6", got)
	}
}

func TestRateTracker_FirstObservationSetsRateDirectly(t *testing.T) {
	rt := NewRateTracker()
	rt.Observe(100, 100*time.Nanosecond)
	if got := rt.Rate(); got != 1.0 {
		t.Fatalf("Rate() = %v, want 1.0 (100 vertices / 100ns)", got)
	}
}

func TestRateTracker_SmoothsSubsequentObservations(t *testing.T) {
	rt := NewRateTracker()
	rt.Observe(100, 100*time.Nanosecond) // rate == 1.0
	rt.Observe(200, 100*time.Nanosecond) // sample == 2.0

	want := RateSmoothing*2.0 + (1-RateSmoothing)*1.0
	if got := rt.Rate(); got != want {
		t.Fatalf("Rate() = %v, want %v", got, want)
	}
}

func TestRateTracker_IgnoresNonPositiveSamples(t *testing.T) {
	rt := NewRateTracker()
	rt.Observe(0, 100*time.Nanosecond)
	rt.Observe(100, 0)
	rt.Observe(-5, 100*time.Nanosecond)
	if got := rt.Rate(); got != 1e-6 {
		t.Fatalf("Rate() = %v, want the untouched default 1e-6", got)
	}
}
