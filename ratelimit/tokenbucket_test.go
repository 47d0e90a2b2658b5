package ratelimit

import "testing"

func TestAllowPermitsUpToBurstThenBlocks(t *testing.T) {
	l := NewTokenBucketLimiter(1.0/300, 1) // 1 token per 5 minutes, burst 1

	if !l.Allow("sensor-1") {
		t.Fatal("expected first call to be allowed")
	}
	if l.Allow("sensor-1") {
		t.Fatal("expected second immediate call to be rate limited")
	}
}

func TestAllowIsIndependentPerKey(t *testing.T) {
	l := NewTokenBucketLimiter(1.0/300, 1)

	if !l.Allow("sensor-1") {
		t.Fatal("expected sensor-1 to be allowed")
	}
	if !l.Allow("sensor-2") {
		t.Fatal("expected sensor-2 to have its own independent bucket")
	}
}
