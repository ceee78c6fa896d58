package rate

import (
	"testing"
	"time"
)

func TestLimiterFixedWindow(t *testing.T) {
	l := NewLimiter()
	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3, time.Minute) {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	if l.Allow("k", 3, time.Minute) {
		t.Fatal("fourth request should be limited")
	}
	if !l.Allow("other", 3, time.Minute) {
		t.Fatal("independent key should pass")
	}
}

func TestLimiterReset(t *testing.T) {
	l := NewLimiter()
	for i := 0; i < 2; i++ {
		l.Allow("k", 2, time.Minute)
	}
	if l.Allow("k", 2, time.Minute) {
		t.Fatal("should be limited before reset")
	}
	l.Reset("k")
	if !l.Allow("k", 2, time.Minute) {
		t.Fatal("should pass after reset")
	}
}
