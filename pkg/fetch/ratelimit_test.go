package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestRateLimiter(delay time.Duration) *RateLimiter {
	log := logrus.NewEntry(logrus.New())
	log.Logger.SetLevel(logrus.DebugLevel)
	return NewRateLimiter(delay, log)
}

func TestWait_RespectsContextCancellation(t *testing.T) {
	rl := newTestRateLimiter(5 * time.Second)
	host := "example.com"

	// Consume the single burst token so the next call must wait
	if err := rl.Wait(context.Background(), host); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := rl.Wait(ctx, host)
	elapsed := time.Since(start)

	if err == nil {
		t.Error("Wait with cancelled context should return an error")
	}
	if elapsed > 100*time.Millisecond {
		t.Errorf("Wait with cancelled context took %v, expected <100ms", elapsed)
	}
}

func TestWait_SpacesRequestsToSameHost(t *testing.T) {
	rl := newTestRateLimiter(100 * time.Millisecond)
	host := "example.com"

	if err := rl.Wait(context.Background(), host); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	start := time.Now()
	if err := rl.Wait(context.Background(), host); err != nil {
		t.Fatalf("second Wait failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond {
		t.Errorf("Wait returned too quickly: %v, expected ~100ms", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("Wait took too long: %v, expected ~100ms", elapsed)
	}
}

func TestWait_NoDelayOnFirstRequest(t *testing.T) {
	rl := newTestRateLimiter(5 * time.Second)

	start := time.Now()
	if err := rl.Wait(context.Background(), "fresh-host.com"); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("Wait on first request took %v, expected instant return", elapsed)
	}
}

func TestWait_HostsAreIndependent(t *testing.T) {
	rl := newTestRateLimiter(5 * time.Second)

	start := time.Now()
	for _, host := range []string{"a.example", "b.example", "C.EXAMPLE"} {
		if err := rl.Wait(context.Background(), host); err != nil {
			t.Fatalf("Wait(%s) failed: %v", host, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("distinct hosts should not wait on each other, took %v", elapsed)
	}
	if rl.Hosts() != 3 {
		t.Errorf("Hosts() = %d, want 3", rl.Hosts())
	}
}

func TestWait_DisabledWhenDelayIsZero(t *testing.T) {
	rl := newTestRateLimiter(0)
	for range 5 {
		if err := rl.Wait(context.Background(), "example.com"); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	if rl.Hosts() != 0 {
		t.Errorf("disabled limiter should not track hosts, got %d", rl.Hosts())
	}
}
