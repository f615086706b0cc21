package resilience

import (
	"sync"
	"testing"
	"time"
)

func TestCircuitBreaker_ConcurrencyLimit(t *testing.T) {
	cb := NewCircuitBreaker(2).WithCooldown(time.Hour)

	if !cb.Acquire() || !cb.Acquire() {
		t.Fatal("first two acquisitions should succeed")
	}
	if cb.Acquire() {
		t.Fatal("third acquisition should be rejected")
	}
	if cb.State() != CircuitClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
	if cb.InFlight() != 2 {
		t.Errorf("InFlight() = %d, want 2", cb.InFlight())
	}

	cb.Release(true)
	if !cb.Acquire() {
		t.Error("a released slot should be reusable immediately")
	}
}

func TestCircuitBreaker_BurstDoesNotTrip(t *testing.T) {
	const limit, burst = 4, 64
	cb := NewCircuitBreaker(limit).WithCooldown(time.Hour)
	tripped := make(chan string, 1)
	cb.OnTrip = func(reason string) { tripped <- reason }

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		start    = make(chan struct{})
	)
	for i := 0; i < burst; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if cb.Acquire() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if admitted != limit {
		t.Errorf("admitted = %d, want %d", admitted, limit)
	}
	for i := 0; i < admitted; i++ {
		cb.Release(true)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
	if !cb.Acquire() {
		t.Error("acquisition after the burst drained should succeed")
	}
	select {
	case r := <-tripped:
		t.Errorf("breaker tripped: %s", r)
	default:
	}
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	reset := make(chan struct{}, 1)
	cb := NewCircuitBreaker(1).WithCooldown(time.Millisecond)
	cb.OnReset = func() { reset <- struct{}{} }

	if !cb.Acquire() {
		t.Fatal("first acquisition should succeed")
	}
	cb.Release(false)
	cb.trip("memory threshold exceeded")
	if cb.Acquire() {
		t.Fatal("open breaker should reject before cooldown")
	}

	time.Sleep(5 * time.Millisecond)
	if !cb.Acquire() {
		t.Fatal("first acquisition after cooldown should be admitted")
	}
	if cb.State() != CircuitHalfOpen {
		t.Errorf("State() = %v, want half_open", cb.State())
	}
	cb.Release(true)
	if cb.State() != CircuitClosed {
		t.Errorf("State() = %v, want closed after a successful operation", cb.State())
	}
	if cb.Failures() != 0 {
		t.Errorf("Failures() = %d, want 0 after reset", cb.Failures())
	}

	select {
	case <-reset:
	case <-time.After(time.Second):
		t.Error("OnReset was not called")
	}
}

func TestCircuitBreaker_Unlimited(t *testing.T) {
	cb := NewCircuitBreaker(0)
	for i := 0; i < 100; i++ {
		if !cb.Acquire() {
			t.Fatalf("acquisition %d rejected with no limit", i)
		}
	}
	cb.Release(false)
	if cb.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", cb.Failures())
	}
}
