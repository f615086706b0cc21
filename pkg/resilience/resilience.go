// Package resilience sheds load when the simulator is saturated.
package resilience

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// CircuitBreaker admits simulations up to a concurrency cap and sheds load
// while memory is short. The cap works as a semaphore: an operation over it
// is rejected on its own and the breaker stays closed. Only the memory
// threshold trips the breaker, which then stays open for the cooldown
// period and lets one operation through before closing again.
type CircuitBreaker struct {
	mu sync.RWMutex

	maxMemoryPct   float64 // 0 disables the memory check
	maxConcurrent  int
	cooldownPeriod time.Duration

	state         CircuitState
	failures      int64
	lastFailure   time.Time
	tripTime      time.Time
	concurrentOps int64

	// Callbacks run on their own goroutine.
	OnTrip  func(reason string)
	OnReset func()
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Rejecting requests
	CircuitHalfOpen                     // Testing if system recovered
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// NewCircuitBreaker creates a circuit breaker admitting up to maxConcurrent
// operations. maxConcurrent <= 0 means no limit.
func NewCircuitBreaker(maxConcurrent int) *CircuitBreaker {
	return &CircuitBreaker{
		maxConcurrent:  maxConcurrent,
		cooldownPeriod: 5 * time.Second,
		state:          CircuitClosed,
	}
}

// WithMaxMemory sets the heap-to-system memory ratio that trips the breaker.
func (cb *CircuitBreaker) WithMaxMemory(pct float64) *CircuitBreaker {
	cb.maxMemoryPct = pct
	return cb
}

// WithCooldown sets the cooldown period after tripping.
func (cb *CircuitBreaker) WithCooldown(d time.Duration) *CircuitBreaker {
	cb.cooldownPeriod = d
	return cb
}

// Acquire admits one operation. On success the caller must call Release.
func (cb *CircuitBreaker) Acquire() bool {
	if !cb.allow() {
		return false
	}
	n := atomic.AddInt64(&cb.concurrentOps, 1)
	if cb.maxConcurrent > 0 && n > int64(cb.maxConcurrent) {
		atomic.AddInt64(&cb.concurrentOps, -1)
		return false
	}
	return true
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.RLock()
	state := cb.state
	cb.mu.RUnlock()

	switch state {
	case CircuitOpen:
		cb.mu.Lock()
		defer cb.mu.Unlock()
		if cb.state == CircuitOpen && time.Since(cb.tripTime) > cb.cooldownPeriod {
			cb.state = CircuitHalfOpen
			return true
		}
		return cb.state != CircuitOpen

	case CircuitClosed:
		if cb.maxMemoryPct > 0 && memoryUsagePct() > cb.maxMemoryPct {
			cb.trip("memory threshold exceeded")
			return false
		}
	}
	return true
}

// Release marks the end of an admitted operation.
func (cb *CircuitBreaker) Release(success bool) {
	atomic.AddInt64(&cb.concurrentOps, -1)

	if !success {
		atomic.AddInt64(&cb.failures, 1)
		cb.mu.Lock()
		cb.lastFailure = time.Now()
		cb.mu.Unlock()
		return
	}
	if cb.State() == CircuitHalfOpen {
		cb.reset()
	}
}

func (cb *CircuitBreaker) trip(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		return
	}
	cb.state = CircuitOpen
	cb.tripTime = time.Now()

	if cb.OnTrip != nil {
		go cb.OnTrip(reason)
	}
}

func (cb *CircuitBreaker) reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	atomic.StoreInt64(&cb.failures, 0)

	if cb.OnReset != nil {
		go cb.OnReset()
	}
}

func memoryUsagePct() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.Sys == 0 {
		return 0
	}
	return float64(m.HeapAlloc) / float64(m.Sys)
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// InFlight returns the number of admitted operations not yet released.
func (cb *CircuitBreaker) InFlight() int64 {
	return atomic.LoadInt64(&cb.concurrentOps)
}

// Failures returns the failures recorded since the last reset.
func (cb *CircuitBreaker) Failures() int64 {
	return atomic.LoadInt64(&cb.failures)
}
