package common

import (
	"log"
	"sync"
	"time"
)

// RateTracker remembers recent rate-limit rejections from the venue so the
// transport can pause before hammering it again. The venue reports no usage
// headers, so tracking is rejection-driven.
type RateTracker struct {
	mu        sync.RWMutex
	rejects   int
	lastHit   time.Time
	coolDown  time.Duration
	threshold int
}

// NewRateTracker builds a tracker that asks for a delay after threshold
// rejections inside the cool-down window.
func NewRateTracker(threshold int, coolDown time.Duration) *RateTracker {
	if threshold <= 0 {
		threshold = 1
	}
	if coolDown <= 0 {
		coolDown = time.Minute
	}
	return &RateTracker{threshold: threshold, coolDown: coolDown}
}

// RecordRejection notes one rate-limit rejection.
func (rt *RateTracker) RecordRejection() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if time.Since(rt.lastHit) >= rt.coolDown {
		rt.rejects = 0
	}
	rt.rejects++
	rt.lastHit = time.Now()

	if rt.rejects >= rt.threshold {
		log.Printf("ratelimit: %d rejections within %s, private calls will be delayed", rt.rejects, rt.coolDown)
	}
}

// SuggestedDelay returns how long the next private call should wait, or zero.
func (rt *RateTracker) SuggestedDelay() time.Duration {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	if rt.rejects < rt.threshold {
		return 0
	}
	remaining := rt.coolDown - time.Since(rt.lastHit)
	if remaining <= 0 {
		return 0
	}
	// Short fixed pause rather than the whole window; one clean call resets.
	if remaining > 2*time.Second {
		return 2 * time.Second
	}
	return remaining
}

// RecordSuccess clears the rejection counter after a clean call.
func (rt *RateTracker) RecordSuccess() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.rejects = 0
}
