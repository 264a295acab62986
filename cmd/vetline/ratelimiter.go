package main

import (
	"sync"
	"time"
)

// RateLimiter enforces a sliding-window request limit per client IP.
type RateLimiter struct {
	mu       sync.RWMutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration

	lastCleanup time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests:    make(map[string][]time.Time),
		limit:       limit,
		window:      window,
		lastCleanup: time.Now(),
	}
}

// Allow records a request for ip and reports whether it fits in the window.
// Timestamps older than the window are pruned as a side effect, so memory
// stays bounded by active clients.
func (rl *RateLimiter) Allow(ip string) bool {
	if rl.limit <= 0 {
		return false
	}

	now := time.Now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastCleanup) > rl.window {
		rl.cleanupLocked(cutoff)
		rl.lastCleanup = now
	}

	recent := pruneBefore(rl.requests[ip], cutoff)
	if len(recent) >= rl.limit {
		rl.requests[ip] = recent
		return false
	}

	rl.requests[ip] = append(recent, now)
	return true
}

// cleanupLocked drops IPs whose every timestamp has aged out. Caller holds
// the write lock.
func (rl *RateLimiter) cleanupLocked(cutoff time.Time) {
	for ip, stamps := range rl.requests {
		recent := pruneBefore(stamps, cutoff)
		if len(recent) == 0 {
			delete(rl.requests, ip)
			continue
		}
		rl.requests[ip] = recent
	}
}

func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	return stamps[idx:]
}
