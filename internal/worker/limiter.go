package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter paces subprocess launches per binary. Playback runs fork the
// replay engine once per candidate, so a batch across many workers can
// otherwise start hundreds of processes in the first second.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a launch limiter with the given default pace.
func NewLimiter(launchesPerSecond float64, burst int) *Limiter {
	if launchesPerSecond <= 0 {
		launchesPerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(launchesPerSecond),
		defaultBurst: burst,
	}
}

// Wait blocks until the given binary may launch again.
func (l *Limiter) Wait(ctx context.Context, binary string) error {
	return l.getLimiter(binary).Wait(ctx)
}

// Allow reports whether the binary may launch right now without waiting.
func (l *Limiter) Allow(binary string) bool {
	return l.getLimiter(binary).Allow()
}

func (l *Limiter) getLimiter(binary string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[binary]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[binary]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[binary] = limiter

	return limiter
}

// SetRate sets a custom launch pace for one binary. Useful when a slow
// alternative engine shares a batch with the main one.
func (l *Limiter) SetRate(binary string, launchesPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[binary] = rate.NewLimiter(rate.Limit(launchesPerSecond), burst)
}
