package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most one action per identity within a cooldown window.
//
// Rejected attempts leave the recorded timestamp untouched, so the window
// always slides from the last accepted action; spamming cannot extend a
// lockout. Entries are kept for the process lifetime.
type Limiter struct {
	cooldown time.Duration

	mu   sync.Mutex
	last map[int64]time.Time
}

// New creates a Limiter with the given cooldown between accepted actions.
func New(cooldown time.Duration) *Limiter {
	return &Limiter{
		cooldown: cooldown,
		last:     make(map[int64]time.Time),
	}
}

// Admit reports whether an action from identity at now is accepted, recording
// now as the new last-action time if it is.
func (l *Limiter) Admit(identity int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.last[identity]; ok && now.Sub(last) < l.cooldown {
		return false
	}
	l.last[identity] = now
	return true
}

// Cooldown returns the configured cooldown interval.
func (l *Limiter) Cooldown() time.Duration {
	return l.cooldown
}
