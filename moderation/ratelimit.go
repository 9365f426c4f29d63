package moderation

import (
	"sync"
	"time"

	sw "github.com/RussellLuo/slidingwindow"
)

// Limiter tracks per-key sliding windows, one limiter per author (or
// reporter) key. Windows live in process; a restart resets them.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int64
	windows map[string]*sw.Limiter
}

// NewLimiter builds a limiter allowing limit events per window per key
func NewLimiter(window time.Duration, limit int64) *Limiter {
	return &Limiter{
		window:  window,
		limit:   limit,
		windows: make(map[string]*sw.Limiter),
	}
}

// Allow reports whether the event for key fits in its window and records it
// when it does
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.windows[key]
	if !ok {
		lim, _ = sw.NewLimiter(l.window, l.limit, func() (sw.Window, sw.StopFunc) {
			return sw.NewLocalWindow()
		})
		l.windows[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// AllowN is Allow with a per-key allowance, used where the policy tier sets
// the budget. The limit is fixed at first sight of the key.
func (l *Limiter) AllowN(key string, limit int64) bool {
	l.mu.Lock()
	lim, ok := l.windows[key]
	if !ok {
		lim, _ = sw.NewLimiter(l.window, limit, func() (sw.Window, sw.StopFunc) {
			return sw.NewLocalWindow()
		})
		l.windows[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
