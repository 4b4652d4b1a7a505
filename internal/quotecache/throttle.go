package quotecache

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum interval between upstream requests per logical
// request class. Calls inside the window are refused, not queued.
type Throttle struct {
	mu       sync.Mutex
	window   time.Duration
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

func NewThrottle(window time.Duration) *Throttle {
	return &Throttle{
		window:   window,
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

// WithClock overrides time.Now, for tests.
func (t *Throttle) WithClock(now func() time.Time) *Throttle {
	t.now = now
	return t
}

// Allow reports whether a request of class may go upstream now, and records it if so.
func (t *Throttle) Allow(class string) bool {
	if t.window <= 0 {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	lim, ok := t.limiters[class]
	if !ok {
		lim = rate.NewLimiter(rate.Every(t.window), 1)
		t.limiters[class] = lim
	}
	return lim.AllowN(t.now(), 1)
}

// Window returns the configured minimum interval.
func (t *Throttle) Window() time.Duration {
	return t.window
}
