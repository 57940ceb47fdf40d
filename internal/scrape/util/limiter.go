package util

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter rate-limits per hostname and can hold a host back for a
// cooldown after the site signals throttling.
type HostLimiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	pause map[string]time.Time
	r     rate.Limit
	b     int
}

func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	if burst <= 0 {
		burst = 1
	}
	r := rate.Limit(reqPerSec)
	if reqPerSec <= 0 {
		r = rate.Inf
	}
	return &HostLimiter{
		m:     make(map[string]*rate.Limiter),
		pause: make(map[string]time.Time),
		r:     r,
		b:     burst,
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "_"
	}
	return u.Host
}

func (hl *HostLimiter) limiterFor(host string) (*rate.Limiter, time.Time) {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	lim, ok := hl.m[host]
	if !ok {
		lim = rate.NewLimiter(hl.r, hl.b)
		hl.m[host] = lim
	}
	return lim, hl.pause[host]
}

// Pause blocks every request to raw's host until d has elapsed. A shorter
// pause never cuts an existing longer one.
func (hl *HostLimiter) Pause(raw string, d time.Duration) {
	host := hostOf(raw)
	until := time.Now().Add(d)

	hl.mu.Lock()
	defer hl.mu.Unlock()
	if cur, ok := hl.pause[host]; !ok || until.After(cur) {
		hl.pause[host] = until
	}
}

func (hl *HostLimiter) PausedUntil(raw string) time.Time {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	return hl.pause[hostOf(raw)]
}

func (hl *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	lim, until := hl.limiterFor(hostOf(raw))
	if d := time.Until(until); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return lim.Wait(ctx)
}
