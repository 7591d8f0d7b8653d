// Package ratelimit provides an in-memory fixed-window request counter.
//
// The limiter is constructed once by the server and handed to the handlers
// that need it. Its state lives only in memory and resets on restart.
package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration // time until the key's window ends
}

// RetryAfterSeconds is ResetIn rounded up to whole seconds, at least 1.
func (d Decision) RetryAfterSeconds() int {
	secs := int((d.ResetIn + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

type window struct {
	count   int
	resetAt time.Time
}

// FixedWindow allows up to limit requests per key in each window. A key's
// window starts with its first request.
type FixedWindow struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewFixedWindow creates a limiter allowing limit requests per period.
func NewFixedWindow(limit int, period time.Duration) *FixedWindow {
	return &FixedWindow{
		limit:   limit,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Allow counts one request for key.
func (f *FixedWindow) Allow(key string) Decision {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	w, exists := f.windows[key]
	if !exists || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(f.period)}
		f.windows[key] = w
	}

	if w.count >= f.limit {
		return Decision{Allowed: false, Remaining: 0, ResetIn: w.resetAt.Sub(now)}
	}

	w.count++
	return Decision{Allowed: true, Remaining: f.limit - w.count, ResetIn: w.resetAt.Sub(now)}
}

// Sweep drops expired windows and returns how many were removed.
func (f *FixedWindow) Sweep() int {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	removed := 0
	for key, w := range f.windows {
		if !now.Before(w.resetAt) {
			delete(f.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (f *FixedWindow) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.windows)
}

// Run sweeps every interval until ctx is done. It blocks.
func (f *FixedWindow) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := f.Sweep()
			if onSweep != nil {
				onSweep(removed)
			}
		}
	}
}

// ClientKey derives a best-effort client identifier from proxy headers.
// The headers are not trusted for anything beyond rate limiting.
func ClientKey(h http.Header) string {
	if fwd := h.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	for _, name := range []string{"X-Real-IP", "CF-Connecting-IP"} {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return v
		}
	}
	return "unknown"
}
