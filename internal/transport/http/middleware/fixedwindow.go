package middleware

import (
	"net/http"
	"sync"
	"time"
)

type windowEntry struct {
	count   int
	resetAt time.Time
}

// FixedWindow limits each client IP to max requests per window. The count
// resets only when the window elapses, so once the allowance is spent every
// further request in that window is rejected.
type FixedWindow struct {
	mu         sync.Mutex
	entries    map[string]*windowEntry
	max        int
	window     time.Duration
	trustProxy bool

	// now is swapped in tests.
	now func() time.Time
}

// NewFixedWindow creates a fixed-window limiter: max requests per window per IP.
func NewFixedWindow(max int, window time.Duration, trustProxy bool) *FixedWindow {
	fw := &FixedWindow{
		entries:    make(map[string]*windowEntry),
		max:        max,
		window:     window,
		trustProxy: trustProxy,
		now:        time.Now,
	}
	go fw.cleanup()
	return fw
}

// allow counts a request for ip and reports whether it fits in the window.
func (fw *FixedWindow) allow(ip string) bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := fw.now()
	e, ok := fw.entries[ip]
	if !ok || !now.Before(e.resetAt) {
		fw.entries[ip] = &windowEntry{count: 1, resetAt: now.Add(fw.window)}
		return true
	}
	e.count++
	return e.count <= fw.max
}

// cleanup drops entries whose window has long elapsed.
func (fw *FixedWindow) cleanup() {
	for {
		time.Sleep(fw.window)
		fw.mu.Lock()
		now := fw.now()
		for ip, e := range fw.entries {
			if !now.Before(e.resetAt) {
				delete(fw.entries, ip)
			}
		}
		fw.mu.Unlock()
	}
}

// Limit is the middleware handler that enforces the window per remote IP.
func (fw *FixedWindow) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !fw.allow(realIP(r, fw.trustProxy)) {
			writeJSONError(w, http.StatusTooManyRequests, "Too many OTP requests, please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
