// Package ratelimit gates outbound provider requests. Both limiters wrap the
// same Doer shape the provider clients accept, so they stack transparently.
package ratelimit

import (
	"net/http"
	"sync"
	"time"
)

// Doer is the subset of *http.Client the limiters wrap.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// MinInterval enforces a minimum time between request starts.
// Concurrent calls reserve consecutive slots, or return early if the
// request context is canceled.
type MinInterval struct {
	Next     Doer
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func (m *MinInterval) Do(req *http.Request) (*http.Response, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		now := time.Now()
		slot := m.next
		if slot.Before(now) {
			slot = now
		}
		m.next = slot.Add(m.Interval)
		m.mu.Unlock()

		if wait := time.Until(slot); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-t.C:
			}
		}
	}
	return m.Next.Do(req)
}

// Wrap applies the configured limiter to next. rpm takes precedence over
// minInterval; with neither set next is returned unchanged.
func Wrap(next Doer, rpm, burst int, minInterval time.Duration) Doer {
	switch {
	case rpm > 0:
		if burst <= 0 {
			burst = 1
		}
		return &TokenBucketDoer{Next: next, TB: PerMinute(rpm, burst)}
	case minInterval > 0:
		return &MinInterval{Next: next, Interval: minInterval}
	default:
		return next
	}
}
