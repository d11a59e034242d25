// Package traffic keeps sliding windows of dashboard lookup outcomes and
// rate-limit denials. Health reporting and window gauges read from it.
package traffic

import (
	"sync"
	"time"
)

// retention bounds how long outcomes are kept regardless of the window asked for.
const retention = 10 * time.Minute

var defaultTracker = NewTracker(time.Now)

// RecordLookup records the outcome of one dashboard lookup.
func RecordLookup(ok bool) {
	defaultTracker.RecordLookup(ok)
}

// RecordDenied records a rate-limit denial (429).
func RecordDenied() {
	defaultTracker.RecordDenied()
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// ErrorRate returns (failed, total) lookups within the window.
func ErrorRate(window time.Duration) (failed, total int) {
	return defaultTracker.ErrorRate(window)
}

// Degraded reports whether failed lookups reached pct percent of at least minLookups lookups in the window.
func Degraded(window time.Duration, pct, minLookups int) bool {
	return defaultTracker.Degraded(window, pct, minLookups)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker holds timestamped lookup outcomes and denials.
type Tracker struct {
	mu      sync.Mutex
	now     func() time.Time
	lookups []outcome
	denials []time.Time
}

type outcome struct {
	at time.Time
	ok bool
}

// NewTracker returns a tracker using now as its clock.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

func (t *Tracker) RecordLookup(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.lookups = append(t.lookups, outcome{at: now, ok: ok})
	t.pruneLocked(now)
}

func (t *Tracker) RecordDenied() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.denials = append(t.denials, now)
	t.pruneLocked(now)
}

func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	n := 0
	for _, ts := range t.denials {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

func (t *Tracker) ErrorRate(window time.Duration) (failed, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	for _, o := range t.lookups {
		if o.at.Before(cutoff) {
			continue
		}
		total++
		if !o.ok {
			failed++
		}
	}
	return failed, total
}

func (t *Tracker) Degraded(window time.Duration, pct, minLookups int) bool {
	if pct <= 0 {
		return false
	}
	failed, total := t.ErrorRate(window)
	if total == 0 || total < minLookups {
		return false
	}
	return failed*100 >= pct*total
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lookups = nil
	t.denials = nil
}

// pruneLocked drops entries older than retention. Entries are appended in time order.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	i := 0
	for ; i < len(t.lookups) && t.lookups[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.lookups = append(t.lookups[:0], t.lookups[i:]...)
	}
	j := 0
	for ; j < len(t.denials) && t.denials[j].Before(cutoff); j++ {
	}
	if j > 0 {
		t.denials = append(t.denials[:0], t.denials[j:]...)
	}
}
