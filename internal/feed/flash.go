package feed

import (
	"sync"
	"time"
)

// FlashDirection indicates a transient significant move on a tracked field.
type FlashDirection string

const (
	FlashUp   FlashDirection = "up"
	FlashDown FlashDirection = "down"
	FlashNone FlashDirection = ""
)

// DefaultFlashHold matches the dashboard's highlight duration.
const DefaultFlashHold = 600 * time.Millisecond

// FlashState is the externally visible state of one tracked field.
type FlashState struct {
	Direction FlashDirection `json:"direction"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// FlashOptions tune a tracker instance. Threshold is the relative change
// that qualifies as a flash (e.g. 0.001 for price-like fields, 0.02-0.05
// for aggregates). Hold is how long a flash stays lit with no further
// qualifying change.
type FlashOptions struct {
	Threshold float64
	Hold      time.Duration
	Clock     Clock
}

type flashEntry struct {
	previous  float64
	seen      bool
	direction FlashDirection
	expiresAt time.Time
	timer     TimerHandle
}

// FlashTracker remembers the previous value of each tracked field and emits
// up/down signals on significant relative change. Each fired flash owns a
// cancellable clear timer; Close releases them all.
type FlashTracker struct {
	mu      sync.Mutex
	opts    FlashOptions
	entries map[string]*flashEntry
	closed  bool
}

// NewFlashTracker builds a tracker. A zero Hold falls back to the default
// window; a nil Clock falls back to wall time.
func NewFlashTracker(opts FlashOptions) *FlashTracker {
	if opts.Hold <= 0 {
		opts.Hold = DefaultFlashHold
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	return &FlashTracker{
		opts:    opts,
		entries: make(map[string]*flashEntry),
	}
}

// Observe evaluates a new value for the field and returns the flash fired
// by this observation, if any. The baseline observation of a field never
// flashes. The previous value is always replaced, flash or not, so a run of
// sub-threshold drifts cannot accumulate into a false trigger.
func (t *FlashTracker) Observe(key string, value float64) FlashDirection {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return FlashNone
	}

	entry, ok := t.entries[key]
	if !ok {
		entry = &flashEntry{}
		t.entries[key] = entry
	}

	fired := FlashNone
	if entry.seen {
		change := 0.0
		if entry.previous != 0 {
			change = (value - entry.previous) / entry.previous
			if change < 0 {
				change = -change
			}
		}
		if change > t.opts.Threshold {
			if value > entry.previous {
				fired = FlashUp
			} else {
				fired = FlashDown
			}
			t.arm(key, entry, fired)
		}
	}

	entry.previous = value
	entry.seen = true
	return fired
}

// arm lights the flash and restarts its clear timer. Caller holds the lock.
func (t *FlashTracker) arm(key string, entry *flashEntry, dir FlashDirection) {
	if entry.timer != nil {
		entry.timer.Stop()
	}

	expiresAt := t.opts.Clock.Now().Add(t.opts.Hold)
	entry.direction = dir
	entry.expiresAt = expiresAt

	entry.timer = t.opts.Clock.AfterFunc(t.opts.Hold, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		current, ok := t.entries[key]
		if !ok || current.expiresAt.After(expiresAt) {
			// A newer qualifying change restarted the window.
			return
		}
		current.direction = FlashNone
		current.timer = nil
	})
}

// Direction reports the current flash for a field. Expiry is also checked
// lazily against the clock so reads stay correct under a test clock whose
// timers have not fired yet.
func (t *FlashTracker) Direction(key string) FlashDirection {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok || entry.direction == FlashNone {
		return FlashNone
	}
	if !t.opts.Clock.Now().Before(entry.expiresAt) {
		entry.direction = FlashNone
		return FlashNone
	}
	return entry.direction
}

// Snapshot returns the currently lit flashes keyed by field.
func (t *FlashTracker) Snapshot() map[string]FlashState {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.opts.Clock.Now()
	out := make(map[string]FlashState)
	for key, entry := range t.entries {
		if entry.direction == FlashNone || !now.Before(entry.expiresAt) {
			continue
		}
		out[key] = FlashState{Direction: entry.direction, ExpiresAt: entry.expiresAt}
	}
	return out
}

// Close cancels all outstanding clear timers. Observe becomes a no-op
// afterwards; tearing down the owning session must call this to avoid
// callbacks touching disposed state.
func (t *FlashTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	for _, entry := range t.entries {
		if entry.timer != nil {
			entry.timer.Stop()
			entry.timer = nil
		}
	}
	t.entries = make(map[string]*flashEntry)
}
