package triggers

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Debouncer drops repeats of the same trigger type inside a window.
type Debouncer struct {
	mu     sync.Mutex
	cache  *lru.Cache[Type, time.Time]
	window time.Duration
	now    func() time.Time
}

// NewDebouncer returns a debouncer; a zero window disables it.
func NewDebouncer(window time.Duration) *Debouncer {
	c, _ := lru.New[Type, time.Time](len(All))
	return &Debouncer{cache: c, window: window, now: time.Now}
}

// Allow records t and reports whether it is outside the window of the
// previous accepted occurrence.
func (d *Debouncer) Allow(t Type) bool {
	if d == nil || d.window <= 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if last, ok := d.cache.Get(t); ok && now.Sub(last) < d.window {
		return false
	}
	d.cache.Add(t, now)
	return true
}

// Reset forgets every recorded trigger.
func (d *Debouncer) Reset() {
	if d == nil {
		return
	}
	d.cache.Purge()
}
