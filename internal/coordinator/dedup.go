package coordinator

import (
	"sync"
	"time"
)

// DedupWindow suppresses duplicate webhook deliveries: a key seen within the
// window is reported as a duplicate. Entries are pruned opportunistically on
// each insert, so memory stays bounded by the delivery rate times the window.
type DedupWindow struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

// NewDedupWindow creates a window with the given duration.
func NewDedupWindow(window time.Duration) *DedupWindow {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &DedupWindow{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Observe records a delivery key and reports whether it was already seen
// inside the window. The first observation of a key returns false.
func (d *DedupWindow) Observe(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.pruneLocked(now)

	if at, ok := d.seen[key]; ok && now.Sub(at) < d.window {
		return true
	}
	d.seen[key] = now
	return false
}

// Forget drops a key so a later identical delivery is processed again. Used
// when enqueuing fails after the key was recorded.
func (d *DedupWindow) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
}

// Len reports the number of tracked keys, for tests and status output.
func (d *DedupWindow) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *DedupWindow) pruneLocked(now time.Time) {
	for key, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, key)
		}
	}
}
