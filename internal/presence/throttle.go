package presence

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval caps transmission at 30 samples per second.
const DefaultInterval = time.Second / 30

type viewportSample struct {
	px, py, width, height float64
}

// Throttle keeps the latest pointer sample independently of the send rate and
// releases it only when its quantized value changed since the last send.
type Throttle struct {
	mu       sync.Mutex
	latest   *viewportSample
	lastSent *Point
}

// Sample records the pointer position; called on every movement event.
func (t *Throttle) Sample(px, py, width, height float64) {
	t.mu.Lock()
	t.latest = &viewportSample{px: px, py: py, width: width, height: height}
	t.mu.Unlock()
}

// Leave forgets the pointer, e.g. when it leaves the window.
func (t *Throttle) Leave() {
	t.mu.Lock()
	t.latest = nil
	t.mu.Unlock()
}

// Reset forgets what was last sent so the next Tick transmits again.
func (t *Throttle) Reset() {
	t.mu.Lock()
	t.lastSent = nil
	t.mu.Unlock()
}

// Tick returns the point to transmit, if any. Identical consecutive points are
// suppressed entirely; there is no heartbeat.
func (t *Throttle) Tick() (Point, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return Point{}, false
	}
	p, ok := Quantize(t.latest.px, t.latest.py, t.latest.width, t.latest.height)
	if !ok {
		return Point{}, false
	}
	if t.lastSent != nil && *t.lastSent == p {
		return Point{}, false
	}
	t.lastSent = &p
	return p, true
}

// Run calls send for every released point until ctx is done. send errors are
// the caller's business; presence is best effort.
func (t *Throttle) Run(ctx context.Context, interval time.Duration, send func(Point)) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		t.Reset()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p, ok := t.Tick(); ok {
				send(p)
			}
		}
	}
}
