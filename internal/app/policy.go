package app

import (
	"sync"
	"time"

	"github.com/dkeye/HouseParty/internal/domain"
)

// PresencePolicy decides whether a cursor sample is relayed.
type PresencePolicy interface {
	AllowPresence(room domain.RoomID, player int) bool
}

// AllowAll relays every sample.
type AllowAll struct{}

func (AllowAll) AllowPresence(domain.RoomID, int) bool { return true }

type seatKey struct {
	room   domain.RoomID
	player int
}

// SlidingWindowPolicy allows at most limit samples per seat within interval.
// A well-behaved client at 30 Hz never trips it.
type SlidingWindowPolicy struct {
	mu       sync.Mutex
	history  map[seatKey][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewSlidingWindowPolicy(limit int, interval time.Duration) *SlidingWindowPolicy {
	return &SlidingWindowPolicy{
		history:  make(map[seatKey][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (p *SlidingWindowPolicy) AllowPresence(room domain.RoomID, player int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := seatKey{room: room, player: player}
	now := p.now()
	windowStart := now.Add(-p.interval)

	attempts := p.history[key]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= p.limit {
		p.history[key] = fresh
		return false
	}
	p.history[key] = append(fresh, now)
	return true
}

// Sweep drops seats with no sample inside the window. Rooms are never deleted
// explicitly, so idle seats would otherwise accumulate.
func (p *SlidingWindowPolicy) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	windowStart := p.now().Add(-p.interval)
	removed := 0
	for k, attempts := range p.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(p.history, k)
			removed++
		}
	}
	return removed
}
