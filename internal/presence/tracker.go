package presence

import (
	"sort"

	"github.com/dkeye/HouseParty/internal/domain"
)

// DefaultDamping is the share of the remaining distance covered per frame.
const DefaultDamping = 0.2

// Slot is the render state of one remote cursor in normalized coordinates.
type Slot struct {
	PlayerNumber int
	Name         string
	CurrentX     float64
	CurrentY     float64
	TargetX      float64
	TargetY      float64
}

// Tracker holds one slot per player number. It has a single writer, the
// local render loop, and is not safe for concurrent use.
type Tracker struct {
	slots map[int]*Slot
}

func NewTracker() *Tracker {
	return &Tracker{slots: make(map[int]*Slot)}
}

// Apply moves only the target of the player's slot. A new slot starts at its target.
func (t *Tracker) Apply(p domain.Presence) {
	if p.PlayerNumber <= 0 {
		return
	}
	tx, ty := Normalize(p.X), Normalize(p.Y)
	s, ok := t.slots[p.PlayerNumber]
	if !ok {
		t.slots[p.PlayerNumber] = &Slot{
			PlayerNumber: p.PlayerNumber,
			Name:         p.Name,
			CurrentX:     tx,
			CurrentY:     ty,
			TargetX:      tx,
			TargetY:      ty,
		}
		return
	}
	if p.Name != "" {
		s.Name = p.Name
	}
	s.TargetX, s.TargetY = tx, ty
}

// Advance moves every current position toward its target by damping.
func (t *Tracker) Advance(damping float64) {
	if damping <= 0 || damping > 1 {
		damping = DefaultDamping
	}
	for _, s := range t.slots {
		s.CurrentX += (s.TargetX - s.CurrentX) * damping
		s.CurrentY += (s.TargetY - s.CurrentY) * damping
	}
}

// Rename takes display names from the authoritative roster.
func (t *Tracker) Rename(roster []domain.Player) {
	for _, p := range roster {
		if s, ok := t.slots[p.Number]; ok && p.Name != "" {
			s.Name = p.Name
		}
	}
}

// Visible returns copies of all slots except self, ordered by player number.
func (t *Tracker) Visible(self int) []Slot {
	out := make([]Slot, 0, len(t.slots))
	for n, s := range t.slots {
		if n == self {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerNumber < out[j].PlayerNumber })
	return out
}
