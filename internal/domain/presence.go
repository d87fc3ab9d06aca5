package domain

import "strings"

// GridSize is the side of the square presence grid (11 bits per axis).
const GridSize = 2048

// Presence is one cursor sample. Never persisted.
type Presence struct {
	PlayerNumber int    `json:"playerNumber"`
	Name         string `json:"name"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
}

func (p Presence) Validate() error {
	if p.PlayerNumber <= 0 {
		return ErrPlayerNumberMissing
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrNameEmpty
	}
	if !InGrid(p.X) || !InGrid(p.Y) {
		return ErrCoordinateOutOfRange
	}
	return nil
}

func InGrid(v int) bool {
	return v >= 0 && v < GridSize
}
