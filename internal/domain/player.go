// Package domain contains entities without transport or storage logic.
package domain

import (
	"strings"
	"unicode/utf8"
)

const MaxPlayerNameLen = 10

// Player is a seat in a room roster.
type Player struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

// NormalizeName trims the raw name and cuts it to MaxPlayerNameLen runes.
func NormalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxPlayerNameLen {
		name = strings.TrimSpace(string([]rune(name)[:MaxPlayerNameLen]))
	}
	return name, nil
}
