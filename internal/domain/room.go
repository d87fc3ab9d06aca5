package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type (
	RoomID       string
	ConnectionID string
	GroupID      string
)

var roomIDPattern = regexp.MustCompile(`^[0-9A-Za-z-]{1,64}$`)

// NewRoomID returns a routing-safe hex token.
func NewRoomID() RoomID {
	return RoomID(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func ParseRoomID(raw string) (RoomID, error) {
	if !roomIDPattern.MatchString(raw) {
		return "", fmt.Errorf("%w: room id %q", ErrInvalidInput, raw)
	}
	return RoomID(raw), nil
}

// RoomGroup is the hub group every member of a room belongs to.
func RoomGroup(id RoomID) GroupID {
	return GroupID("room:" + string(id))
}

// Negotiation carries what a client needs to open its realtime channel.
type Negotiation struct {
	URL         string `json:"url"`
	AccessToken string `json:"accessToken"`
}
