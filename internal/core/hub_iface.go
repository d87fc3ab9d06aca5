package core

import (
	"context"

	"github.com/dkeye/HouseParty/internal/domain"
)

// Hub routes events to groups of realtime connections.
// The coordinator never sees transport details; any pub/sub can sit behind it.
type Hub interface {
	Negotiate() (domain.Negotiation, error)
	// AddToGroup is idempotent. Once it returns, broadcasts to group reach conn.
	AddToGroup(ctx context.Context, conn domain.ConnectionID, group domain.GroupID) error
	BroadcastToGroup(ctx context.Context, group domain.GroupID, event string, payload any) error
	SendToConnection(ctx context.Context, conn domain.ConnectionID, event string, payload any) error
	Close() error
}

// Outbound event names.
const (
	EventPlayerRosterUpdated  = "playerRosterUpdated"
	EventMousePresenceUpdated = "mousePresenceUpdated"
	EventCounterUpdated       = "counterUpdated"
)
