package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/HouseParty/internal/app"
	"github.com/dkeye/HouseParty/internal/core"
	"github.com/dkeye/HouseParty/internal/domain"
)

// Orchestrator runs the inbound room operations: it validates, mutates room
// state through the coordinator and pushes the result through the hub.
type Orchestrator struct {
	Rooms  *app.Coordinator
	Hub    core.Hub
	Policy app.PresencePolicy
}

func (o *Orchestrator) Negotiate() (domain.Negotiation, error) {
	return o.Hub.Negotiate()
}

// SubmitPresence relays a cursor sample to the sender's room, sender included.
// Samples over the policy's rate are dropped without error.
func (o *Orchestrator) SubmitPresence(ctx context.Context, roomID domain.RoomID, p domain.Presence) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if o.Policy != nil && !o.Policy.AllowPresence(roomID, p.PlayerNumber) {
		log.Debug().Str("module", "orch").Str("room", string(roomID)).Int("player", p.PlayerNumber).Msg("presence throttled")
		return nil
	}
	return o.Hub.BroadcastToGroup(ctx, domain.RoomGroup(roomID), core.EventMousePresenceUpdated, p)
}
