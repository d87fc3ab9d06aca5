package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/HouseParty/internal/core"
	"github.com/dkeye/HouseParty/internal/domain"
)

type JoinRequest struct {
	ConnectionID domain.ConnectionID
	Name         string
	PlayerNumber *int
}

type JoinResult struct {
	Player  domain.Player   `json:"player"`
	Players []domain.Player `json:"players"`
}

func (o *Orchestrator) CreateRoom(ctx context.Context) (domain.RoomID, error) {
	id := domain.NewRoomID()
	if err := o.Rooms.CreateRoom(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// JoinRoom puts the connection in the room group before touching the roster,
// so the roster broadcast that follows reaches the joiner too.
func (o *Orchestrator) JoinRoom(ctx context.Context, roomID domain.RoomID, req JoinRequest) (JoinResult, error) {
	if req.ConnectionID == "" {
		return JoinResult{}, domain.ErrConnectionIDEmpty
	}
	if _, err := domain.NormalizeName(req.Name); err != nil {
		return JoinResult{}, err
	}

	group := domain.RoomGroup(roomID)
	if err := o.Hub.AddToGroup(ctx, req.ConnectionID, group); err != nil {
		return JoinResult{}, err
	}

	player, players, err := o.Rooms.JoinRoom(ctx, roomID, req.Name, req.PlayerNumber)
	if err != nil {
		return JoinResult{}, err
	}
	if err := o.Hub.BroadcastToGroup(ctx, group, core.EventPlayerRosterUpdated, players); err != nil {
		return JoinResult{}, err
	}
	o.syncCounter(ctx, roomID, req.ConnectionID)

	log.Info().
		Str("module", "orch").
		Str("room", string(roomID)).
		Str("conn", string(req.ConnectionID)).
		Int("player", player.Number).
		Msg("joined room")
	return JoinResult{Player: player, Players: players}, nil
}

// syncCounter pushes the current counter to a fresh joiner only.
func (o *Orchestrator) syncCounter(ctx context.Context, roomID domain.RoomID, conn domain.ConnectionID) {
	count, err := o.Rooms.GetCounter(ctx, roomID)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(roomID)).Msg("counter sync read")
		return
	}
	if err := o.Hub.SendToConnection(ctx, conn, core.EventCounterUpdated, count); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(conn)).Msg("counter sync send")
	}
}

func (o *Orchestrator) Counter(ctx context.Context, roomID domain.RoomID) (int64, error) {
	return o.Rooms.GetCounter(ctx, roomID)
}

// IncrementCounter is not idempotent: retrying after a lost reply counts twice.
func (o *Orchestrator) IncrementCounter(ctx context.Context, roomID domain.RoomID) (int64, error) {
	n, err := o.Rooms.IncrementCounter(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if err := o.Hub.BroadcastToGroup(ctx, domain.RoomGroup(roomID), core.EventCounterUpdated, n); err != nil {
		return n, err
	}
	return n, nil
}
