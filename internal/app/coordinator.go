package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/HouseParty/internal/core"
	"github.com/dkeye/HouseParty/internal/domain"
)

const DefaultRoomTTL = 24 * time.Hour

func nextPlayerKey(id domain.RoomID) string { return "room:" + string(id) + ":players:next" }
func playersKey(id domain.RoomID) string    { return "room:" + string(id) + ":players" }
func counterKey(id domain.RoomID) string    { return "room:" + string(id) + ":counter" }

// Coordinator is the only writer of room state. It keeps nothing in process:
// every call reads through to the store and all ordering comes from Incr.
type Coordinator struct {
	Store core.SessionStore
	TTL   time.Duration
}

func NewCoordinator(store core.SessionStore, ttl time.Duration) *Coordinator {
	if ttl <= 0 {
		ttl = DefaultRoomTTL
	}
	return &Coordinator{Store: store, TTL: ttl}
}

// CreateRoom resets the room's player counter. Calling it twice restarts numbering.
func (c *Coordinator) CreateRoom(ctx context.Context, id domain.RoomID) error {
	if err := c.Store.Set(ctx, nextPlayerKey(id), "0", c.TTL); err != nil {
		return storeErr(err)
	}
	log.Info().Str("module", "app.coordinator").Str("room", string(id)).Msg("room created")
	return nil
}

// JoinRoom seats name in the room, reusing requested when that seat is still on
// the roster, and returns the seat with the whole roster sorted by number.
func (c *Coordinator) JoinRoom(
	ctx context.Context,
	id domain.RoomID,
	name string,
	requested *int,
) (domain.Player, []domain.Player, error) {
	trimmed, err := domain.NormalizeName(name)
	if err != nil {
		return domain.Player{}, nil, err
	}

	number, reclaimed, err := c.resolvePlayerNumber(ctx, id, requested)
	if err != nil {
		return domain.Player{}, nil, err
	}

	if err := c.Store.HSet(ctx, playersKey(id), strconv.Itoa(number), trimmed); err != nil {
		return domain.Player{}, nil, storeErr(err)
	}
	if err := c.refresh(ctx, id); err != nil {
		return domain.Player{}, nil, err
	}

	players, err := c.Roster(ctx, id)
	if err != nil {
		return domain.Player{}, nil, err
	}
	log.Info().
		Str("module", "app.coordinator").
		Str("room", string(id)).
		Int("player", number).
		Bool("reclaimed", reclaimed).
		Int("roster", len(players)).
		Msg("player joined")
	return domain.Player{Number: number, Name: trimmed}, players, nil
}

// resolvePlayerNumber checks the roster for requested before allocating.
// The check is not atomic with the later HSet; a fresh number only exists once
// Incr has handed it out, so a client cannot race a seat nobody owns yet.
func (c *Coordinator) resolvePlayerNumber(ctx context.Context, id domain.RoomID, requested *int) (int, bool, error) {
	if requested != nil && *requested > 0 {
		_, ok, err := c.Store.HGet(ctx, playersKey(id), strconv.Itoa(*requested))
		if err != nil {
			return 0, false, storeErr(err)
		}
		if ok {
			return *requested, true, nil
		}
	}
	n, err := c.Store.Incr(ctx, nextPlayerKey(id))
	if err != nil {
		return 0, false, storeErr(err)
	}
	return int(n), false, nil
}

// Roster reads every seat, skipping fields that are not player numbers.
func (c *Coordinator) Roster(ctx context.Context, id domain.RoomID) ([]domain.Player, error) {
	entries, err := c.Store.HGetAll(ctx, playersKey(id))
	if err != nil {
		return nil, storeErr(err)
	}
	players := make([]domain.Player, 0, len(entries))
	for field, name := range entries {
		n, err := strconv.Atoi(field)
		if err != nil || n <= 0 {
			log.Warn().Str("module", "app.coordinator").Str("room", string(id)).Str("field", field).Msg("skipping corrupt roster entry")
			continue
		}
		players = append(players, domain.Player{Number: n, Name: name})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Number < players[j].Number })
	return players, nil
}

// GetCounter returns 0 for an absent, expired or unparsable counter.
func (c *Coordinator) GetCounter(ctx context.Context, id domain.RoomID) (int64, error) {
	v, ok, err := c.Store.Get(ctx, counterKey(id))
	if err != nil {
		return 0, storeErr(err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Warn().Str("module", "app.coordinator").Str("room", string(id)).Str("value", v).Msg("unparsable counter")
		return 0, nil
	}
	return n, nil
}

func (c *Coordinator) IncrementCounter(ctx context.Context, id domain.RoomID) (int64, error) {
	n, err := c.Store.Incr(ctx, counterKey(id))
	if err != nil {
		return 0, storeErr(err)
	}
	if err := c.Store.Expire(ctx, c.TTL, counterKey(id)); err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

func (c *Coordinator) refresh(ctx context.Context, id domain.RoomID) error {
	if err := c.Store.Expire(ctx, c.TTL, nextPlayerKey(id), playersKey(id)); err != nil {
		return storeErr(err)
	}
	return nil
}

// storeErr makes sure every store failure reads as ErrStoreUnavailable.
func storeErr(err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}
