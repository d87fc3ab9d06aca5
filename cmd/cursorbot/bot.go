package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/HouseParty/internal/core"
	"github.com/dkeye/HouseParty/internal/domain"
	"github.com/dkeye/HouseParty/internal/presence"
)

const (
	viewportW   = 1280
	viewportH   = 720
	framePeriod = time.Second / 60
)

var botNames = []string{"Ann", "Bob", "Cy", "Dee", "Eli", "Fay", "Gus", "Hal"}

func botName(i int) string {
	if i < len(botNames) {
		return botNames[i]
	}
	return fmt.Sprintf("bot%d", i)
}

type inbound struct {
	Type         string          `json:"type"`
	Event        string          `json:"event"`
	Data         json.RawMessage `json:"data"`
	ConnectionID string          `json:"connectionId"`
}

type bot struct {
	api   *client
	room  string
	name  string
	phase float64
}

func (b *bot) run(ctx context.Context) error {
	n, err := b.api.negotiate(ctx)
	if err != nil {
		return fmt.Errorf("negotiate: %w", err)
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, n.URL+"?access_token="+url.QueryEscape(n.AccessToken), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer ws.Close()

	var hello inbound
	if err := ws.ReadJSON(&hello); err != nil || hello.Type != "connected" {
		return fmt.Errorf("handshake: %v %q", err, hello.Type)
	}
	joined, err := b.api.join(ctx, b.room, domain.ConnectionID(hello.ConnectionID), b.name, nil)
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}
	self := joined.Player
	log.Info().Str("bot", b.name).Int("player", self.Number).Int("roster", len(joined.Players)).Msg("joined")

	// the tracker is owned by the render loop; the reader hands it updates
	samples := make(chan domain.Presence, 64)
	rosters := make(chan []domain.Player, 8)
	go b.readLoop(ctx, ws, samples, rosters)

	var throttle presence.Throttle
	go throttle.Run(ctx, presence.DefaultInterval, func(p presence.Point) {
		err := b.api.mouse(ctx, b.room, domain.Presence{PlayerNumber: self.Number, Name: self.Name, X: p.X, Y: p.Y})
		if err != nil && ctx.Err() == nil {
			log.Debug().Err(err).Str("bot", b.name).Msg("presence send failed")
		}
	})

	tracker := presence.NewTracker()
	tracker.Rename(joined.Players)
	frame := time.NewTicker(framePeriod)
	defer frame.Stop()
	report := time.NewTicker(5 * time.Second)
	defer report.Stop()
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-samples:
			if !ok {
				return errors.New("connection lost")
			}
			tracker.Apply(p)
		case roster := <-rosters:
			tracker.Rename(roster)
		case now := <-frame.C:
			t := now.Sub(start).Seconds()
			x := viewportW/2 + math.Cos(t+b.phase)*viewportW/3
			y := viewportH/2 + math.Sin(2*t+b.phase)*viewportH/3
			throttle.Sample(x, y, viewportW, viewportH)
			tracker.Advance(presence.DefaultDamping)
		case <-report.C:
			for _, s := range tracker.Visible(self.Number) {
				log.Debug().Str("bot", b.name).Int("sees", s.PlayerNumber).Str("name", s.Name).
					Float64("x", s.CurrentX).Float64("y", s.CurrentY).Msg("cursor")
			}
		}
	}
}

func (b *bot) readLoop(ctx context.Context, ws *websocket.Conn, samples chan domain.Presence, rosters chan<- []domain.Player) {
	defer close(samples)
	for {
		var msg inbound
		if err := ws.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Str("bot", b.name).Msg("read")
			}
			return
		}
		if msg.Type != "event" {
			continue
		}
		switch msg.Event {
		case core.EventMousePresenceUpdated:
			var p domain.Presence
			if err := json.Unmarshal(msg.Data, &p); err == nil && p.Validate() == nil {
				offerLatest(samples, p)
			}
		case core.EventPlayerRosterUpdated:
			var roster []domain.Player
			if err := json.Unmarshal(msg.Data, &roster); err != nil {
				continue
			}
			select {
			case rosters <- roster:
			case <-ctx.Done():
				return
			}
		}
	}
}

// offerLatest queues p, evicting the oldest queued sample when full. Only the
// newest target matters to the tracker.
func offerLatest(ch chan domain.Presence, p domain.Presence) {
	for {
		select {
		case ch <- p:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
