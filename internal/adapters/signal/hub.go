package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/HouseParty/internal/app"
	"github.com/dkeye/HouseParty/internal/core"
	"github.com/dkeye/HouseParty/internal/domain"
)

var ErrHubClosed = errors.New("hub closed")

// RealtimePath is where clients open their websocket.
const RealtimePath = "/api/realtime"

type Options struct {
	PublicURL   string
	Secret      string
	TokenTTL    time.Duration
	SendBuffer  int
	ReadLimit   int64
	PingPeriod  time.Duration
	NATSURL     string
	NATSSubject string
}

func (o *Options) defaults() {
	if o.TokenTTL <= 0 {
		o.TokenTTL = time.Hour
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.NATSSubject == "" {
		o.NATSSubject = "houseparty.hub"
	}
}

// envelope is what a client receives for every hub event.
type envelope struct {
	Type  string `json:"type"`
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// hubContext is the hub's channel to the outside world, opened on first use.
type hubContext struct {
	bridge *natsBridge
}

// Hub implements core.Hub over websocket connections held by this process,
// optionally bridged to other instances through NATS.
type Hub struct {
	opts     Options
	origin   string
	tokens   *tokenCodec
	registry *app.Registry

	open      func() (*hubContext, error)
	opened    atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ core.Hub = (*Hub)(nil)

func NewHub(opts Options) *Hub {
	opts.defaults()
	h := &Hub{
		opts:     opts,
		origin:   uuid.NewString(),
		tokens:   newTokenCodec(opts.Secret, opts.TokenTTL),
		registry: app.NewRegistry(),
	}
	h.open = sync.OnceValues(h.openContext)
	return h
}

func (h *Hub) openContext() (*hubContext, error) {
	hc := &hubContext{}
	if h.opts.NATSURL != "" {
		b, err := dialBridge(h.opts.NATSURL, h.opts.NATSSubject, h.origin, h.deliverRemote)
		if err != nil {
			return nil, err
		}
		hc.bridge = b
	}
	h.opened.Store(true)
	log.Info().Str("module", "signal.hub").Bool("bridged", hc.bridge != nil).Msg("hub context opened")
	return hc, nil
}

// acquire returns the lazily opened hub context. Concurrent first callers
// share one initialization; a cancelled ctx fails before waiting on it.
func (h *Hub) acquire(ctx context.Context) (*hubContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.closed.Load() {
		return nil, fmt.Errorf("%w: %w", domain.ErrBroadcastUnavailable, ErrHubClosed)
	}
	hc, err := h.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBroadcastUnavailable, err)
	}
	return hc, nil
}

func (h *Hub) Negotiate() (domain.Negotiation, error) {
	id := domain.ConnectionID(uuid.NewString())
	token, err := h.tokens.Issue(id)
	if err != nil {
		return domain.Negotiation{}, fmt.Errorf("%w: issue token: %w", domain.ErrBroadcastUnavailable, err)
	}
	return domain.Negotiation{
		URL:         realtimeURL(h.opts.PublicURL),
		AccessToken: token,
	}, nil
}

func realtimeURL(public string) string {
	base := strings.TrimRight(public, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + RealtimePath
}

func (h *Hub) AddToGroup(ctx context.Context, conn domain.ConnectionID, group domain.GroupID) error {
	if conn == "" {
		return domain.ErrConnectionIDEmpty
	}
	hc, err := h.acquire(ctx)
	if err != nil {
		return err
	}
	h.registry.AddToGroup(conn, group)
	if hc.bridge == nil {
		return nil
	}
	if _, local := h.registry.Connection(conn); local {
		return nil
	}
	// The connection may live on another instance; announce the membership and
	// wait for the server so a following broadcast cannot overtake it.
	if err := hc.bridge.publish(bridgeMessage{Kind: kindJoin, Target: string(conn), Group: string(group)}); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBroadcastUnavailable, err)
	}
	if err := hc.bridge.flush(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBroadcastUnavailable, err)
	}
	return nil
}

func (h *Hub) BroadcastToGroup(ctx context.Context, group domain.GroupID, event string, payload any) error {
	hc, err := h.acquire(ctx)
	if err != nil {
		return err
	}
	frame, err := encodeEvent(event, payload)
	if err != nil {
		return err
	}
	h.fanoutLocal(group, frame)
	if hc.bridge != nil {
		if err := hc.bridge.publish(bridgeMessage{Kind: kindGroup, Target: string(group), Frame: frame}); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrBroadcastUnavailable, err)
		}
	}
	return nil
}

func (h *Hub) SendToConnection(ctx context.Context, conn domain.ConnectionID, event string, payload any) error {
	hc, err := h.acquire(ctx)
	if err != nil {
		return err
	}
	frame, err := encodeEvent(event, payload)
	if err != nil {
		return err
	}
	if c, ok := h.registry.Connection(conn); ok {
		if err := c.TrySend(frame); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrBroadcastUnavailable, err)
		}
		return nil
	}
	if hc.bridge == nil {
		return fmt.Errorf("%w: connection %s not connected", domain.ErrBroadcastUnavailable, conn)
	}
	if err := hc.bridge.publish(bridgeMessage{Kind: kindConnection, Target: string(conn), Frame: frame}); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBroadcastUnavailable, err)
	}
	return nil
}

// Close tears the hub context down once and disconnects local clients.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		if h.opened.Load() {
			if hc, err := h.open(); err == nil && hc.bridge != nil {
				h.closeErr = hc.bridge.close()
			}
		}
		h.registry.CloseAll()
		log.Info().Str("module", "signal.hub").Msg("hub closed")
	})
	return h.closeErr
}

func (h *Hub) fanoutLocal(group domain.GroupID, frame core.Frame) {
	members := h.registry.MembersOf(group)
	sent, dropped := 0, 0
	for _, m := range members {
		if err := m.Conn.TrySend(frame); err != nil {
			dropped++
			log.Warn().Err(err).Str("module", "signal.hub").Str("conn", string(m.ID)).Str("group", string(group)).Msg("dropped frame")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "signal.hub").Str("group", string(group)).Int("sent_to", sent).Int("dropped", dropped).Msg("broadcast result")
}

// deliverRemote applies traffic published by another instance.
func (h *Hub) deliverRemote(bm bridgeMessage) {
	switch bm.Kind {
	case kindGroup:
		h.fanoutLocal(domain.GroupID(bm.Target), bm.Frame)
	case kindConnection:
		if c, ok := h.registry.Connection(domain.ConnectionID(bm.Target)); ok {
			if err := c.TrySend(bm.Frame); err != nil {
				log.Warn().Err(err).Str("module", "signal.hub").Str("conn", bm.Target).Msg("dropped remote frame")
			}
		}
	case kindJoin:
		// The connection may not have opened its socket yet; record the
		// membership like a local add so delivery starts once it binds here.
		h.registry.AddToGroup(domain.ConnectionID(bm.Target), domain.GroupID(bm.Group))
	default:
		log.Warn().Str("module", "signal.bridge").Str("kind", string(bm.Kind)).Msg("unknown bridge message")
	}
}

func encodeEvent(event string, payload any) (core.Frame, error) {
	b, err := json.Marshal(envelope{Type: "event", Event: event, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %w", domain.ErrInvalidInput, event, err)
	}
	return b, nil
}
