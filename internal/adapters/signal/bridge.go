package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type bridgeKind string

const (
	kindGroup      bridgeKind = "group"
	kindConnection bridgeKind = "conn"
	kindJoin       bridgeKind = "join"
)

// bridgeMessage travels between hub instances on one subject, so messages
// from a single instance arrive everywhere in publish order.
type bridgeMessage struct {
	Origin string     `json:"origin"`
	Kind   bridgeKind `json:"kind"`
	Target string     `json:"target"`
	Group  string     `json:"group,omitempty"`
	Frame  []byte     `json:"frame,omitempty"`
}

// natsBridge fans hub traffic out to other instances sharing the subject.
type natsBridge struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	origin  string
}

func dialBridge(url, subject, origin string, deliver func(bridgeMessage)) (*natsBridge, error) {
	nc, err := nats.Connect(url,
		nats.Name("houseparty-hub-"+origin),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Str("module", "signal.bridge").Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("module", "signal.bridge").Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	b := &natsBridge{nc: nc, subject: subject, origin: origin}
	b.sub, err = nc.Subscribe(subject, func(m *nats.Msg) {
		var bm bridgeMessage
		if err := json.Unmarshal(m.Data, &bm); err != nil {
			log.Warn().Err(err).Str("module", "signal.bridge").Msg("bad bridge message")
			return
		}
		if bm.Origin == origin {
			return
		}
		deliver(bm)
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}
	// the subscription must be live on the server before the hub reports ready
	if err := nc.Flush(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats subscribe flush: %w", err)
	}
	log.Info().Str("module", "signal.bridge").Str("subject", subject).Str("origin", origin).Msg("bridge connected")
	return b, nil
}

func (b *natsBridge) publish(bm bridgeMessage) error {
	bm.Origin = b.origin
	data, err := json.Marshal(bm)
	if err != nil {
		return err
	}
	return b.nc.Publish(b.subject, data)
}

const flushTimeout = 2 * time.Second

// flush waits until the server has seen everything published so far.
func (b *natsBridge) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	return b.nc.FlushWithContext(ctx)
}

func (b *natsBridge) close() error {
	if err := b.sub.Unsubscribe(); err != nil {
		log.Warn().Err(err).Str("module", "signal.bridge").Msg("unsubscribe")
	}
	return b.nc.Drain()
}
