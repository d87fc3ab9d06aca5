package signal

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/HouseParty/internal/core"
	"github.com/dkeye/HouseParty/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func accessToken(c *gin.Context) string {
	if t := c.Query("access_token"); t != "" {
		return t
	}
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}

// HandleSignal upgrades a negotiated client and binds it under the connection
// id carried by its access token. Reconnecting with the same token replaces
// the old socket and keeps group membership.
func (h *Hub) HandleSignal(ctx context.Context, c *gin.Context) {
	id, err := h.tokens.Parse(accessToken(c))
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("rejected access token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid access token"})
		return
	}
	if h.closed.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Msg("new WS connection")

	conn := NewWsSignalConn(id, ws, h.opts.SendBuffer)
	if !h.attach(id, conn) {
		return
	}
	sendJSON(conn, struct {
		Type         string              `json:"type"`
		ConnectionID domain.ConnectionID `json:"connectionId"`
	}{
		Type:         "connected",
		ConnectionID: id,
	})

	ctx, cancel := context.WithCancel(ctx)
	go h.writePump(ctx, conn)
	go h.readPump(ctx, cancel, conn)
}

// attach binds conn under id, closing any socket it replaces. A Close that ran
// while the socket was upgrading has already emptied the registry, so the
// closed flag is checked again after binding.
func (h *Hub) attach(id domain.ConnectionID, conn core.SignalConnection) bool {
	if prev := h.registry.Bind(id, conn); prev != nil {
		prev.Close()
	}
	if h.closed.Load() {
		h.registry.Unbind(id, conn)
		conn.Close()
		log.Info().Str("module", "signal").Str("conn", string(id)).Msg("hub closed during handshake")
		return false
	}
	return true
}
