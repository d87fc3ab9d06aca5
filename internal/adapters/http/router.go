package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/HouseParty/internal/adapters/signal"
	"github.com/dkeye/HouseParty/internal/app/orch"
	"github.com/dkeye/HouseParty/internal/config"
)

const sessionName = "PartySessions"

// sessionStore remembers seats for as long as a room lives.
func sessionStore(secret string, ttl time.Duration) cookie.Store {
	key := []byte(secret)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
	}
	store := cookie.NewStore(key)
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return store
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, hub *signal.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(sessions.Sessions(sessionName, sessionStore(cfg.Secret, cfg.RoomTTL)))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handlers{orch: o}
	api := r.Group("/api")

	api.POST("/rooms", h.createRoom)
	rooms := api.Group("/rooms/:roomId")
	rooms.POST("/join", h.joinRoom)
	rooms.GET("/seat", h.lastSeat)
	rooms.POST("/mouse", h.submitMouse)
	rooms.GET("/counter", h.getCounter)
	rooms.POST("/counter", h.incrementCounter)

	api.POST("/realtime/negotiate", h.negotiate)
	r.GET(signal.RealtimePath, func(c *gin.Context) {
		hub.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("realtime", signal.RealtimePath).Msg("router setup")
	return r
}
