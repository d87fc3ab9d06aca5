package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/HouseParty/internal/app/orch"
	"github.com/dkeye/HouseParty/internal/domain"
)

type handlers struct {
	orch *orch.Orchestrator
}

type joinRequest struct {
	ConnectionID string `json:"connectionId" binding:"required"`
	Name         string `json:"name" binding:"required"`
	PlayerNumber *int   `json:"playerNumber"`
}

type mouseRequest struct {
	PlayerNumber *int   `json:"playerNumber" binding:"required,gt=0"`
	Name         string `json:"name" binding:"required"`
	X            *int   `json:"x" binding:"required,min=0,max=2047"`
	Y            *int   `json:"y" binding:"required,min=0,max=2047"`
}

func seatKey(id domain.RoomID) string { return "seat:" + string(id) }

func roomParam(c *gin.Context) (domain.RoomID, bool) {
	id, err := domain.ParseRoomID(c.Param("roomId"))
	if err != nil {
		writeError(c, err)
		return "", false
	}
	return id, true
}

func (h *handlers) createRoom(c *gin.Context) {
	id, err := h.orch.CreateRoom(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", "/room/"+string(id))
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// joinRoom allocates a fresh seat unless the client names one. The seat is
// remembered in the session so a client can look it up after a reload, but it
// is never applied implicitly: tabs share cookies and must not share seats.
func (h *handlers) joinRoom(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		return
	}

	res, err := h.orch.JoinRoom(c.Request.Context(), roomID, orch.JoinRequest{
		ConnectionID: domain.ConnectionID(req.ConnectionID),
		Name:         req.Name,
		PlayerNumber: req.PlayerNumber,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(seatKey(roomID), res.Player.Number)
	if err := session.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("save seat")
	}
	c.JSON(http.StatusOK, res)
}

// lastSeat returns the seat this browser last held in the room, as a hint the
// client may send back as playerNumber.
func (h *handlers) lastSeat(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	n, ok := sessions.Default(c).Get(seatKey(roomID)).(int)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no seat remembered for this room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"playerNumber": n})
}

func (h *handlers) submitMouse(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	var req mouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		return
	}
	err := h.orch.SubmitPresence(c.Request.Context(), roomID, domain.Presence{
		PlayerNumber: *req.PlayerNumber,
		Name:         req.Name,
		X:            *req.X,
		Y:            *req.Y,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *handlers) getCounter(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	n, err := h.orch.Counter(c.Request.Context(), roomID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *handlers) incrementCounter(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	n, err := h.orch.IncrementCounter(c.Request.Context(), roomID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *handlers) negotiate(c *gin.Context) {
	n, err := h.orch.Negotiate()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, domain.ErrBroadcastUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	ev := log.Warn()
	if status == http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Int("status", status).Msg("request failed")
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
