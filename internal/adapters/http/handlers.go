package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/hexark/planning-poker/internal/config"
	"github.com/hexark/planning-poker/internal/core"
	"github.com/hexark/planning-poker/internal/domain"
	"github.com/hexark/planning-poker/internal/session"
)

type RoomController struct {
	engine *session.Engine
	cfg    *config.Config
}

func NewRoomController(engine *session.Engine, cfg *config.Config) *RoomController {
	return &RoomController{engine: engine, cfg: cfg}
}

type createRoomRequest struct {
	Name string `json:"name"`
}

type joinRoomRequest struct {
	Name string `json:"name"`
}

type voteRequest struct {
	ParticipantID string `json:"participantId"`
	Estimate      string `json:"estimate"`
}

type advanceRequest struct {
	Outcome string `json:"outcome"`
}

func (ctl *RoomController) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctl.writeError(c, fmt.Errorf("invalid body: %w", core.ErrInvalidInput))
		return
	}

	id, err := ctl.engine.CreateRoom(c.Request.Context(), req.Name, c.ClientIP())
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"roomId": id})
}

func (ctl *RoomController) GetRoom(c *gin.Context) {
	roomID := domain.RoomID(c.Param("roomId"))
	viewer := domain.ParticipantID(c.Query("participantId"))

	view, err := ctl.engine.Room(c.Request.Context(), roomID, viewer)
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (ctl *RoomController) JoinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctl.writeError(c, fmt.Errorf("invalid body: %w", core.ErrInvalidInput))
		return
	}

	p, err := ctl.engine.JoinRoom(c.Request.Context(), domain.RoomID(c.Param("roomId")), req.Name)
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participantId": p.ID})
}

func (ctl *RoomController) SubmitVote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctl.writeError(c, fmt.Errorf("invalid body: %w", core.ErrInvalidInput))
		return
	}

	err := ctl.engine.SubmitVote(c.Request.Context(), domain.RoomID(c.Param("roomId")),
		domain.ParticipantID(req.ParticipantID), req.Estimate)
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (ctl *RoomController) RevealVotes(c *gin.Context) {
	if err := ctl.engine.RevealVotes(c.Request.Context(), domain.RoomID(c.Param("roomId"))); err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (ctl *RoomController) AdvanceRound(c *gin.Context) {
	var req advanceRequest
	// Body is optional: advancing without an outcome is legal.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			ctl.writeError(c, fmt.Errorf("invalid body: %w", core.ErrInvalidInput))
			return
		}
	}

	if err := ctl.engine.AdvanceRound(c.Request.Context(), domain.RoomID(c.Param("roomId")), req.Outcome); err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// writeError maps engine errors onto the stable wire taxonomy. Anything
// not recognized is a store or transport failure and comes back as 500;
// its detail is only exposed outside release mode.
func (ctl *RoomController) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": err.Error()})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "room not found"})
	case errors.Is(err, core.ErrRateLimited):
		window := ctl.cfg.RateLimitWindow
		c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "rate_limited",
			"message": fmt.Sprintf("too many requests, retry after %s", window),
		})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("operation failed")
		body := gin.H{"error": "unavailable", "message": "internal error"}
		if ctl.cfg.Mode != "release" {
			body["detail"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}
