package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/hexark/planning-poker/internal/adapters/ws"
	"github.com/hexark/planning-poker/internal/config"
	"github.com/hexark/planning-poker/internal/session"
)

func SetupRouter(ctx context.Context, cfg *config.Config, engine *session.Engine, wsctl *ws.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")

	ctl := NewRoomController(engine, cfg)

	api := r.Group("/api")
	api.POST("/rooms", ctl.CreateRoom)
	api.GET("/rooms/:roomId", ctl.GetRoom)
	api.POST("/rooms/:roomId/join", ctl.JoinRoom)
	api.POST("/rooms/:roomId/vote", ctl.SubmitVote)
	api.POST("/rooms/:roomId/reveal", ctl.RevealVotes)
	api.POST("/rooms/:roomId/next", ctl.AdvanceRound)

	api.GET("/ws", func(c *gin.Context) {
		wsctl.Handle(ctx, c)
	})

	return r
}
