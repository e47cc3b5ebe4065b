// Package ws is the live event channel: it upgrades HTTP requests,
// registers each connection with the registry and handles the
// subscribe-to-room control message. Events flow one way, server to
// client; the only client message with meaning is "subscribe".
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hexark/planning-poker/internal/core"
	"github.com/hexark/planning-poker/internal/domain"
	"github.com/hexark/planning-poker/internal/registry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Registry   *registry.Registry
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewController(reg *registry.Registry, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{Registry: reg, ReadLimit: readLimit, PingPeriod: pingPeriod}
}

func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade")
		return
	}

	connID := core.ConnectionID("conn-" + uuid.NewString())
	conn := newWSConn(sock)
	ctl.Registry.Register(connID, conn)
	log.Info().Str("module", "ws").Str("conn_id", string(connID)).Msg("new connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, connID, conn)
	go ctl.readPump(ctx, cancel, connID, conn)
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, connID core.ConnectionID, c *wsConn) {
	defer func() {
		cancel()
		ctl.Registry.Unregister(connID)
		log.Info().Str("module", "ws").Str("conn_id", string(connID)).Msg("readPump closing")
	}()

	if ctl.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.ReadLimit)
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "ws").Str("conn_id", string(connID)).Msg("read error")
				}
				return
			}
			ctl.handleMessage(connID, data)
		}
	}
}

func (ctl *Controller) handleMessage(connID core.ConnectionID, data []byte) {
	var msg struct {
		Action string `json:"action"`
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn_id", string(connID)).Msg("bad message")
		return
	}

	switch msg.Action {
	case "subscribe":
		if msg.RoomID == "" {
			log.Warn().Str("module", "ws").Str("conn_id", string(connID)).Msg("subscribe without roomId")
			return
		}
		ctl.Registry.Subscribe(connID, domain.RoomID(msg.RoomID))
	default:
		log.Warn().Str("module", "ws").Str("action", msg.Action).Msg("unknown action")
	}
}

func (ctl *Controller) writePump(ctx context.Context, connID core.ConnectionID, c *wsConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "ws").Str("conn_id", string(connID)).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Str("conn_id", string(connID)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "ws").Str("conn_id", string(connID)).Msg("ping failed")
				return
			}
		}
	}
}
