package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Karenfernandes20/integrai-sub001/internal/notify"
	"github.com/Karenfernandes20/integrai-sub001/pkg/logger"
	"github.com/Karenfernandes20/integrai-sub001/pkg/middleware"
	"github.com/Karenfernandes20/integrai-sub001/pkg/response"
)

const (
	// writeWait is the deadline for a single websocket write
	writeWait = 10 * time.Second
	// pongWait is how long we wait for a pong before declaring the peer gone
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait
	pingPeriod = (pongWait * 9) / 10
)

// WSHandler serves the live status change stream over a websocket
type WSHandler struct {
	broadcaster *notify.Broadcaster
	upgrader    websocket.Upgrader
	log         *logger.Logger
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(broadcaster *notify.Broadcaster, log *logger.Logger) *WSHandler {
	if log == nil {
		log = logger.Get()
	}
	return &WSHandler{
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Token auth happens before the upgrade; browsers cannot set
			// custom headers on websocket requests anyway
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Stream handles GET /api/v1/events/ws
// Status changes are pushed as JSON text messages until either side closes.
func (h *WSHandler) Stream(c *gin.Context) {
	tenantID := c.GetString(middleware.ContextKeyTenantID)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	events, subID := h.broadcaster.Subscribe(ctx, tenantID)
	defer h.broadcaster.Unsubscribe(tenantID, subID)

	// Reader: we expect nothing from the client, but reading is the only
	// way to process control frames and notice a closed peer
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return

		case change, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(change); err != nil {
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
