package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Karenfernandes20/integrai-sub001/internal/notify"
	"github.com/Karenfernandes20/integrai-sub001/pkg/middleware"
	"github.com/Karenfernandes20/integrai-sub001/pkg/response"
)

// keepaliveInterval is how often an SSE comment is written so proxies do
// not reap idle connections
const keepaliveInterval = 15 * time.Second

// StreamHandler serves the live status change stream over SSE
type StreamHandler struct {
	broadcaster *notify.Broadcaster
}

// NewStreamHandler creates a new StreamHandler
func NewStreamHandler(broadcaster *notify.Broadcaster) *StreamHandler {
	return &StreamHandler{broadcaster: broadcaster}
}

// Stream handles GET /api/v1/events/stream (SSE)
// Every status change applied to the tenant's instances is written as a
// "status" event. The subscription lives until the client disconnects.
func (h *StreamHandler) Stream(c *gin.Context) {
	tenantID := c.GetString(middleware.ContextKeyTenantID)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable nginx buffering

	ctx := c.Request.Context()
	events, _ := h.broadcaster.Subscribe(ctx, tenantID)

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	c.Writer.WriteString(": connected\n\n")
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			// Client disconnected
			return

		case change, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(change)
			if err != nil {
				continue
			}
			c.Writer.WriteString(fmt.Sprintf("event: status\ndata: %s\n\n", data))
			c.Writer.Flush()

		case <-keepalive.C:
			c.Writer.WriteString(":keepalive\n\n")
			c.Writer.Flush()
		}
	}
}
