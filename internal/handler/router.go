package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Karenfernandes20/integrai-sub001/pkg/middleware"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Health   *HealthHandler
	Instance *InstanceHandler
	Pairing  *PairingHandler
	Stream   *StreamHandler
	WS       *WSHandler
	Webhook  *WebhookHandler
}

// SetupRoutes mounts all routes on the engine. Probes and the gateway
// webhook are open; the webhook authenticates with its own shared token,
// everything else requires a tenant bearer token.
func SetupRoutes(r *gin.Engine, h *Handlers, jwtSecret string) {
	r.GET("/health", h.Health.Health)
	r.GET("/ready", h.Health.Ready)
	r.POST("/webhooks/gateway", h.Webhook.HandleEvent)

	api := r.Group("/api/v1")
	api.Use(middleware.JWTMiddleware(&middleware.JWTConfig{Secret: jwtSecret}))
	{
		api.GET("/channels/:channel/instances", h.Instance.List)
		api.POST("/instances", h.Instance.Configure)
		api.DELETE("/instances/:id", h.Instance.Delete)
		api.GET("/instances/:id/status", h.Instance.GetStatus)

		api.POST("/instances/:id/pairing", h.Pairing.RequestPairing)
		api.POST("/instances/:id/disconnect", h.Pairing.Disconnect)

		api.GET("/events/stream", h.Stream.Stream)
		api.GET("/events/ws", h.WS.Stream)
	}
}
