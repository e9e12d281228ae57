package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
	"github.com/Karenfernandes20/integrai-sub001/internal/dto"
	"github.com/Karenfernandes20/integrai-sub001/internal/service"
	"github.com/Karenfernandes20/integrai-sub001/pkg/response"
	"github.com/Karenfernandes20/integrai-sub001/pkg/telemetry"
)

// WebhookHandler receives push notifications from the pairing gateway
type WebhookHandler struct {
	connectionService service.ConnectionService
	webhookSecret     string
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(connectionService service.ConnectionService, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{connectionService: connectionService, webhookSecret: webhookSecret}
}

// HandleEvent handles a gateway callback about one instance session
// POST /webhooks/gateway
//
// The gateway redelivers on non-2xx, so everything that reaches the
// reconciler acknowledges with 200 even when the event changes nothing.
func (h *WebhookHandler) HandleEvent(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.webhook.event")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	if h.webhookSecret != "" {
		provided := c.GetHeader("X-Gateway-Token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(h.webhookSecret)) != 1 {
			span.SetStatus(codes.Error, "invalid gateway token")
			c.JSON(http.StatusUnauthorized, response.Unauthorized("Invalid gateway token"))
			return
		}
	}

	var ev dto.WebhookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	span.SetAttributes(
		attribute.String("instance_key", ev.InstanceKey),
		attribute.String("state", ev.State),
	)

	status := domain.InstanceStatus(ev.State)
	if !status.IsValid() {
		// Unrecognized states are acknowledged and dropped; failing them
		// would only make the gateway redeliver something we cannot use
		c.JSON(http.StatusOK, response.Success(gin.H{"applied": false}))
		return
	}

	obs := domain.NewObservation(ev.InstanceKey, status, ev.RemoteIdentifier, domain.SourcePush)
	applied, err := h.connectionService.ApplyObservation(ctx, obs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, response.Success(gin.H{"applied": applied}))
}
