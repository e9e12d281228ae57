package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Karenfernandes20/integrai-sub001/internal/dto"
	"github.com/Karenfernandes20/integrai-sub001/internal/gateway"
	"github.com/Karenfernandes20/integrai-sub001/internal/service"
	"github.com/Karenfernandes20/integrai-sub001/pkg/middleware"
	"github.com/Karenfernandes20/integrai-sub001/pkg/response"
	"github.com/Karenfernandes20/integrai-sub001/pkg/telemetry"
)

// PairingHandler handles connection lifecycle HTTP requests
type PairingHandler struct {
	connectionService service.ConnectionService
}

// NewPairingHandler creates a new PairingHandler
func NewPairingHandler(connectionService service.ConnectionService) *PairingHandler {
	return &PairingHandler{connectionService: connectionService}
}

// RequestPairing handles starting a pairing session
// POST /api/v1/instances/:id/pairing
func (h *PairingHandler) RequestPairing(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.pairing.request")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	tenantID := c.GetString(middleware.ContextKeyTenantID)
	instanceID := c.Param("id")

	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("instance_id", instanceID),
	)

	challenge, err := h.connectionService.RequestPairing(ctx, tenantID, instanceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, gateway.ErrGatewayUnavailable) {
			c.JSON(http.StatusBadGateway, response.GatewayUnavailable(""))
			return
		}
		if errors.Is(err, gateway.ErrGatewayRejected) {
			c.JSON(http.StatusUnprocessableEntity, response.GatewayRejected(""))
			return
		}
		respondServiceError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, response.Success(&dto.PairingResponse{
		InstanceKey: challenge.InstanceKey,
		Kind:        challenge.Kind,
		Payload:     challenge.Payload,
		ExpiresAt:   challenge.ExpiresAt,
	}))
}

// Disconnect handles tearing down an instance session
// POST /api/v1/instances/:id/disconnect
func (h *PairingHandler) Disconnect(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.pairing.disconnect")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	tenantID := c.GetString(middleware.ContextKeyTenantID)
	instanceID := c.Param("id")

	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("instance_id", instanceID),
	)

	if err := h.connectionService.Disconnect(ctx, tenantID, instanceID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, gateway.ErrGatewayUnavailable) {
			c.JSON(http.StatusBadGateway, response.GatewayUnavailable(""))
			return
		}
		respondServiceError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, response.Success(gin.H{"disconnected": true}))
}
