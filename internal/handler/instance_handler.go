package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
	"github.com/Karenfernandes20/integrai-sub001/internal/dto"
	"github.com/Karenfernandes20/integrai-sub001/internal/service"
	"github.com/Karenfernandes20/integrai-sub001/pkg/middleware"
	"github.com/Karenfernandes20/integrai-sub001/pkg/response"
	"github.com/Karenfernandes20/integrai-sub001/pkg/telemetry"
)

// InstanceHandler handles instance registry HTTP requests
type InstanceHandler struct {
	connectionService service.ConnectionService
}

// NewInstanceHandler creates a new InstanceHandler
func NewInstanceHandler(connectionService service.ConnectionService) *InstanceHandler {
	return &InstanceHandler{connectionService: connectionService}
}

// List handles listing all slots of a channel, placeholders included
// GET /api/v1/channels/:channel/instances
func (h *InstanceHandler) List(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.instance.list")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	tenantID := c.GetString(middleware.ContextKeyTenantID)
	channel := domain.ChannelType(c.Param("channel"))

	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("channel_type", string(channel)),
	)

	instances, err := h.connectionService.ListInstances(ctx, tenantID, channel)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondServiceError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, response.Success(dto.FromInstances(instances)))
}

// Configure handles creating or reconfiguring the instance of a slot
// POST /api/v1/instances
func (h *InstanceHandler) Configure(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.instance.configure")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	tenantID := c.GetString(middleware.ContextKeyTenantID)

	var req dto.ConfigureInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("channel_type", req.ChannelType),
		attribute.Int("slot_index", req.SlotIndex),
	)

	inst, err := h.connectionService.ConfigureInstance(ctx, tenantID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondServiceError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, response.Success(dto.FromInstance(inst)))
}

// Delete handles removing an instance and freeing its slot
// DELETE /api/v1/instances/:id
func (h *InstanceHandler) Delete(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.instance.delete")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	tenantID := c.GetString(middleware.ContextKeyTenantID)
	instanceID := c.Param("id")

	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("instance_id", instanceID),
	)

	if err := h.connectionService.DeleteInstance(ctx, tenantID, instanceID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondServiceError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, response.Success(gin.H{"deleted": true}))
}

// GetStatus handles reading the stored connection state of one instance
// GET /api/v1/instances/:id/status
func (h *InstanceHandler) GetStatus(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.instance.status")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	tenantID := c.GetString(middleware.ContextKeyTenantID)
	instanceID := c.Param("id")

	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("instance_id", instanceID),
	)

	inst, err := h.connectionService.GetStatus(ctx, tenantID, instanceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondServiceError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, response.Success(&dto.StatusResponse{
		InstanceKey:      inst.InstanceKey,
		Status:           string(inst.Status),
		RemoteIdentifier: inst.RemoteIdentifier,
		StatusChangedAt:  inst.StatusChangedAt,
	}))
}

// respondServiceError maps service errors onto the response envelope
func respondServiceError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, response.ValidationFailed(verr.Fields))
	case errors.Is(err, service.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, response.NotFound("Tenant not found"))
	case errors.Is(err, service.ErrInstanceNotFound):
		c.JSON(http.StatusNotFound, response.NotFound("Instance not found"))
	case errors.Is(err, service.ErrInvalidChannel):
		c.JSON(http.StatusBadRequest, response.BadRequest("Unknown channel type"))
	case errors.Is(err, service.ErrSlotOutOfRange):
		c.JSON(http.StatusUnprocessableEntity, response.Error(response.ErrCodeValidationFailed, "Slot index exceeds the tenant's instance limit"))
	case errors.Is(err, service.ErrInstanceKeyTaken):
		c.JSON(http.StatusConflict, response.Conflict("Instance key already in use"))
	case errors.Is(err, service.ErrNotConfigured):
		c.JSON(http.StatusUnprocessableEntity, response.Error(response.ErrCodeValidationFailed, "Instance is not configured"))
	case errors.Is(err, service.ErrPairingInFlight):
		c.JSON(http.StatusConflict, response.Conflict("Pairing already in progress"))
	default:
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
	}
}
