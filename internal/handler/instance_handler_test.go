package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
	"github.com/Karenfernandes20/integrai-sub001/internal/dto"
	"github.com/Karenfernandes20/integrai-sub001/internal/service"
	"github.com/Karenfernandes20/integrai-sub001/pkg/middleware"
	"github.com/Karenfernandes20/integrai-sub001/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// asTenant injects the caller identity the JWT middleware would set
func asTenant(tenantID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyTenantID, tenantID)
		c.Next()
	}
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) *response.Response {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return &resp
}

func TestInstanceHandler_List(t *testing.T) {
	svc := &MockConnectionService{
		ListInstancesFunc: func(ctx context.Context, tenantID string, channel domain.ChannelType) ([]*domain.ChannelInstance, error) {
			if tenantID != "tenant-1" {
				t.Errorf("tenantID = %s, want tenant-1", tenantID)
			}
			if channel != domain.ChannelPrimaryMessaging {
				t.Errorf("channel = %s", channel)
			}
			return []*domain.ChannelInstance{
				{ID: "inst-1", TenantID: tenantID, ChannelType: channel, InstanceKey: "key-1", Credential: "tok", Status: domain.StatusConnected},
				domain.PlaceholderInstance(tenantID, channel, 1),
			}, nil
		},
	}

	r := gin.New()
	r.Use(asTenant("tenant-1"))
	r.GET("/api/v1/channels/:channel/instances", NewInstanceHandler(svc).List)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/channels/primary-messaging/instances", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	if !resp.Success {
		t.Error("response should be successful")
	}
	items, ok := resp.Data.([]interface{})
	if !ok || len(items) != 2 {
		t.Fatalf("data = %v, want 2 slots", resp.Data)
	}
	first := items[0].(map[string]interface{})
	if first["configured"] != true {
		t.Error("first slot should be configured")
	}
	if _, leaked := first["credential"]; leaked {
		t.Error("credential must never appear in responses")
	}
	second := items[1].(map[string]interface{})
	if second["configured"] != false || second["status"] != "unconfigured" {
		t.Errorf("second slot = %v, want unconfigured placeholder", second)
	}
}

func TestInstanceHandler_ListInvalidChannel(t *testing.T) {
	svc := &MockConnectionService{
		ListInstancesFunc: func(ctx context.Context, tenantID string, channel domain.ChannelType) ([]*domain.ChannelInstance, error) {
			return nil, service.ErrInvalidChannel
		},
	}

	r := gin.New()
	r.Use(asTenant("tenant-1"))
	r.GET("/api/v1/channels/:channel/instances", NewInstanceHandler(svc).List)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/channels/email/instances", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestInstanceHandler_Configure(t *testing.T) {
	svc := &MockConnectionService{
		ConfigureInstanceFunc: func(ctx context.Context, tenantID string, req *dto.ConfigureInstanceRequest) (*domain.ChannelInstance, error) {
			return &domain.ChannelInstance{
				ID:              "inst-1",
				TenantID:        tenantID,
				ChannelType:     domain.ChannelType(req.ChannelType),
				SlotIndex:       req.SlotIndex,
				DisplayName:     req.DisplayName,
				InstanceKey:     "minted-key",
				Credential:      req.Credential,
				Status:          domain.StatusDisconnected,
				StatusChangedAt: time.Now(),
			}, nil
		},
	}

	r := gin.New()
	r.Use(asTenant("tenant-1"))
	r.POST("/api/v1/instances", NewInstanceHandler(svc).Configure)

	body, _ := json.Marshal(dto.ConfigureInstanceRequest{
		ChannelType: "primary-messaging",
		SlotIndex:   0,
		DisplayName: "Support Line",
		Credential:  "api-token",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/instances", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]interface{})
	if data["instance_key"] != "minted-key" {
		t.Errorf("instance_key = %v", data["instance_key"])
	}
}

func TestInstanceHandler_ConfigureValidationDetails(t *testing.T) {
	svc := &MockConnectionService{
		ConfigureInstanceFunc: func(ctx context.Context, tenantID string, req *dto.ConfigureInstanceRequest) (*domain.ChannelInstance, error) {
			return nil, &service.ValidationError{Fields: map[string]string{"display_name": "must not be empty"}}
		},
	}

	r := gin.New()
	r.Use(asTenant("tenant-1"))
	r.POST("/api/v1/instances", NewInstanceHandler(svc).Configure)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/instances",
		bytes.NewReader([]byte(`{"channel_type":"primary-messaging","display_name":"x","credential":"y"}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != response.ErrCodeValidationFailed {
		t.Fatalf("error = %+v, want VALIDATION_FAILED", resp.Error)
	}
	if resp.Error.Details["display_name"] == "" {
		t.Error("per-field details should be carried through")
	}
}

func TestInstanceHandler_ConfigureKeyConflict(t *testing.T) {
	svc := &MockConnectionService{
		ConfigureInstanceFunc: func(ctx context.Context, tenantID string, req *dto.ConfigureInstanceRequest) (*domain.ChannelInstance, error) {
			return nil, service.ErrInstanceKeyTaken
		},
	}

	r := gin.New()
	r.Use(asTenant("tenant-1"))
	r.POST("/api/v1/instances", NewInstanceHandler(svc).Configure)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/instances",
		bytes.NewReader([]byte(`{"channel_type":"primary-messaging","display_name":"x","credential":"y"}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestInstanceHandler_DeleteNotFound(t *testing.T) {
	svc := &MockConnectionService{
		DeleteInstanceFunc: func(ctx context.Context, tenantID, instanceID string) error {
			return service.ErrInstanceNotFound
		},
	}

	r := gin.New()
	r.Use(asTenant("tenant-1"))
	r.DELETE("/api/v1/instances/:id", NewInstanceHandler(svc).Delete)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/instances/ghost", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestInstanceHandler_GetStatus(t *testing.T) {
	svc := &MockConnectionService{
		GetStatusFunc: func(ctx context.Context, tenantID, instanceID string) (*domain.ChannelInstance, error) {
			return &domain.ChannelInstance{
				ID:               instanceID,
				TenantID:         tenantID,
				InstanceKey:      "key-1",
				Status:           domain.StatusConnected,
				RemoteIdentifier: "+15550001111",
				StatusChangedAt:  time.Now(),
			}, nil
		},
	}

	r := gin.New()
	r.Use(asTenant("tenant-1"))
	r.GET("/api/v1/instances/:id/status", NewInstanceHandler(svc).GetStatus)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/instances/inst-1/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]interface{})
	if data["status"] != "connected" || data["remote_identifier"] != "+15550001111" {
		t.Errorf("data = %v", data)
	}
}
