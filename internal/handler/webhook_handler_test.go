package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
)

func postWebhook(r *gin.Engine, token, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Gateway-Token", token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_AppliesEvent(t *testing.T) {
	var got domain.Observation
	svc := &MockConnectionService{
		ApplyObservationFunc: func(ctx context.Context, obs domain.Observation) (bool, error) {
			got = obs
			return true, nil
		},
	}

	r := gin.New()
	r.POST("/webhooks/gateway", NewWebhookHandler(svc, "hook-secret").HandleEvent)

	w := postWebhook(r, "hook-secret",
		`{"instance_key":"key-1","state":"connected","remote_identifier":"+15550001111"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if got.InstanceKey != "key-1" || got.Status != domain.StatusConnected {
		t.Errorf("observation = %+v", got)
	}
	if got.Source != domain.SourcePush {
		t.Errorf("source = %s, want push", got.Source)
	}
}

func TestWebhookHandler_RejectsBadToken(t *testing.T) {
	svc := &MockConnectionService{
		ApplyObservationFunc: func(ctx context.Context, obs domain.Observation) (bool, error) {
			t.Error("observation must not be applied with a bad token")
			return false, nil
		},
	}

	r := gin.New()
	r.POST("/webhooks/gateway", NewWebhookHandler(svc, "hook-secret").HandleEvent)

	w := postWebhook(r, "wrong", `{"instance_key":"key-1","state":"connected"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestWebhookHandler_AcknowledgesUnrecognizedState(t *testing.T) {
	svc := &MockConnectionService{
		ApplyObservationFunc: func(ctx context.Context, obs domain.Observation) (bool, error) {
			t.Error("unrecognized states should be dropped before the reconciler")
			return false, nil
		},
	}

	r := gin.New()
	r.POST("/webhooks/gateway", NewWebhookHandler(svc, "").HandleEvent)

	// 200 keeps the gateway from redelivering something we cannot use
	w := postWebhook(r, "", `{"instance_key":"key-1","state":"rebooting"}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestWebhookHandler_RejectsMalformedBody(t *testing.T) {
	svc := &MockConnectionService{}

	r := gin.New()
	r.POST("/webhooks/gateway", NewWebhookHandler(svc, "").HandleEvent)

	w := postWebhook(r, "", `{"state":"connected"}`) // missing instance_key
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
