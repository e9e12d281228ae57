package response

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccess(t *testing.T) {
	resp := Success(map[string]string{"id": "123"})

	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
}

func TestError(t *testing.T) {
	resp := Error(ErrCodeNotFound, "Instance not found")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "Instance not found", resp.Error.Message)
}

func TestValidationFailed(t *testing.T) {
	resp := ValidationFailed(map[string]string{"display_name": "must not be empty"})

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidationFailed, resp.Error.Code)
	assert.Equal(t, "must not be empty", resp.Error.Details["display_name"])
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeValidationFailed, http.StatusBadRequest},
		{ErrCodeGatewayUnavailable, http.StatusBadGateway},
		{ErrCodeGatewayRejected, http.StatusUnprocessableEntity},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GetHTTPStatus(tt.code), "code %s", tt.code)
	}
}

func TestDefaultMessages(t *testing.T) {
	assert.Equal(t, "Authentication required", Unauthorized("").Error.Message)
	assert.Equal(t, "Resource not found", NotFound("").Error.Message)
	assert.Equal(t, "Pairing gateway is temporarily unavailable", GatewayUnavailable("").Error.Message)
	assert.Equal(t, "Pairing gateway rejected the instance credentials", GatewayRejected("").Error.Message)
}
