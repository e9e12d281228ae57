// Package dto defines the request and response shapes of the HTTP API.
package dto

import (
	"strings"
	"time"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
)

// ConfigureInstanceRequest configures the instance occupying one slot
type ConfigureInstanceRequest struct {
	ChannelType string `json:"channel_type" binding:"required"`
	SlotIndex   int    `json:"slot_index"`
	DisplayName string `json:"display_name" binding:"required"`
	Credential  string `json:"credential" binding:"required"`
	ColorTag    string `json:"color_tag"`
	// InstanceKey is optional; when empty a key is minted. Supplying one
	// supports migrating an instance from another deployment.
	InstanceKey string `json:"instance_key"`
}

// Validate returns per-field problems, empty when the request is acceptable
func (r *ConfigureInstanceRequest) Validate() map[string]string {
	problems := make(map[string]string)
	if !domain.ChannelType(r.ChannelType).IsValid() {
		problems["channel_type"] = "unknown channel type"
	}
	if r.SlotIndex < 0 {
		problems["slot_index"] = "must not be negative"
	}
	if strings.TrimSpace(r.DisplayName) == "" {
		problems["display_name"] = "must not be empty"
	}
	if len(r.DisplayName) > 120 {
		problems["display_name"] = "must be at most 120 characters"
	}
	if strings.TrimSpace(r.Credential) == "" {
		problems["credential"] = "must not be empty"
	}
	return problems
}

// InstanceResponse is the API view of one slot, configured or not
type InstanceResponse struct {
	ID               string    `json:"id,omitempty"`
	ChannelType      string    `json:"channel_type"`
	SlotIndex        int       `json:"slot_index"`
	DisplayName      string    `json:"display_name,omitempty"`
	InstanceKey      string    `json:"instance_key,omitempty"`
	ColorTag         string    `json:"color_tag,omitempty"`
	Status           string    `json:"status"`
	RemoteIdentifier string    `json:"remote_identifier,omitempty"`
	StatusChangedAt  time.Time `json:"status_changed_at"`
	Configured       bool      `json:"configured"`
}

// FromInstance converts a domain instance to its API view
func FromInstance(inst *domain.ChannelInstance) *InstanceResponse {
	return &InstanceResponse{
		ID:               inst.ID,
		ChannelType:      string(inst.ChannelType),
		SlotIndex:        inst.SlotIndex,
		DisplayName:      inst.DisplayName,
		InstanceKey:      inst.InstanceKey,
		ColorTag:         inst.ColorTag,
		Status:           string(inst.Status),
		RemoteIdentifier: inst.RemoteIdentifier,
		StatusChangedAt:  inst.StatusChangedAt,
		Configured:       inst.IsConfigured(),
	}
}

// FromInstances converts a slice of domain instances
func FromInstances(instances []*domain.ChannelInstance) []*InstanceResponse {
	out := make([]*InstanceResponse, 0, len(instances))
	for _, inst := range instances {
		out = append(out, FromInstance(inst))
	}
	return out
}

// PairingResponse carries the challenge a person must act on to link a device
type PairingResponse struct {
	InstanceKey string    `json:"instance_key"`
	Kind        string    `json:"kind"`
	Payload     string    `json:"payload"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// StatusResponse is the stored connection state of one instance
type StatusResponse struct {
	InstanceKey      string    `json:"instance_key"`
	Status           string    `json:"status"`
	RemoteIdentifier string    `json:"remote_identifier,omitempty"`
	StatusChangedAt  time.Time `json:"status_changed_at"`
}

// WebhookEvent is the push notification the gateway delivers about a session
type WebhookEvent struct {
	InstanceKey      string `json:"instance_key" binding:"required"`
	State            string `json:"state" binding:"required"`
	RemoteIdentifier string `json:"remote_identifier,omitempty"`
	OccurredAt       string `json:"occurred_at,omitempty"`
}
