package domain

import (
	"time"
)

// ChannelType is the category of messaging surface an instance connects to
type ChannelType string

const (
	ChannelPrimaryMessaging ChannelType = "primary-messaging"
	ChannelPhotoSharing     ChannelType = "photo-sharing"
	ChannelPageMessaging    ChannelType = "page-messaging"
)

// IsValid returns true for known channel types
func (c ChannelType) IsValid() bool {
	switch c {
	case ChannelPrimaryMessaging, ChannelPhotoSharing, ChannelPageMessaging:
		return true
	}
	return false
}

// TenantAccount represents an organizational customer owning channel instances
type TenantAccount struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Slug           string              `json:"slug"`
	MaxInstances   map[ChannelType]int `json:"max_instances"`
	GatewayBaseURL string              `json:"gateway_base_url,omitempty"`
	GatewaySecret  string              `json:"-"`
	IsActive       bool                `json:"is_active"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	DeletedAt      *time.Time          `json:"deleted_at,omitempty"` // Soft delete support
}

// SlotCount returns the configured maximum instance count for a channel type
func (t *TenantAccount) SlotCount(channel ChannelType) int {
	if t.MaxInstances == nil {
		return 0
	}
	return t.MaxInstances[channel]
}

// ChannelInstance represents one addressable messaging endpoint for a tenant.
// Status and RemoteIdentifier are the only fields the connection manager
// mutates; everything else is owned by the tenant configuration flow.
type ChannelInstance struct {
	ID               string         `json:"id"`
	TenantID         string         `json:"tenant_id"`
	ChannelType      ChannelType    `json:"channel_type"`
	SlotIndex        int            `json:"slot_index"`
	DisplayName      string         `json:"display_name"`
	InstanceKey      string         `json:"instance_key"`
	Credential       string         `json:"-"`
	ColorTag         string         `json:"color_tag,omitempty"`
	Status           InstanceStatus `json:"status"`
	RemoteIdentifier string         `json:"remote_identifier,omitempty"`
	StatusChangedAt  time.Time      `json:"status_changed_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsConfigured returns true once the instance has a key and credential
func (i *ChannelInstance) IsConfigured() bool {
	return i.InstanceKey != "" && i.Credential != ""
}

// PlaceholderInstance returns an empty slot entry for an unconfigured position
func PlaceholderInstance(tenantID string, channel ChannelType, slot int) *ChannelInstance {
	return &ChannelInstance{
		TenantID:    tenantID,
		ChannelType: channel,
		SlotIndex:   slot,
		Status:      StatusUnconfigured,
	}
}
