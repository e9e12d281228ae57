package domain

import (
	"time"
)

// ObservationSource identifies which producer reported a remote status
type ObservationSource string

const (
	SourcePoll ObservationSource = "poll"
	SourcePush ObservationSource = "push"
)

// Observation is an ephemeral fact about an instance's remote status,
// produced by either the status poller or a push notification. It is
// consumed immediately by the reconciler and never persisted.
type Observation struct {
	InstanceKey      string
	Status           InstanceStatus
	RemoteIdentifier string
	Source           ObservationSource
	ReceivedAt       time.Time
}

// NewObservation builds an observation stamped with the receive time
func NewObservation(instanceKey string, status InstanceStatus, remoteID string, source ObservationSource) Observation {
	return Observation{
		InstanceKey:      instanceKey,
		Status:           status,
		RemoteIdentifier: remoteID,
		Source:           source,
		ReceivedAt:       time.Now(),
	}
}

// StatusChange is the fact fanned out to live subscribers whenever an
// instance's stored status actually changes
type StatusChange struct {
	TenantID         string         `json:"tenant_id"`
	InstanceKey      string         `json:"instance_key"`
	ChannelType      ChannelType    `json:"channel_type"`
	SlotIndex        int            `json:"slot_index"`
	Status           InstanceStatus `json:"status"`
	RemoteIdentifier string         `json:"remote_identifier,omitempty"`
	ChangedAt        time.Time      `json:"changed_at"`
}
