package domain

// InstanceStatus represents the connection status of a channel instance
type InstanceStatus string

const (
	StatusUnconfigured InstanceStatus = "unconfigured"
	StatusPairing      InstanceStatus = "pairing"
	StatusScanning     InstanceStatus = "scanning"
	StatusConnected    InstanceStatus = "connected"
	StatusDisconnected InstanceStatus = "disconnected"
	StatusError        InstanceStatus = "error"

	// StatusUnknown is reported by the gateway client when a poll could not
	// determine the remote state. It is never stored.
	StatusUnknown InstanceStatus = "unknown"
)

// statusRank orders statuses by how far the pairing cycle has advanced.
// connected, disconnected and error share the top rank so they override
// each other, while none of them can be dragged backward by a stale
// pairing/scanning observation still in flight.
var statusRank = map[InstanceStatus]int{
	StatusUnconfigured: 0,
	StatusPairing:      1,
	StatusScanning:     2,
	StatusConnected:    3,
	StatusDisconnected: 3,
	StatusError:        3,
}

// IsValid returns true for statuses that can be stored on an instance
func (s InstanceStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank returns the advancement rank of the status
func (s InstanceStatus) Rank() int {
	return statusRank[s]
}

// CanSupersede reports whether an observation carrying the next status may
// replace the current stored status. Observations are not causally ordered;
// the most recently received one wins unless it is strictly less advanced
// than what is already stored.
func (s InstanceStatus) CanSupersede(current InstanceStatus) bool {
	if !s.IsValid() {
		return false
	}
	return s.Rank() >= current.Rank()
}
