// Package gateway talks to the external pairing gateway that brokers
// channel sessions on behalf of tenants.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
)

var (
	// ErrGatewayUnavailable is returned when the gateway cannot be reached
	// or answers with a server error
	ErrGatewayUnavailable = errors.New("pairing gateway unavailable")
	// ErrGatewayRejected is returned when the gateway refuses the request,
	// typically because the instance credential is invalid
	ErrGatewayRejected = errors.New("pairing gateway rejected the request")
)

// Endpoint identifies which gateway deployment serves a tenant
type Endpoint struct {
	BaseURL string
	Secret  string
}

// PairingChallenge is the material a person must act on to link a device,
// handed back verbatim to the requesting client
type PairingChallenge struct {
	InstanceKey string    `json:"instance_key"`
	Kind        string    `json:"kind"` // "qr" or "code"
	Payload     string    `json:"payload"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// RemoteStatus is the gateway's view of one instance session
type RemoteStatus struct {
	InstanceKey      string
	Status           domain.InstanceStatus
	RemoteIdentifier string
}

// PairingGateway is the client surface for the external session broker
type PairingGateway interface {
	// StartPairing registers the instance with the gateway and returns the
	// pairing challenge to present to the user
	StartPairing(ctx context.Context, ep Endpoint, instanceKey, credential string) (*PairingChallenge, error)
	// FetchStatus reports the gateway's current view of the instance.
	// Transport failures surface as ErrGatewayUnavailable; a reachable
	// gateway that has no session for the key reports StatusUnknown.
	FetchStatus(ctx context.Context, ep Endpoint, instanceKey string) (*RemoteStatus, error)
	// Disconnect tears down the instance session. Disconnecting an
	// instance the gateway does not know is not an error.
	Disconnect(ctx context.Context, ep Endpoint, instanceKey string) error
}
