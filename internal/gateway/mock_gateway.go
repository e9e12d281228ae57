package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
)

// MockPairingGateway is a scriptable PairingGateway for tests
type MockPairingGateway struct {
	mu sync.Mutex

	// Per-key status the gateway will report; missing keys report unknown
	Statuses map[string]*RemoteStatus
	// Errors returned by the next call, per method
	StartPairingErr error
	FetchStatusErr  error
	DisconnectErr   error

	// StartPairingBarrier, when set, makes StartPairing block until the
	// channel is closed, holding the pairing call in flight
	StartPairingBarrier chan struct{}

	StartPairingCalls int
	FetchStatusCalls  int
	DisconnectCalls   int
}

// NewMockPairingGateway creates a new MockPairingGateway
func NewMockPairingGateway() *MockPairingGateway {
	return &MockPairingGateway{Statuses: make(map[string]*RemoteStatus)}
}

// SetStatus scripts the status the gateway reports for a key
func (m *MockPairingGateway) SetStatus(instanceKey string, status domain.InstanceStatus, remoteID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses[instanceKey] = &RemoteStatus{
		InstanceKey:      instanceKey,
		Status:           status,
		RemoteIdentifier: remoteID,
	}
}

// StartPairing returns a canned challenge or the scripted error
func (m *MockPairingGateway) StartPairing(ctx context.Context, ep Endpoint, instanceKey, credential string) (*PairingChallenge, error) {
	m.mu.Lock()
	m.StartPairingCalls++
	err := m.StartPairingErr
	barrier := m.StartPairingBarrier
	m.mu.Unlock()

	if barrier != nil {
		<-barrier
	}
	if err != nil {
		return nil, err
	}
	return &PairingChallenge{
		InstanceKey: instanceKey,
		Kind:        "qr",
		Payload:     "mock-challenge-" + instanceKey,
		ExpiresAt:   time.Now().Add(2 * time.Minute),
	}, nil
}

// FetchStatus returns the scripted status or unknown
func (m *MockPairingGateway) FetchStatus(ctx context.Context, ep Endpoint, instanceKey string) (*RemoteStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchStatusCalls++
	if m.FetchStatusErr != nil {
		return nil, m.FetchStatusErr
	}
	if rs, ok := m.Statuses[instanceKey]; ok {
		copied := *rs
		return &copied, nil
	}
	return &RemoteStatus{InstanceKey: instanceKey, Status: domain.StatusUnknown}, nil
}

// Disconnect records the call and returns the scripted error
func (m *MockPairingGateway) Disconnect(ctx context.Context, ep Endpoint, instanceKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DisconnectCalls++
	if m.DisconnectErr != nil {
		return m.DisconnectErr
	}
	delete(m.Statuses, instanceKey)
	return nil
}
