package handler

import (
	"context"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
	"github.com/Karenfernandes20/integrai-sub001/internal/dto"
	"github.com/Karenfernandes20/integrai-sub001/internal/gateway"
)

// MockConnectionService is a scriptable ConnectionService for handler tests
type MockConnectionService struct {
	ListInstancesFunc     func(ctx context.Context, tenantID string, channel domain.ChannelType) ([]*domain.ChannelInstance, error)
	ConfigureInstanceFunc func(ctx context.Context, tenantID string, req *dto.ConfigureInstanceRequest) (*domain.ChannelInstance, error)
	DeleteInstanceFunc    func(ctx context.Context, tenantID, instanceID string) error
	RequestPairingFunc    func(ctx context.Context, tenantID, instanceID string) (*gateway.PairingChallenge, error)
	DisconnectFunc        func(ctx context.Context, tenantID, instanceID string) error
	GetStatusFunc         func(ctx context.Context, tenantID, instanceID string) (*domain.ChannelInstance, error)
	ApplyObservationFunc  func(ctx context.Context, obs domain.Observation) (bool, error)
	PairingInFlightFunc   func(instanceKey string) bool
	ListConfiguredFunc    func(ctx context.Context, tenantID string) ([]*domain.ChannelInstance, error)
	TenantEndpointFunc    func(ctx context.Context, tenantID string) (gateway.Endpoint, error)
}

func (m *MockConnectionService) ListInstances(ctx context.Context, tenantID string, channel domain.ChannelType) ([]*domain.ChannelInstance, error) {
	return m.ListInstancesFunc(ctx, tenantID, channel)
}

func (m *MockConnectionService) ConfigureInstance(ctx context.Context, tenantID string, req *dto.ConfigureInstanceRequest) (*domain.ChannelInstance, error) {
	return m.ConfigureInstanceFunc(ctx, tenantID, req)
}

func (m *MockConnectionService) DeleteInstance(ctx context.Context, tenantID, instanceID string) error {
	return m.DeleteInstanceFunc(ctx, tenantID, instanceID)
}

func (m *MockConnectionService) RequestPairing(ctx context.Context, tenantID, instanceID string) (*gateway.PairingChallenge, error) {
	return m.RequestPairingFunc(ctx, tenantID, instanceID)
}

func (m *MockConnectionService) Disconnect(ctx context.Context, tenantID, instanceID string) error {
	return m.DisconnectFunc(ctx, tenantID, instanceID)
}

func (m *MockConnectionService) GetStatus(ctx context.Context, tenantID, instanceID string) (*domain.ChannelInstance, error) {
	return m.GetStatusFunc(ctx, tenantID, instanceID)
}

func (m *MockConnectionService) ApplyObservation(ctx context.Context, obs domain.Observation) (bool, error) {
	return m.ApplyObservationFunc(ctx, obs)
}

func (m *MockConnectionService) PairingInFlight(instanceKey string) bool {
	if m.PairingInFlightFunc == nil {
		return false
	}
	return m.PairingInFlightFunc(instanceKey)
}

func (m *MockConnectionService) ListConfigured(ctx context.Context, tenantID string) ([]*domain.ChannelInstance, error) {
	return m.ListConfiguredFunc(ctx, tenantID)
}

func (m *MockConnectionService) TenantEndpoint(ctx context.Context, tenantID string) (gateway.Endpoint, error) {
	return m.TenantEndpointFunc(ctx, tenantID)
}
