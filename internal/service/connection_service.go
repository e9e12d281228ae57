// Package service implements the connection manager's business rules.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
	"github.com/Karenfernandes20/integrai-sub001/internal/dto"
	"github.com/Karenfernandes20/integrai-sub001/internal/gateway"
	"github.com/Karenfernandes20/integrai-sub001/internal/notify"
	"github.com/Karenfernandes20/integrai-sub001/internal/repository"
	"github.com/Karenfernandes20/integrai-sub001/pkg/logger"
)

var (
	// ErrTenantNotFound is returned when a tenant does not exist or is inactive
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrInstanceNotFound is returned when an instance does not exist for the tenant
	ErrInstanceNotFound = errors.New("instance not found")
	// ErrInvalidChannel is returned for an unknown channel type
	ErrInvalidChannel = errors.New("invalid channel type")
	// ErrSlotOutOfRange is returned when the slot index exceeds the tenant's plan
	ErrSlotOutOfRange = errors.New("slot index exceeds the tenant's instance limit")
	// ErrInstanceKeyTaken is returned when the requested instance key belongs
	// to another instance
	ErrInstanceKeyTaken = errors.New("instance key already in use")
	// ErrNotConfigured is returned when an operation needs a configured instance
	ErrNotConfigured = errors.New("instance is not configured")
	// ErrPairingInFlight is returned when a pairing request is already running
	// for the instance
	ErrPairingInFlight = errors.New("pairing already in progress")
)

// ValidationError carries per-field problems with a configure request
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d field(s)", len(e.Fields))
}

// ChangeSink receives status changes that were actually applied.
// The Redis bridge implements this to replicate changes across nodes.
type ChangeSink interface {
	Publish(ctx context.Context, change domain.StatusChange) error
}

// ConnectionService manages channel instances and their connection state
type ConnectionService interface {
	// ListInstances returns every slot of the tenant's channel, configured
	// instances and unconfigured placeholders alike, ordered by slot index
	ListInstances(ctx context.Context, tenantID string, channel domain.ChannelType) ([]*domain.ChannelInstance, error)
	// ConfigureInstance creates or reconfigures the instance occupying a slot
	ConfigureInstance(ctx context.Context, tenantID string, req *dto.ConfigureInstanceRequest) (*domain.ChannelInstance, error)
	// DeleteInstance removes an instance and frees its slot
	DeleteInstance(ctx context.Context, tenantID, instanceID string) error
	// RequestPairing starts a pairing session at the gateway and returns the
	// challenge to present to the user
	RequestPairing(ctx context.Context, tenantID, instanceID string) (*gateway.PairingChallenge, error)
	// Disconnect tears down the instance's session. Disconnecting an
	// instance without a session succeeds.
	Disconnect(ctx context.Context, tenantID, instanceID string) error
	// GetStatus returns the stored connection state of one instance
	GetStatus(ctx context.Context, tenantID, instanceID string) (*domain.ChannelInstance, error)
	// ApplyObservation reconciles a remote status report against the stored
	// state and fans out the change if one was applied. Reports that are
	// unknown, stale, or about instances that no longer exist are dropped.
	ApplyObservation(ctx context.Context, obs domain.Observation) (bool, error)
	// PairingInFlight reports whether a pairing request is currently running
	// for the instance key
	PairingInFlight(instanceKey string) bool
	// ListConfigured returns the tenant's configured instances across channels
	ListConfigured(ctx context.Context, tenantID string) ([]*domain.ChannelInstance, error)
	// TenantEndpoint resolves the gateway endpoint serving a tenant
	TenantEndpoint(ctx context.Context, tenantID string) (gateway.Endpoint, error)
}

type connectionService struct {
	instances   repository.InstanceRepository
	tenants     repository.TenantRepository
	gw          gateway.PairingGateway
	broadcaster *notify.Broadcaster
	sink        ChangeSink
	log         *logger.Logger
	metrics     *serviceMetrics

	defaultEndpoint gateway.Endpoint

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
	inFlight map[string]bool
}

// NewConnectionService creates a new connection service. sink may be nil
// when cross-node replication is disabled.
func NewConnectionService(
	instances repository.InstanceRepository,
	tenants repository.TenantRepository,
	gw gateway.PairingGateway,
	broadcaster *notify.Broadcaster,
	sink ChangeSink,
	defaultEndpoint gateway.Endpoint,
	log *logger.Logger,
) ConnectionService {
	if log == nil {
		log = logger.Get()
	}
	return &connectionService{
		instances:       instances,
		tenants:         tenants,
		gw:              gw,
		broadcaster:     broadcaster,
		sink:            sink,
		defaultEndpoint: defaultEndpoint,
		log:             log,
		metrics:         newServiceMetrics(),
		keyLocks:        make(map[string]*sync.Mutex),
		inFlight:        make(map[string]bool),
	}
}

// --- Instance registry ---

// ListInstances returns every slot of the tenant's channel
func (s *connectionService) ListInstances(ctx context.Context, tenantID string, channel domain.ChannelType) ([]*domain.ChannelInstance, error) {
	if !channel.IsValid() {
		return nil, ErrInvalidChannel
	}
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}

	stored, err := s.instances.ListByChannel(ctx, tenantID, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	bySlot := make(map[int]*domain.ChannelInstance, len(stored))
	for _, inst := range stored {
		bySlot[inst.SlotIndex] = inst
	}

	slots := tenant.SlotCount(channel)
	result := make([]*domain.ChannelInstance, 0, slots)
	for i := 0; i < slots; i++ {
		if inst, ok := bySlot[i]; ok {
			result = append(result, inst)
		} else {
			result = append(result, domain.PlaceholderInstance(tenantID, channel, i))
		}
	}
	return result, nil
}

// ConfigureInstance creates or reconfigures the instance occupying a slot
func (s *connectionService) ConfigureInstance(ctx context.Context, tenantID string, req *dto.ConfigureInstanceRequest) (*domain.ChannelInstance, error) {
	if problems := req.Validate(); len(problems) > 0 {
		return nil, &ValidationError{Fields: problems}
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}

	channel := domain.ChannelType(req.ChannelType)
	if req.SlotIndex >= tenant.SlotCount(channel) {
		return nil, ErrSlotOutOfRange
	}

	existing, err := s.instances.GetBySlot(ctx, tenantID, channel, req.SlotIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get slot occupant: %w", err)
	}

	now := time.Now()
	inst := &domain.ChannelInstance{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		ChannelType:     channel,
		SlotIndex:       req.SlotIndex,
		DisplayName:     req.DisplayName,
		InstanceKey:     req.InstanceKey,
		Credential:      req.Credential,
		ColorTag:        req.ColorTag,
		Status:          domain.StatusDisconnected,
		StatusChangedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if existing != nil {
		inst.ID = existing.ID
		inst.CreatedAt = existing.CreatedAt
		inst.Status = existing.Status
		inst.RemoteIdentifier = existing.RemoteIdentifier
		inst.StatusChangedAt = existing.StatusChangedAt
		if inst.InstanceKey == "" {
			inst.InstanceKey = existing.InstanceKey
		}
	}
	if inst.InstanceKey == "" {
		inst.InstanceKey = uuid.New().String()
	}

	if err := s.instances.Upsert(ctx, inst); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrInstanceKeyTaken
		}
		return nil, fmt.Errorf("failed to store instance: %w", err)
	}

	s.log.InfoContext(ctx, "instance configured",
		zap.String("tenant_id", tenantID),
		zap.String("instance_key", inst.InstanceKey),
		zap.String("channel_type", string(channel)),
		zap.Int("slot_index", inst.SlotIndex),
	)
	return inst, nil
}

// DeleteInstance removes an instance and frees its slot
func (s *connectionService) DeleteInstance(ctx context.Context, tenantID, instanceID string) error {
	inst, err := s.ownedInstance(ctx, tenantID, instanceID)
	if err != nil {
		return err
	}

	// Best effort session teardown; a dead gateway must not block deletion
	if inst.IsConfigured() {
		ep, err := s.TenantEndpoint(ctx, tenantID)
		if err == nil {
			if err := s.gw.Disconnect(ctx, ep, inst.InstanceKey); err != nil {
				s.log.WarnContext(ctx, "session teardown failed during delete",
					zap.String("instance_key", inst.InstanceKey),
					zap.Error(err),
				)
			}
		}
	}

	if err := s.instances.Delete(ctx, instanceID); err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}
	s.releaseKey(inst.InstanceKey)

	s.fanOut(ctx, domain.StatusChange{
		TenantID:    tenantID,
		InstanceKey: inst.InstanceKey,
		ChannelType: inst.ChannelType,
		SlotIndex:   inst.SlotIndex,
		Status:      domain.StatusUnconfigured,
		ChangedAt:   time.Now(),
	})
	return nil
}

// --- Connection lifecycle ---

// RequestPairing starts a pairing session at the gateway
func (s *connectionService) RequestPairing(ctx context.Context, tenantID, instanceID string) (*gateway.PairingChallenge, error) {
	inst, err := s.ownedInstance(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	if !inst.IsConfigured() {
		return nil, ErrNotConfigured
	}

	if !s.markInFlight(inst.InstanceKey) {
		return nil, ErrPairingInFlight
	}
	defer s.clearInFlight(inst.InstanceKey)

	ep, err := s.TenantEndpoint(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	challenge, err := s.gw.StartPairing(ctx, ep, inst.InstanceKey, inst.Credential)
	if err != nil {
		if errors.Is(err, gateway.ErrGatewayRejected) {
			// A refused credential is a terminal condition the user must see
			s.applyForced(ctx, inst.InstanceKey, domain.StatusError, "")
		}
		return nil, err
	}

	s.applyForced(ctx, inst.InstanceKey, domain.StatusPairing, "")
	s.log.InfoContext(ctx, "pairing started",
		zap.String("tenant_id", tenantID),
		zap.String("instance_key", inst.InstanceKey),
	)
	return challenge, nil
}

// Disconnect tears down the instance's session
func (s *connectionService) Disconnect(ctx context.Context, tenantID, instanceID string) error {
	inst, err := s.ownedInstance(ctx, tenantID, instanceID)
	if err != nil {
		return err
	}
	if !inst.IsConfigured() || inst.Status == domain.StatusDisconnected {
		return nil
	}

	ep, err := s.TenantEndpoint(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := s.gw.Disconnect(ctx, ep, inst.InstanceKey); err != nil {
		return err
	}

	s.applyForced(ctx, inst.InstanceKey, domain.StatusDisconnected, "")
	return nil
}

// GetStatus returns the stored connection state of one instance
func (s *connectionService) GetStatus(ctx context.Context, tenantID, instanceID string) (*domain.ChannelInstance, error) {
	return s.ownedInstance(ctx, tenantID, instanceID)
}

// --- Reconciliation ---

// ApplyObservation reconciles a remote status report against stored state
func (s *connectionService) ApplyObservation(ctx context.Context, obs domain.Observation) (bool, error) {
	if obs.Status == domain.StatusUnknown || !obs.Status.IsValid() {
		s.metrics.rejected(ctx, string(obs.Source), "invalid_status")
		return false, nil
	}

	unlock := s.lockKey(obs.InstanceKey)
	defer unlock()

	inst, changed, err := s.instances.SetStatus(ctx, obs.InstanceKey, obs.Status, obs.RemoteIdentifier, false)
	if err != nil {
		return false, fmt.Errorf("failed to apply observation: %w", err)
	}
	if inst == nil {
		// Reports about deleted or never-known instances are dropped
		s.log.DebugContext(ctx, "observation for unknown instance",
			zap.String("instance_key", obs.InstanceKey),
			zap.String("source", string(obs.Source)),
		)
		s.metrics.rejected(ctx, string(obs.Source), "unknown_instance")
		return false, nil
	}
	if !changed {
		s.metrics.rejected(ctx, string(obs.Source), "stale")
		return false, nil
	}
	s.metrics.applied(ctx, string(obs.Source))

	s.log.InfoContext(ctx, "instance status changed",
		zap.String("tenant_id", inst.TenantID),
		zap.String("instance_key", inst.InstanceKey),
		zap.String("status", string(inst.Status)),
		zap.String("source", string(obs.Source)),
	)
	s.fanOut(ctx, domain.StatusChange{
		TenantID:         inst.TenantID,
		InstanceKey:      inst.InstanceKey,
		ChannelType:      inst.ChannelType,
		SlotIndex:        inst.SlotIndex,
		Status:           inst.Status,
		RemoteIdentifier: inst.RemoteIdentifier,
		ChangedAt:        inst.StatusChangedAt,
	})
	return true, nil
}

// PairingInFlight reports whether a pairing request is running for the key
func (s *connectionService) PairingInFlight(instanceKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[instanceKey]
}

// ListConfigured returns the tenant's configured instances across channels
func (s *connectionService) ListConfigured(ctx context.Context, tenantID string) ([]*domain.ChannelInstance, error) {
	all, err := s.instances.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	configured := make([]*domain.ChannelInstance, 0, len(all))
	for _, inst := range all {
		if inst.IsConfigured() {
			configured = append(configured, inst)
		}
	}
	return configured, nil
}

// TenantEndpoint resolves the gateway endpoint serving a tenant
func (s *connectionService) TenantEndpoint(ctx context.Context, tenantID string) (gateway.Endpoint, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return gateway.Endpoint{}, fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenant == nil {
		return gateway.Endpoint{}, ErrTenantNotFound
	}

	ep := s.defaultEndpoint
	if tenant.GatewayBaseURL != "" {
		ep.BaseURL = tenant.GatewayBaseURL
	}
	if tenant.GatewaySecret != "" {
		ep.Secret = tenant.GatewaySecret
	}
	return ep, nil
}

// --- Internals ---

// ownedInstance loads an instance and verifies tenant ownership
func (s *connectionService) ownedInstance(ctx context.Context, tenantID, instanceID string) (*domain.ChannelInstance, error) {
	inst, err := s.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	if inst == nil || inst.TenantID != tenantID {
		return nil, ErrInstanceNotFound
	}
	return inst, nil
}

// applyForced stores a client-initiated transition, bypassing the
// observation ordering check, and fans out the change if one was applied
func (s *connectionService) applyForced(ctx context.Context, instanceKey string, status domain.InstanceStatus, remoteID string) {
	unlock := s.lockKey(instanceKey)
	defer unlock()

	inst, changed, err := s.instances.SetStatus(ctx, instanceKey, status, remoteID, true)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to store forced transition",
			zap.String("instance_key", instanceKey),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return
	}
	if inst == nil || !changed {
		return
	}
	s.fanOut(ctx, domain.StatusChange{
		TenantID:         inst.TenantID,
		InstanceKey:      inst.InstanceKey,
		ChannelType:      inst.ChannelType,
		SlotIndex:        inst.SlotIndex,
		Status:           inst.Status,
		RemoteIdentifier: inst.RemoteIdentifier,
		ChangedAt:        inst.StatusChangedAt,
	})
}

func (s *connectionService) fanOut(ctx context.Context, change domain.StatusChange) {
	s.broadcaster.Publish(change)
	if s.sink != nil {
		if err := s.sink.Publish(ctx, change); err != nil {
			s.log.WarnContext(ctx, "failed to replicate status change",
				zap.String("instance_key", change.InstanceKey),
				zap.Error(err),
			)
		}
	}
}

func (s *connectionService) lockKey(instanceKey string) func() {
	s.mu.Lock()
	lock, ok := s.keyLocks[instanceKey]
	if !ok {
		lock = &sync.Mutex{}
		s.keyLocks[instanceKey] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// releaseKey drops the per-key state of a deleted instance. A reconciliation
// racing the delete at worst creates a fresh lock and then finds no row.
func (s *connectionService) releaseKey(instanceKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keyLocks, instanceKey)
	delete(s.inFlight, instanceKey)
}

func (s *connectionService) markInFlight(instanceKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[instanceKey] {
		return false
	}
	s.inFlight[instanceKey] = true
	return true
}

func (s *connectionService) clearInFlight(instanceKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, instanceKey)
}
