package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
)

// MemoryInstanceRepository is an in-memory InstanceRepository for tests and
// local development. All reads return copies so callers cannot mutate the
// stored state.
type MemoryInstanceRepository struct {
	mu        sync.RWMutex
	instances map[string]*domain.ChannelInstance // keyed by ID
	byKey     map[string]string                  // instance key -> ID
}

// NewMemoryInstanceRepository creates a new MemoryInstanceRepository
func NewMemoryInstanceRepository() *MemoryInstanceRepository {
	return &MemoryInstanceRepository{
		instances: make(map[string]*domain.ChannelInstance),
		byKey:     make(map[string]string),
	}
}

// ListByChannel retrieves a tenant's instances for one channel type, ordered by slot index
func (r *MemoryInstanceRepository) ListByChannel(ctx context.Context, tenantID string, channel domain.ChannelType) ([]*domain.ChannelInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.ChannelInstance, 0)
	for _, inst := range r.instances {
		if inst.TenantID == tenantID && inst.ChannelType == channel {
			result = append(result, copyInstance(inst))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SlotIndex < result[j].SlotIndex })
	return result, nil
}

// ListByTenant retrieves all of a tenant's instances across channel types
func (r *MemoryInstanceRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.ChannelInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.ChannelInstance, 0)
	for _, inst := range r.instances {
		if inst.TenantID == tenantID {
			result = append(result, copyInstance(inst))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ChannelType != result[j].ChannelType {
			return result[i].ChannelType < result[j].ChannelType
		}
		return result[i].SlotIndex < result[j].SlotIndex
	})
	return result, nil
}

// GetByID retrieves an instance by its ID
func (r *MemoryInstanceRepository) GetByID(ctx context.Context, id string) (*domain.ChannelInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instances[id]
	if !ok {
		return nil, nil
	}
	return copyInstance(inst), nil
}

// GetByKey retrieves an instance by its globally unique instance key
func (r *MemoryInstanceRepository) GetByKey(ctx context.Context, instanceKey string) (*domain.ChannelInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[instanceKey]
	if !ok {
		return nil, nil
	}
	return copyInstance(r.instances[id]), nil
}

// GetBySlot retrieves the instance at (tenant, channel, slot)
func (r *MemoryInstanceRepository) GetBySlot(ctx context.Context, tenantID string, channel domain.ChannelType, slot int) (*domain.ChannelInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, inst := range r.instances {
		if inst.TenantID == tenantID && inst.ChannelType == channel && inst.SlotIndex == slot {
			return copyInstance(inst), nil
		}
	}
	return nil, nil
}

// Upsert creates or replaces the instance at its (tenant, channel, slot) position
func (r *MemoryInstanceRepository) Upsert(ctx context.Context, inst *domain.ChannelInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst.InstanceKey != "" {
		if existingID, ok := r.byKey[inst.InstanceKey]; ok && existingID != inst.ID {
			return ErrDuplicateKey
		}
	}

	// Replace a previous occupant of the same slot
	for id, existing := range r.instances {
		if existing.TenantID == inst.TenantID && existing.ChannelType == inst.ChannelType &&
			existing.SlotIndex == inst.SlotIndex && id != inst.ID {
			delete(r.byKey, existing.InstanceKey)
			delete(r.instances, id)
		}
	}

	if prev, ok := r.instances[inst.ID]; ok && prev.InstanceKey != inst.InstanceKey {
		delete(r.byKey, prev.InstanceKey)
	}

	r.instances[inst.ID] = copyInstance(inst)
	if inst.InstanceKey != "" {
		r.byKey[inst.InstanceKey] = inst.ID
	}
	return nil
}

// SetStatus conditionally stores a new status and remote identifier
func (r *MemoryInstanceRepository) SetStatus(ctx context.Context, instanceKey string, status domain.InstanceStatus, remoteID string, force bool) (*domain.ChannelInstance, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byKey[instanceKey]
	if !ok {
		return nil, false, nil
	}
	inst := r.instances[id]

	if !force && !status.CanSupersede(inst.Status) {
		return copyInstance(inst), false, nil
	}
	if inst.Status == status && inst.RemoteIdentifier == remoteID {
		return copyInstance(inst), false, nil
	}

	now := time.Now()
	inst.Status = status
	inst.RemoteIdentifier = remoteID
	inst.StatusChangedAt = now
	inst.UpdatedAt = now
	return copyInstance(inst), true, nil
}

// Delete removes an instance by ID
func (r *MemoryInstanceRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[id]
	if !ok {
		return fmt.Errorf("instance not found")
	}
	delete(r.byKey, inst.InstanceKey)
	delete(r.instances, id)
	return nil
}

func copyInstance(inst *domain.ChannelInstance) *domain.ChannelInstance {
	c := *inst
	return &c
}

// MemoryTenantRepository is an in-memory TenantRepository for tests and
// local development
type MemoryTenantRepository struct {
	mu      sync.RWMutex
	tenants map[string]*domain.TenantAccount
}

// NewMemoryTenantRepository creates a new MemoryTenantRepository
func NewMemoryTenantRepository() *MemoryTenantRepository {
	return &MemoryTenantRepository{tenants: make(map[string]*domain.TenantAccount)}
}

// Create creates a new tenant account
func (r *MemoryTenantRepository) Create(ctx context.Context, tenant *domain.TenantAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tenants[tenant.ID]; ok {
		return fmt.Errorf("tenant already exists")
	}
	r.tenants[tenant.ID] = copyTenant(tenant)
	return nil
}

// GetByID retrieves a tenant by ID
func (r *MemoryTenantRepository) GetByID(ctx context.Context, id string) (*domain.TenantAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tenant, ok := r.tenants[id]
	if !ok || tenant.DeletedAt != nil {
		return nil, nil
	}
	return copyTenant(tenant), nil
}

// Update updates a tenant's name, plan limits and gateway settings
func (r *MemoryTenantRepository) Update(ctx context.Context, tenant *domain.TenantAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tenants[tenant.ID]; !ok {
		return fmt.Errorf("tenant not found")
	}
	updated := copyTenant(tenant)
	updated.UpdatedAt = time.Now()
	r.tenants[tenant.ID] = updated
	return nil
}

func copyTenant(t *domain.TenantAccount) *domain.TenantAccount {
	c := *t
	if t.MaxInstances != nil {
		c.MaxInstances = make(map[domain.ChannelType]int, len(t.MaxInstances))
		for k, v := range t.MaxInstances {
			c.MaxInstances[k] = v
		}
	}
	return &c
}
