package repository

import (
	"context"
	"errors"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
)

var (
	// ErrDuplicateKey is returned when an instance key is already taken
	ErrDuplicateKey = errors.New("instance key already exists")
)

// InstanceRepository defines the interface for channel instance data access.
// Lookups return (nil, nil) when no row matches.
type InstanceRepository interface {
	// ListByChannel retrieves a tenant's instances for one channel type,
	// ordered by slot index
	ListByChannel(ctx context.Context, tenantID string, channel domain.ChannelType) ([]*domain.ChannelInstance, error)
	// ListByTenant retrieves all of a tenant's instances across channel types
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.ChannelInstance, error)
	// GetByID retrieves an instance by its ID
	GetByID(ctx context.Context, id string) (*domain.ChannelInstance, error)
	// GetByKey retrieves an instance by its globally unique instance key
	GetByKey(ctx context.Context, instanceKey string) (*domain.ChannelInstance, error)
	// GetBySlot retrieves the instance at (tenant, channel, slot)
	GetBySlot(ctx context.Context, tenantID string, channel domain.ChannelType, slot int) (*domain.ChannelInstance, error)
	// Upsert creates or replaces the instance at its (tenant, channel, slot)
	// position. Returns ErrDuplicateKey when the instance key is held by a
	// different instance.
	Upsert(ctx context.Context, inst *domain.ChannelInstance) error
	// SetStatus conditionally stores a new status and remote identifier for
	// the instance with the given key. Unless force is set, the write is
	// skipped when the new status cannot supersede the stored one. Returns
	// the stored instance and whether the stored state actually changed.
	// Returns (nil, false, nil) when the instance does not exist.
	SetStatus(ctx context.Context, instanceKey string, status domain.InstanceStatus, remoteID string, force bool) (*domain.ChannelInstance, bool, error)
	// Delete removes an instance by ID
	Delete(ctx context.Context, id string) error
}

// TenantRepository defines the interface for tenant account data access
type TenantRepository interface {
	// Create creates a new tenant account
	Create(ctx context.Context, tenant *domain.TenantAccount) error
	// GetByID retrieves a tenant by ID, (nil, nil) when missing
	GetByID(ctx context.Context, id string) (*domain.TenantAccount, error)
	// Update updates a tenant's name, plan limits and gateway settings
	Update(ctx context.Context, tenant *domain.TenantAccount) error
}
