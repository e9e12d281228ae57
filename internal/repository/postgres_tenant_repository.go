package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
)

// PostgresTenantRepository implements TenantRepository using PostgreSQL
type PostgresTenantRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTenantRepository creates a new PostgresTenantRepository
func NewPostgresTenantRepository(pool *pgxpool.Pool) *PostgresTenantRepository {
	return &PostgresTenantRepository{pool: pool}
}

// Create creates a new tenant account
func (r *PostgresTenantRepository) Create(ctx context.Context, tenant *domain.TenantAccount) error {
	limits, err := json.Marshal(tenant.MaxInstances)
	if err != nil {
		return fmt.Errorf("failed to marshal max instances: %w", err)
	}

	query := `
		INSERT INTO tenant_accounts (
			id, name, slug, max_instances, gateway_base_url, gateway_secret,
			is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Slug,
		limits,
		nullStringOrValue(tenant.GatewayBaseURL),
		nullStringOrValue(tenant.GatewaySecret),
		tenant.IsActive,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	return err
}

// GetByID retrieves a tenant by ID
func (r *PostgresTenantRepository) GetByID(ctx context.Context, id string) (*domain.TenantAccount, error) {
	query := `
		SELECT id, name, slug, max_instances,
		       COALESCE(gateway_base_url, '') as gateway_base_url,
		       COALESCE(gateway_secret, '') as gateway_secret,
		       is_active, created_at, updated_at, deleted_at
		FROM tenant_accounts
		WHERE id = $1 AND deleted_at IS NULL
	`

	tenant := &domain.TenantAccount{}
	var limits []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Slug,
		&limits,
		&tenant.GatewayBaseURL,
		&tenant.GatewaySecret,
		&tenant.IsActive,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
		&tenant.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if len(limits) > 0 {
		if err := json.Unmarshal(limits, &tenant.MaxInstances); err != nil {
			return nil, fmt.Errorf("failed to unmarshal max instances: %w", err)
		}
	}
	return tenant, nil
}

// Update updates a tenant's name, plan limits and gateway settings
func (r *PostgresTenantRepository) Update(ctx context.Context, tenant *domain.TenantAccount) error {
	limits, err := json.Marshal(tenant.MaxInstances)
	if err != nil {
		return fmt.Errorf("failed to marshal max instances: %w", err)
	}

	query := `
		UPDATE tenant_accounts
		SET name = $2, max_instances = $3, gateway_base_url = $4,
		    gateway_secret = $5, is_active = $6, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.pool.Exec(ctx, query,
		tenant.ID,
		tenant.Name,
		limits,
		nullStringOrValue(tenant.GatewayBaseURL),
		nullStringOrValue(tenant.GatewaySecret),
		tenant.IsActive,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("tenant not found")
	}
	return nil
}
