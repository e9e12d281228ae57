package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
)

const pgUniqueViolation = "23505"

// statusRankSQL mirrors the advancement ordering of domain.InstanceStatus
// so the conditional status write stays a single atomic statement.
const statusRankSQL = `CASE status
	WHEN 'unconfigured' THEN 0
	WHEN 'pairing' THEN 1
	WHEN 'scanning' THEN 2
	ELSE 3
END`

const instanceColumns = `id, tenant_id, channel_type, slot_index, display_name, instance_key,
	       COALESCE(credential, '') as credential, COALESCE(color_tag, '') as color_tag,
	       status, COALESCE(remote_identifier, '') as remote_identifier,
	       status_changed_at, created_at, updated_at`

// PostgresInstanceRepository implements InstanceRepository using PostgreSQL
type PostgresInstanceRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresInstanceRepository creates a new PostgresInstanceRepository
func NewPostgresInstanceRepository(pool *pgxpool.Pool) *PostgresInstanceRepository {
	return &PostgresInstanceRepository{pool: pool}
}

// ListByChannel retrieves a tenant's instances for one channel type, ordered by slot index
func (r *PostgresInstanceRepository) ListByChannel(ctx context.Context, tenantID string, channel domain.ChannelType) ([]*domain.ChannelInstance, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM channel_instances
		WHERE tenant_id = $1 AND channel_type = $2
		ORDER BY slot_index ASC
	`, instanceColumns)

	rows, err := r.pool.Query(ctx, query, tenantID, channel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanInstances(rows)
}

// ListByTenant retrieves all of a tenant's instances across channel types
func (r *PostgresInstanceRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.ChannelInstance, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM channel_instances
		WHERE tenant_id = $1
		ORDER BY channel_type ASC, slot_index ASC
	`, instanceColumns)

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanInstances(rows)
}

// GetByID retrieves an instance by its ID
func (r *PostgresInstanceRepository) GetByID(ctx context.Context, id string) (*domain.ChannelInstance, error) {
	query := fmt.Sprintf(`SELECT %s FROM channel_instances WHERE id = $1`, instanceColumns)
	return r.getOne(ctx, query, id)
}

// GetByKey retrieves an instance by its globally unique instance key
func (r *PostgresInstanceRepository) GetByKey(ctx context.Context, instanceKey string) (*domain.ChannelInstance, error) {
	query := fmt.Sprintf(`SELECT %s FROM channel_instances WHERE instance_key = $1`, instanceColumns)
	return r.getOne(ctx, query, instanceKey)
}

// GetBySlot retrieves the instance at (tenant, channel, slot)
func (r *PostgresInstanceRepository) GetBySlot(ctx context.Context, tenantID string, channel domain.ChannelType, slot int) (*domain.ChannelInstance, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM channel_instances
		WHERE tenant_id = $1 AND channel_type = $2 AND slot_index = $3
	`, instanceColumns)
	return r.getOne(ctx, query, tenantID, channel, slot)
}

// Upsert creates or replaces the instance at its (tenant, channel, slot) position
func (r *PostgresInstanceRepository) Upsert(ctx context.Context, inst *domain.ChannelInstance) error {
	query := `
		INSERT INTO channel_instances (
			id, tenant_id, channel_type, slot_index, display_name, instance_key,
			credential, color_tag, status, remote_identifier, status_changed_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (tenant_id, channel_type, slot_index) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			instance_key = EXCLUDED.instance_key,
			credential = EXCLUDED.credential,
			color_tag = EXCLUDED.color_tag,
			status = EXCLUDED.status,
			remote_identifier = EXCLUDED.remote_identifier,
			status_changed_at = EXCLUDED.status_changed_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		inst.ID,
		inst.TenantID,
		inst.ChannelType,
		inst.SlotIndex,
		inst.DisplayName,
		inst.InstanceKey,
		nullStringOrValue(inst.Credential),
		nullStringOrValue(inst.ColorTag),
		inst.Status,
		nullStringOrValue(inst.RemoteIdentifier),
		inst.StatusChangedAt,
		inst.CreatedAt,
		inst.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

// SetStatus conditionally stores a new status and remote identifier
func (r *PostgresInstanceRepository) SetStatus(ctx context.Context, instanceKey string, status domain.InstanceStatus, remoteID string, force bool) (*domain.ChannelInstance, bool, error) {
	now := time.Now()
	query := fmt.Sprintf(`
		UPDATE channel_instances
		SET status = $2, remote_identifier = $3, status_changed_at = $4, updated_at = $4
		WHERE instance_key = $1
		  AND ($5 OR $6 >= %s)
		  AND (status <> $2 OR COALESCE(remote_identifier, '') <> $3)
	`, statusRankSQL)

	result, err := r.pool.Exec(ctx, query, instanceKey, status, remoteID, now, force, status.Rank())
	if err != nil {
		return nil, false, err
	}
	changed := result.RowsAffected() > 0

	inst, err := r.GetByKey(ctx, instanceKey)
	if err != nil {
		return nil, false, err
	}
	if inst == nil {
		return nil, false, nil
	}
	return inst, changed, nil
}

// Delete removes an instance by ID
func (r *PostgresInstanceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM channel_instances WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("instance not found")
	}
	return nil
}

func (r *PostgresInstanceRepository) getOne(ctx context.Context, query string, args ...interface{}) (*domain.ChannelInstance, error) {
	inst := &domain.ChannelInstance{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&inst.ID,
		&inst.TenantID,
		&inst.ChannelType,
		&inst.SlotIndex,
		&inst.DisplayName,
		&inst.InstanceKey,
		&inst.Credential,
		&inst.ColorTag,
		&inst.Status,
		&inst.RemoteIdentifier,
		&inst.StatusChangedAt,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return inst, nil
}

func scanInstances(rows pgx.Rows) ([]*domain.ChannelInstance, error) {
	instances := make([]*domain.ChannelInstance, 0)
	for rows.Next() {
		inst := &domain.ChannelInstance{}
		err := rows.Scan(
			&inst.ID,
			&inst.TenantID,
			&inst.ChannelType,
			&inst.SlotIndex,
			&inst.DisplayName,
			&inst.InstanceKey,
			&inst.Credential,
			&inst.ColorTag,
			&inst.Status,
			&inst.RemoteIdentifier,
			&inst.StatusChangedAt,
			&inst.CreatedAt,
			&inst.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// nullStringOrValue returns nil for empty strings, otherwise returns the value
func nullStringOrValue(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
