package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/rowql/internal/db"
	"github.com/rpattn/rowql/internal/domain"
)

// tenantRepository implements TenantRepository interface
type tenantRepository struct {
	db db.DBTX
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(exec db.DBTX) TenantRepository {
	return &tenantRepository{db: exec}
}

// Create creates a new tenant
func (r *tenantRepository) Create(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO tenants (id, name, slug, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`,
		tenant.ID, tenant.Name, tenant.Slug, tenant.CreatedAt, tenant.UpdatedAt,
	).Scan(&tenant.ID, &tenant.CreatedAt)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("failed to create tenant: %w", err)
	}
	return tenant, nil
}

// GetByID retrieves a tenant by ID
func (r *tenantRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Tenant, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetBySlug retrieves a tenant by slug
func (r *tenantRepository) GetBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	return r.getOne(ctx, "slug = $1", slug)
}

func (r *tenantRepository) getOne(ctx context.Context, where string, arg any) (domain.Tenant, error) {
	var t domain.Tenant
	err := r.db.QueryRow(ctx, "SELECT id, name, slug, created_at, updated_at FROM tenants WHERE "+where, arg).
		Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tenant{}, ErrNotFound
		}
		return domain.Tenant{}, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}
