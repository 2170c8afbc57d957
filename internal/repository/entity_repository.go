package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/rowql/internal/db"
	"github.com/rpattn/rowql/internal/domain"
)

// entityRepository implements EntityRepository and PropertyRepository
type entityRepository struct {
	pool *pgxpool.Pool
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(pool *pgxpool.Pool) *entityRepository {
	return &entityRepository{pool: pool}
}

const propertyColumns = "id, entity_id, name, title, type, sort_order, is_filterable, is_table_filter, is_searchable, is_unique, options"

// Create inserts the entity, its properties and its parent links in one transaction.
func (r *entityRepository) Create(ctx context.Context, entity domain.Entity) (domain.Entity, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO entities (id, tenant_id, name, slug, title, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			entity.ID, entity.TenantID, entity.Name, entity.Slug, entity.Title, entity.CreatedAt, entity.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create entity: %w", err)
		}

		for _, p := range entity.Properties {
			options, err := json.Marshal(p.Options)
			if err != nil {
				return fmt.Errorf("failed to marshal options for %q: %w", p.Name, err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO properties (`+propertyColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				p.ID, entity.ID, p.Name, p.Title, string(p.Type), p.Order,
				p.IsFilterable, p.IsTableFilter, p.IsSearchable, p.IsUnique, options,
			); err != nil {
				return fmt.Errorf("failed to create property %q: %w", p.Name, err)
			}
		}

		for _, parentID := range entity.ParentEntityIDs {
			if _, err := tx.Exec(ctx,
				"INSERT INTO entity_relationships (parent_entity_id, child_entity_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
				parentID, entity.ID,
			); err != nil {
				return fmt.Errorf("failed to link parent entity: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Entity{}, err
	}
	return entity, nil
}

// GetByID retrieves an entity with its properties
func (r *entityRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Entity, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetBySlug retrieves an entity by its tenant-scoped slug
func (r *entityRepository) GetBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (domain.Entity, error) {
	return r.getOne(ctx, "tenant_id = $1 AND slug = $2", tenantID, slug)
}

// List retrieves every entity of a tenant
func (r *entityRepository) List(ctx context.Context, tenantID uuid.UUID) ([]domain.Entity, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, tenant_id, name, slug, title, created_at, updated_at FROM entities WHERE tenant_id = $1 ORDER BY name",
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	entities, err := pgx.CollectRows(rows, scanEntity)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entities: %w", err)
	}

	for i := range entities {
		if err := r.hydrate(ctx, &entities[i]); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

// GetByIDs retrieves properties by id in no particular order.
func (r *entityRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Property, error) {
	if len(ids) == 0 {
		return []domain.Property{}, nil
	}
	return r.queryProperties(ctx, "SELECT "+propertyColumns+" FROM properties WHERE id = ANY($1::uuid[])", ids)
}

// ListByEntity retrieves the entity's properties in display order.
func (r *entityRepository) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]domain.Property, error) {
	return r.queryProperties(ctx, "SELECT "+propertyColumns+" FROM properties WHERE entity_id = $1 ORDER BY sort_order, name", entityID)
}

func (r *entityRepository) getOne(ctx context.Context, where string, args ...any) (domain.Entity, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, tenant_id, name, slug, title, created_at, updated_at FROM entities WHERE "+where, args...)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to get entity: %w", err)
	}
	entity, err := pgx.CollectOneRow(rows, scanEntity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Entity{}, ErrNotFound
		}
		return domain.Entity{}, fmt.Errorf("failed to get entity: %w", err)
	}
	if err := r.hydrate(ctx, &entity); err != nil {
		return domain.Entity{}, err
	}
	return entity, nil
}

func (r *entityRepository) hydrate(ctx context.Context, entity *domain.Entity) error {
	props, err := r.ListByEntity(ctx, entity.ID)
	if err != nil {
		return err
	}
	entity.Properties = props

	rows, err := r.pool.Query(ctx, "SELECT parent_entity_id FROM entity_relationships WHERE child_entity_id = $1", entity.ID)
	if err != nil {
		return fmt.Errorf("failed to load parent entities: %w", err)
	}
	parents, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return fmt.Errorf("failed to scan parent entities: %w", err)
	}
	entity.ParentEntityIDs = parents
	return nil
}

func (r *entityRepository) queryProperties(ctx context.Context, sql string, arg any) ([]domain.Property, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	props, err := pgx.CollectRows(rows, scanProperty)
	if err != nil {
		return nil, fmt.Errorf("failed to scan properties: %w", err)
	}
	return props, nil
}

func scanEntity(row pgx.CollectableRow) (domain.Entity, error) {
	var e domain.Entity
	err := row.Scan(&e.ID, &e.TenantID, &e.Name, &e.Slug, &e.Title, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func scanProperty(row pgx.CollectableRow) (domain.Property, error) {
	var (
		p       domain.Property
		typ     string
		options []byte
	)
	if err := row.Scan(&p.ID, &p.EntityID, &p.Name, &p.Title, &typ, &p.Order,
		&p.IsFilterable, &p.IsTableFilter, &p.IsSearchable, &p.IsUnique, &options); err != nil {
		return domain.Property{}, err
	}
	parsed, ok := domain.ParsePropertyType(typ)
	if !ok {
		return domain.Property{}, fmt.Errorf("unknown property type %q", typ)
	}
	p.Type = parsed
	if len(options) > 0 {
		if err := json.Unmarshal(options, &p.Options); err != nil {
			return domain.Property{}, fmt.Errorf("failed to decode options for %q: %w", p.Name, err)
		}
	}
	return p, nil
}
