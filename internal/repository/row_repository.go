package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/rowql/internal/db"
	"github.com/rpattn/rowql/internal/domain"
)

// rowRepository implements RowRepository interface
type rowRepository struct {
	pool *pgxpool.Pool
}

// NewRowRepository creates a new row repository
func NewRowRepository(pool *pgxpool.Pool) RowRepository {
	return &rowRepository{pool: pool}
}

const rowAlias = "r"

// Create validates the row against its entity, rejects duplicate unique values,
// assigns the next folio and stores the row with its values and tags.
func (r *rowRepository) Create(ctx context.Context, entity domain.Entity, row domain.Row) (domain.Row, error) {
	if err := row.ValidateValues(entity); err != nil {
		return domain.Row{}, err
	}

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1::text))", entity.ID); err != nil {
			return fmt.Errorf("failed to lock entity rows: %w", err)
		}

		if unique, ok := uniquePredicate(entity, row); ok {
			builder := newSQLBuilder()
			entityIdx := builder.addArg(entity.ID)
			where := compilePredicate(unique, rowAlias, builder)
			var taken bool
			query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM entity_rows %s WHERE %s.entity_id = %s AND %s)",
				rowAlias, rowAlias, builder.placeholder(entityIdx), where)
			if err := tx.QueryRow(ctx, query, builder.args...).Scan(&taken); err != nil {
				return fmt.Errorf("failed to check unique values: %w", err)
			}
			if taken {
				return ErrUniqueViolation
			}
		}

		if err := tx.QueryRow(ctx,
			"SELECT COALESCE(MAX(folio), 0) + 1 FROM entity_rows WHERE entity_id = $1", entity.ID,
		).Scan(&row.Folio); err != nil {
			return fmt.Errorf("failed to assign folio: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO entity_rows (id, tenant_id, entity_id, folio, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			row.ID, row.TenantID, entity.ID, row.Folio, row.CreatedAt, row.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create row: %w", err)
		}

		for _, v := range row.Values {
			if _, err := tx.Exec(ctx, `
				INSERT INTO row_values (id, row_id, property_id, number_value, text_value, date_value, boolean_value)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				v.ID, row.ID, v.PropertyID, v.NumberValue, v.TextValue, v.DateValue, v.BooleanValue,
			); err != nil {
				return fmt.Errorf("failed to store value for property %s: %w", v.PropertyID, err)
			}
		}

		for _, tag := range row.Tags {
			if _, err := tx.Exec(ctx,
				"INSERT INTO row_tags (row_id, value) VALUES ($1, $2) ON CONFLICT DO NOTHING", row.ID, tag,
			); err != nil {
				return fmt.Errorf("failed to tag row: %w", err)
			}
		}

		for _, parentID := range row.ParentIDs {
			if _, err := tx.Exec(ctx,
				"INSERT INTO row_relationships (parent_id, child_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", parentID, row.ID,
			); err != nil {
				return fmt.Errorf("failed to link parent row: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Row{}, err
	}

	row.EntityID = entity.ID
	return row, nil
}

// GetByID retrieves a row with its values, tags and parents
func (r *rowRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Row, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, tenant_id, entity_id, folio, created_at, updated_at FROM entity_rows WHERE id = $1", id)
	if err != nil {
		return domain.Row{}, fmt.Errorf("failed to get row: %w", err)
	}
	row, err := pgx.CollectOneRow(rows, scanRow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Row{}, ErrNotFound
		}
		return domain.Row{}, fmt.Errorf("failed to get row: %w", err)
	}

	loaded := []domain.Row{row}
	if err := r.attach(ctx, loaded); err != nil {
		return domain.Row{}, err
	}
	return loaded[0], nil
}

// Delete removes a row; values, tags and links cascade.
func (r *rowRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM entity_rows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddTag attaches a tag value to the row
func (r *rowRepository) AddTag(ctx context.Context, rowID uuid.UUID, tag string) error {
	if _, err := r.pool.Exec(ctx,
		"INSERT INTO row_tags (row_id, value) VALUES ($1, $2) ON CONFLICT DO NOTHING", rowID, strings.TrimSpace(tag),
	); err != nil {
		return fmt.Errorf("failed to tag row: %w", err)
	}
	return nil
}

// LinkParent records parentID as a parent row of childID
func (r *rowRepository) LinkParent(ctx context.Context, parentID, childID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx,
		"INSERT INTO row_relationships (parent_id, child_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", parentID, childID,
	); err != nil {
		return fmt.Errorf("failed to link parent row: %w", err)
	}
	return nil
}

// Search compiles the predicate into a WHERE clause and returns one page of
// matching rows together with the total match count.
func (r *rowRepository) Search(ctx context.Context, query RowQuery) ([]domain.Row, int, error) {
	countQuery, pageQuery, countArgs, pageArgs := buildSearchQueries(query)

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rows: %w", err)
	}
	if total == 0 {
		return []domain.Row{}, 0, nil
	}

	rows, err := r.pool.Query(ctx, pageQuery, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("execute row search: %w", err)
	}
	page, err := pgx.CollectRows(rows, scanRow)
	if err != nil {
		return nil, 0, fmt.Errorf("scan rows: %w", err)
	}

	if err := r.attach(ctx, page); err != nil {
		return nil, 0, err
	}
	return page, total, nil
}

// buildSearchQueries returns the count and page statements with their arguments.
func buildSearchQueries(query RowQuery) (countQuery, pageQuery string, countArgs, pageArgs []any) {
	builder := newSQLBuilder()
	tenantIdx := builder.addArg(query.TenantID)
	entityIdx := builder.addArg(query.EntityID)

	whereClauses := []string{
		fmt.Sprintf("%s.tenant_id = %s", rowAlias, builder.placeholder(tenantIdx)),
		fmt.Sprintf("%s.entity_id = %s", rowAlias, builder.placeholder(entityIdx)),
	}
	if !query.Predicate.MatchesEverything() {
		whereClauses = append(whereClauses, compilePredicate(query.Predicate, rowAlias, builder))
	}

	from := fmt.Sprintf("FROM entity_rows %s WHERE %s", rowAlias, strings.Join(whereClauses, " AND "))
	countQuery = "SELECT COUNT(*) " + from
	countArgs = append([]any{}, builder.args...)

	orderClause := compileOrder(query.Sort, rowAlias, builder)

	page := query.Pagination.Normalize()
	limitIdx := builder.addArg(page.PageSize)
	offsetIdx := builder.addArg(page.Offset())

	pageQuery = fmt.Sprintf("SELECT %[1]s.id, %[1]s.tenant_id, %[1]s.entity_id, %[1]s.folio, %[1]s.created_at, %[1]s.updated_at %[2]s %[3]s LIMIT %[4]s OFFSET %[5]s",
		rowAlias, from, orderClause, builder.placeholder(limitIdx), builder.placeholder(offsetIdx))
	return countQuery, pageQuery, countArgs, builder.args
}

// attach loads values, tags and parent ids for the given rows in three queries.
func (r *rowRepository) attach(ctx context.Context, rows []domain.Row) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(rows))
	index := make(map[uuid.UUID]int, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		index[row.ID] = i
	}

	valueRows, err := r.pool.Query(ctx, `
		SELECT id, row_id, property_id, number_value, text_value, date_value, boolean_value
		FROM row_values WHERE row_id = ANY($1::uuid[]) ORDER BY row_id, id`, ids)
	if err != nil {
		return fmt.Errorf("failed to load row values: %w", err)
	}
	values, err := pgx.CollectRows(valueRows, func(row pgx.CollectableRow) (domain.RowValue, error) {
		var v domain.RowValue
		err := row.Scan(&v.ID, &v.RowID, &v.PropertyID, &v.NumberValue, &v.TextValue, &v.DateValue, &v.BooleanValue)
		return v, err
	})
	if err != nil {
		return fmt.Errorf("failed to scan row values: %w", err)
	}
	for _, v := range values {
		rows[index[v.RowID]].Values = append(rows[index[v.RowID]].Values, v)
	}

	tagRows, err := r.pool.Query(ctx, "SELECT row_id, value FROM row_tags WHERE row_id = ANY($1::uuid[]) ORDER BY value", ids)
	if err != nil {
		return fmt.Errorf("failed to load row tags: %w", err)
	}
	if err := collectPairs(tagRows, func(rowID uuid.UUID, value string) {
		rows[index[rowID]].Tags = append(rows[index[rowID]].Tags, value)
	}); err != nil {
		return fmt.Errorf("failed to scan row tags: %w", err)
	}

	parentRows, err := r.pool.Query(ctx, "SELECT child_id, parent_id::text FROM row_relationships WHERE child_id = ANY($1::uuid[])", ids)
	if err != nil {
		return fmt.Errorf("failed to load row parents: %w", err)
	}
	return collectPairs(parentRows, func(rowID uuid.UUID, parent string) {
		if id, err := uuid.Parse(parent); err == nil {
			rows[index[rowID]].ParentIDs = append(rows[index[rowID]].ParentIDs, id)
		}
	})
}

func collectPairs(rows pgx.Rows, fn func(uuid.UUID, string)) error {
	defer rows.Close()
	for rows.Next() {
		var (
			id    uuid.UUID
			value string
		)
		if err := rows.Scan(&id, &value); err != nil {
			return err
		}
		fn(id, value)
	}
	return rows.Err()
}

func scanRow(row pgx.CollectableRow) (domain.Row, error) {
	var (
		r         domain.Row
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&r.ID, &r.TenantID, &r.EntityID, &r.Folio, &createdAt, &updatedAt)
	r.CreatedAt = createdAt.UTC()
	r.UpdatedAt = updatedAt.UTC()
	return r, err
}
