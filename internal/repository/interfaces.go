package repository

import (
	"context"
	"errors"

	"github.com/rpattn/rowql/internal/domain"
	"github.com/rpattn/rowql/internal/predicate"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a tenant, entity or row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUniqueViolation is returned when a unique property value is already taken.
	ErrUniqueViolation = errors.New("unique property value already exists")
)

// TenantRepository defines the interface for tenant operations
type TenantRepository interface {
	Create(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (domain.Tenant, error)
}

// EntityRepository defines the interface for entity definitions and their properties
type EntityRepository interface {
	Create(ctx context.Context, entity domain.Entity) (domain.Entity, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Entity, error)
	GetBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (domain.Entity, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]domain.Entity, error)
}

// PropertyRepository loads property metadata
type PropertyRepository interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Property, error)
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]domain.Property, error)
}

// RowRepository defines the interface for row operations
type RowRepository interface {
	Create(ctx context.Context, entity domain.Entity, row domain.Row) (domain.Row, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Row, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddTag(ctx context.Context, rowID uuid.UUID, tag string) error
	LinkParent(ctx context.Context, parentID, childID uuid.UUID) error

	// Search returns one page of rows satisfying the predicate plus the total match count.
	Search(ctx context.Context, query RowQuery) ([]domain.Row, int, error)
}

// RowQuery scopes a predicate to one entity of one tenant.
type RowQuery struct {
	TenantID   uuid.UUID
	EntityID   uuid.UUID
	Predicate  predicate.Predicate
	Sort       []domain.RowSort
	Pagination domain.Pagination
}

// uniquePredicate builds the predicate matching rows that already hold one of
// the row's values for a unique property.
func uniquePredicate(entity domain.Entity, row domain.Row) (predicate.Predicate, bool) {
	var group predicate.Any
	for _, v := range row.Values {
		prop, ok := entity.Property(v.PropertyID)
		if !ok || !prop.IsUnique {
			continue
		}
		if leaf, ok := uniqueLeaf(prop, v); ok {
			group = append(group, leaf)
		}
	}
	if len(group) == 0 {
		return predicate.Predicate{}, false
	}
	return predicate.Predicate{Root: predicate.All{group}}, true
}

func uniqueLeaf(prop domain.Property, v domain.RowValue) (predicate.Condition, bool) {
	leaf := predicate.ValueMatch{Quantifier: predicate.Some, PropertyID: prop.ID}
	switch {
	case v.TextValue != nil:
		leaf.Slot = predicate.SlotText
		leaf.Insensitive = true
		leaf.Comparisons = []predicate.Comparison{{Operator: domain.OperatorEquals, Operand: predicate.TextOperand(*v.TextValue)}}
	case v.NumberValue != nil:
		leaf.Slot = predicate.SlotNumber
		leaf.Comparisons = []predicate.Comparison{{Operator: domain.OperatorEquals, Operand: predicate.NumberOperand(*v.NumberValue)}}
	case v.DateValue != nil:
		leaf.Slot = predicate.SlotDate
		leaf.Comparisons = []predicate.Comparison{{Operator: domain.OperatorEquals, Operand: predicate.TimeOperand(*v.DateValue)}}
	default:
		return nil, false
	}
	return leaf, true
}
