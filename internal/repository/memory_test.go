package repository

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/rowql/internal/domain"
	"github.com/rpattn/rowql/internal/predicate"
)

func seedCandidates(t *testing.T) (*MemoryStore, domain.Entity) {
	t.Helper()
	store := NewMemoryStore()
	ctx := context.Background()

	tenant, err := store.Tenants().Create(ctx, domain.NewTenant("Acme", "acme"))
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	entity := domain.NewEntity(tenant.ID, "Candidate", "candidates", []domain.Property{
		{Name: "name", Type: domain.PropertyTypeText, IsFilterable: true, IsUnique: true},
		{Name: "age", Type: domain.PropertyTypeNumber, IsFilterable: true},
	})
	if _, err := store.Entities().Create(ctx, entity); err != nil {
		t.Fatalf("create entity: %v", err)
	}
	return store, entity
}

func TestMemoryRowsAssignFolioAndRejectDuplicates(t *testing.T) {
	store, entity := seedCandidates(t)
	ctx := context.Background()
	name := entity.Properties[0]

	first, err := store.Rows().Create(ctx, entity, domain.NewRow(entity.TenantID, entity.ID, []domain.RowValue{domain.TextValue(name.ID, "Ann")}))
	if err != nil {
		t.Fatalf("create row: %v", err)
	}
	second, err := store.Rows().Create(ctx, entity, domain.NewRow(entity.TenantID, entity.ID, []domain.RowValue{domain.TextValue(name.ID, "Bob")}))
	if err != nil {
		t.Fatalf("create row: %v", err)
	}
	if first.Folio != 1 || second.Folio != 2 {
		t.Fatalf("expected folios 1 and 2, got %d and %d", first.Folio, second.Folio)
	}

	_, err = store.Rows().Create(ctx, entity, domain.NewRow(entity.TenantID, entity.ID, []domain.RowValue{domain.TextValue(name.ID, "ANN")}))
	if !errors.Is(err, ErrUniqueViolation) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	_, err = store.Rows().Create(ctx, entity, domain.NewRow(entity.TenantID, entity.ID, []domain.RowValue{domain.NumberValue(name.ID, 4)}))
	if !errors.Is(err, domain.ErrValueTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}

func TestMemoryRowsSearchFiltersSortsAndPages(t *testing.T) {
	store, entity := seedCandidates(t)
	ctx := context.Background()
	name, age := entity.Properties[0], entity.Properties[1]

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, person := range []struct {
		name string
		age  float64
	}{{"Ann", 31}, {"Anton", 25}, {"Bob", 40}} {
		row := domain.NewRow(entity.TenantID, entity.ID, []domain.RowValue{
			domain.TextValue(name.ID, person.name),
			domain.NumberValue(age.ID, person.age),
		})
		row.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if _, err := store.Rows().Create(ctx, entity, row); err != nil {
			t.Fatalf("create row: %v", err)
		}
	}

	pred := predicate.BuildRowPredicate(domain.FilterSet{
		Properties: []domain.FilterRequest{{Property: &name, Value: domain.Scalar("an")}},
	}, entity.Properties)

	rows, total, err := store.Rows().Search(ctx, RowQuery{
		TenantID:   entity.TenantID,
		EntityID:   entity.ID,
		Predicate:  pred,
		Sort:       []domain.RowSort{{Field: domain.RowSortFieldProperty, PropertyID: age.ID, PropertyType: age.Type}},
		Pagination: domain.Pagination{Page: 1, PageSize: 1},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 matches, got %d", total)
	}
	if len(rows) != 1 || rows[0].Values[0].Display() != "Anton" {
		t.Fatalf("expected youngest match Anton on the first page, got %+v", rows)
	}

	rows, total, err = store.Rows().Search(ctx, RowQuery{TenantID: entity.TenantID, EntityID: entity.ID})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 3 || rows[0].Values[0].Display() != "Bob" {
		t.Fatalf("expected newest row first out of 3, got %d rows starting %+v", total, rows[0])
	}

	rows, _, err = store.Rows().Search(ctx, RowQuery{TenantID: uuid.New(), EntityID: entity.ID})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows leaked across tenants: %+v", rows)
	}
}

func TestMemoryRowsParentsAndTags(t *testing.T) {
	store, entity := seedCandidates(t)
	ctx := context.Background()

	parent, err := store.Rows().Create(ctx, entity, domain.NewRow(entity.TenantID, entity.ID, nil))
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := store.Rows().Create(ctx, entity, domain.NewRow(entity.TenantID, entity.ID, nil))
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if err := store.Rows().LinkParent(ctx, parent.ID, child.ID); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := store.Rows().AddTag(ctx, child.ID, " vip "); err != nil {
		t.Fatalf("tag: %v", err)
	}

	orphans := predicate.BuildRowPredicate(domain.FilterSet{
		ParentEntityFilters: []domain.ParentEntityFilter{{Value: domain.ParentNone}},
	}, nil)
	rows, total, err := store.Rows().Search(ctx, RowQuery{TenantID: entity.TenantID, EntityID: entity.ID, Predicate: orphans})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || rows[0].ID != parent.ID {
		t.Fatalf("expected only the parent to have no parents, got %+v", rows)
	}

	tagged := predicate.BuildRowPredicate(domain.FilterSet{Tags: []string{"vip"}}, nil)
	rows, _, _ = store.Rows().Search(ctx, RowQuery{TenantID: entity.TenantID, EntityID: entity.ID, Predicate: tagged})
	if len(rows) != 1 || rows[0].ID != child.ID {
		t.Fatalf("expected tagged child, got %+v", rows)
	}

	if err := store.Rows().Delete(ctx, parent.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := store.Rows().GetByID(ctx, child.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.ParentIDs) != 0 {
		t.Fatalf("expected parent link removed, got %v", got.ParentIDs)
	}
	if err := store.Rows().Delete(ctx, parent.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryRowsSearchOversizedPageIsEmpty(t *testing.T) {
	store, entity := seedCandidates(t)
	ctx := context.Background()
	name := entity.Properties[0]

	if _, err := store.Rows().Create(ctx, entity, domain.NewRow(entity.TenantID, entity.ID, []domain.RowValue{domain.TextValue(name.ID, "Ann")})); err != nil {
		t.Fatalf("create row: %v", err)
	}

	rows, total, err := store.Rows().Search(ctx, RowQuery{
		TenantID:   entity.TenantID,
		EntityID:   entity.ID,
		Pagination: domain.Pagination{Page: math.MaxInt64 / 5, PageSize: 10},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || len(rows) != 0 {
		t.Fatalf("expected total 1 and an empty page, got %d rows of %d", len(rows), total)
	}
}
