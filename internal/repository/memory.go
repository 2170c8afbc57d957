package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rpattn/rowql/internal/domain"
	"github.com/rpattn/rowql/internal/predicate"
)

// MemoryStore keeps tenants, entities and rows in process memory and filters
// rows by evaluating predicates directly. It satisfies every repository
// interface and backs the server when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	tenants  map[uuid.UUID]domain.Tenant
	entities map[uuid.UUID]domain.Entity
	rows     map[uuid.UUID]*domain.Row
	order    []uuid.UUID
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:  make(map[uuid.UUID]domain.Tenant),
		entities: make(map[uuid.UUID]domain.Entity),
		rows:     make(map[uuid.UUID]*domain.Row),
	}
}

// Tenants exposes the store as a TenantRepository.
func (s *MemoryStore) Tenants() TenantRepository { return memoryTenants{s} }

// Entities exposes the store as an EntityRepository.
func (s *MemoryStore) Entities() EntityRepository { return memoryEntities{s} }

// Properties exposes the store as a PropertyRepository.
func (s *MemoryStore) Properties() PropertyRepository { return memoryEntities{s} }

// Rows exposes the store as a RowRepository.
func (s *MemoryStore) Rows() RowRepository { return memoryRows{s} }

type memoryTenants struct{ s *MemoryStore }

func (m memoryTenants) Create(_ context.Context, tenant domain.Tenant) (domain.Tenant, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.tenants {
		if existing.Slug == tenant.Slug {
			existing.Name = tenant.Name
			m.s.tenants[existing.ID] = existing
			return existing, nil
		}
	}
	m.s.tenants[tenant.ID] = tenant
	return tenant, nil
}

func (m memoryTenants) GetByID(_ context.Context, id uuid.UUID) (domain.Tenant, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	t, ok := m.s.tenants[id]
	if !ok {
		return domain.Tenant{}, ErrNotFound
	}
	return t, nil
}

func (m memoryTenants) GetBySlug(_ context.Context, slug string) (domain.Tenant, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, t := range m.s.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return domain.Tenant{}, ErrNotFound
}

type memoryEntities struct{ s *MemoryStore }

func (m memoryEntities) Create(_ context.Context, entity domain.Entity) (domain.Entity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.entities[entity.ID] = entity
	return entity, nil
}

func (m memoryEntities) GetByID(_ context.Context, id uuid.UUID) (domain.Entity, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	e, ok := m.s.entities[id]
	if !ok {
		return domain.Entity{}, ErrNotFound
	}
	return e, nil
}

func (m memoryEntities) GetBySlug(_ context.Context, tenantID uuid.UUID, slug string) (domain.Entity, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, e := range m.s.entities {
		if e.TenantID == tenantID && e.Slug == slug {
			return e, nil
		}
	}
	return domain.Entity{}, ErrNotFound
}

func (m memoryEntities) List(_ context.Context, tenantID uuid.UUID) ([]domain.Entity, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	out := []domain.Entity{}
	for _, e := range m.s.entities {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m memoryEntities) GetByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Property, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	wanted := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := []domain.Property{}
	for _, e := range m.s.entities {
		for _, p := range e.Properties {
			if _, ok := wanted[p.ID]; ok {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (m memoryEntities) ListByEntity(_ context.Context, entityID uuid.UUID) ([]domain.Property, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	e, ok := m.s.entities[entityID]
	if !ok {
		return []domain.Property{}, nil
	}
	return append([]domain.Property(nil), e.Properties...), nil
}

type memoryRows struct{ s *MemoryStore }

func (m memoryRows) Create(_ context.Context, entity domain.Entity, row domain.Row) (domain.Row, error) {
	if err := row.ValidateValues(entity); err != nil {
		return domain.Row{}, err
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	folio := 0
	unique, checkUnique := uniquePredicate(entity, row)
	for _, existing := range m.s.rows {
		if existing.EntityID != entity.ID {
			continue
		}
		if existing.Folio > folio {
			folio = existing.Folio
		}
		if checkUnique && predicate.Evaluate(unique, *existing) {
			return domain.Row{}, ErrUniqueViolation
		}
	}

	row.EntityID = entity.ID
	row.Folio = folio + 1
	stored := cloneRow(row)
	m.s.rows[row.ID] = &stored
	m.s.order = append(m.s.order, row.ID)
	return row, nil
}

func (m memoryRows) GetByID(_ context.Context, id uuid.UUID) (domain.Row, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	r, ok := m.s.rows[id]
	if !ok {
		return domain.Row{}, ErrNotFound
	}
	return cloneRow(*r), nil
}

func (m memoryRows) Delete(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.s.rows, id)
	for i, rid := range m.s.order {
		if rid == id {
			m.s.order = append(m.s.order[:i], m.s.order[i+1:]...)
			break
		}
	}
	for _, r := range m.s.rows {
		r.ParentIDs = removeID(r.ParentIDs, id)
	}
	return nil
}

func (m memoryRows) AddTag(_ context.Context, rowID uuid.UUID, tag string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.rows[rowID]
	if !ok {
		return ErrNotFound
	}
	tag = strings.TrimSpace(tag)
	if !r.HasTag(tag) {
		r.Tags = append(r.Tags, tag)
	}
	return nil
}

func (m memoryRows) LinkParent(_ context.Context, parentID, childID uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	child, ok := m.s.rows[childID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m.s.rows[parentID]; !ok {
		return ErrNotFound
	}
	for _, id := range child.ParentIDs {
		if id == parentID {
			return nil
		}
	}
	child.ParentIDs = append(child.ParentIDs, parentID)
	return nil
}

func (m memoryRows) Search(_ context.Context, query RowQuery) ([]domain.Row, int, error) {
	m.s.mu.RLock()
	matched := make([]domain.Row, 0)
	for _, id := range m.s.order {
		r := m.s.rows[id]
		if r.TenantID != query.TenantID || r.EntityID != query.EntityID {
			continue
		}
		if predicate.Evaluate(query.Predicate, *r) {
			matched = append(matched, cloneRow(*r))
		}
	}
	m.s.mu.RUnlock()

	sortRows(matched, query.Sort)

	total := len(matched)
	page := query.Pagination.Normalize()
	start := page.Offset()
	if start < 0 || start > total {
		start = total
	}
	end := start + page.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// sortRows orders rows the same way the SQL ORDER BY does: requested keys
// with missing values last, then newest first.
func sortRows(rows []domain.Row, sorts []domain.RowSort) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, s := range sorts {
			c := compareRows(rows[i], rows[j], s)
			if c == 0 {
				continue
			}
			return c < 0
		}
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID.String() < rows[j].ID.String()
	})
}

func compareRows(a, b domain.Row, s domain.RowSort) int {
	var c int
	switch s.Field {
	case domain.RowSortFieldCreatedAt:
		c = a.CreatedAt.Compare(b.CreatedAt)
	case domain.RowSortFieldUpdatedAt:
		c = a.UpdatedAt.Compare(b.UpdatedAt)
	case domain.RowSortFieldFolio:
		c = cmpInt(a.Folio, b.Folio)
	case domain.RowSortFieldProperty:
		av, aok := firstValue(a, s.PropertyID)
		bv, bok := firstValue(b, s.PropertyID)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		c = compareValues(av, bv)
	}
	if s.Descending() {
		return -c
	}
	return c
}

func firstValue(r domain.Row, propertyID uuid.UUID) (domain.RowValue, bool) {
	values := r.ValuesFor(propertyID)
	if len(values) == 0 {
		return domain.RowValue{}, false
	}
	return values[0], true
}

func compareValues(a, b domain.RowValue) int {
	switch {
	case a.NumberValue != nil && b.NumberValue != nil:
		switch {
		case *a.NumberValue < *b.NumberValue:
			return -1
		case *a.NumberValue > *b.NumberValue:
			return 1
		}
		return 0
	case a.DateValue != nil && b.DateValue != nil:
		return a.DateValue.Compare(*b.DateValue)
	case a.BooleanValue != nil && b.BooleanValue != nil:
		return cmpInt(boolRank(*a.BooleanValue), boolRank(*b.BooleanValue))
	}
	return strings.Compare(a.Display(), b.Display())
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func removeID(ids []uuid.UUID, target uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func cloneRow(r domain.Row) domain.Row {
	r.Values = append([]domain.RowValue(nil), r.Values...)
	r.Tags = append([]string(nil), r.Tags...)
	r.ParentIDs = append([]uuid.UUID(nil), r.ParentIDs...)
	return r
}
