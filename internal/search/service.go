package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/rowql/internal/auth"
	"github.com/rpattn/rowql/internal/domain"
	"github.com/rpattn/rowql/internal/middleware"
	"github.com/rpattn/rowql/internal/predicate"
	"github.com/rpattn/rowql/internal/propertyloader"
	"github.com/rpattn/rowql/internal/repository"
)

// ErrEntityNotFound is returned when the requested entity does not exist for the tenant.
var ErrEntityNotFound = errors.New("entity not found")

// Request describes one row search. Filter properties may be stubs carrying
// only an ID or only a Name; they are resolved against the entity before the
// predicate is built.
type Request struct {
	TenantID   uuid.UUID
	Entity     string // slug or id
	Filters    domain.FilterSet
	Sort       []domain.RowSort
	Pagination domain.Pagination
}

// Page is one page of search results.
type Page struct {
	Rows       []domain.Row `json:"rows"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	TotalPages int          `json:"totalPages"`
}

// Service runs filtered row searches
type Service struct {
	entities   repository.EntityRepository
	properties repository.PropertyRepository
	rows       repository.RowRepository
}

// NewService creates a search service
func NewService(entities repository.EntityRepository, properties repository.PropertyRepository, rows repository.RowRepository) *Service {
	return &Service{entities: entities, properties: properties, rows: rows}
}

// Entity resolves an entity reference, a slug or an id, within the tenant.
func (s *Service) Entity(ctx context.Context, tenantID uuid.UUID, ref string) (domain.Entity, error) {
	if err := auth.EnforceTenantScope(ctx, tenantID); err != nil {
		return domain.Entity{}, err
	}

	ref = strings.TrimSpace(ref)
	var (
		entity domain.Entity
		err    error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		entity, err = s.entities.GetByID(ctx, id)
		if err == nil && entity.TenantID != tenantID {
			err = repository.ErrNotFound
		}
	} else {
		entity, err = s.entities.GetBySlug(ctx, tenantID, ref)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Entity{}, fmt.Errorf("%w: %s", ErrEntityNotFound, ref)
		}
		return domain.Entity{}, fmt.Errorf("failed to load entity %q: %w", ref, err)
	}
	return entity, nil
}

// Search resolves the entity and runs the request against it.
func (s *Service) Search(ctx context.Context, req Request) (Page, error) {
	entity, err := s.Entity(ctx, req.TenantID, req.Entity)
	if err != nil {
		return Page{}, err
	}
	return s.SearchEntity(ctx, entity, req)
}

// SearchEntity runs the request against an already resolved entity.
func (s *Service) SearchEntity(ctx context.Context, entity domain.Entity, req Request) (Page, error) {
	pred, err := s.predicateFor(ctx, entity, req.Filters)
	if err != nil {
		return Page{}, err
	}

	page := req.Pagination.Normalize()
	log.Printf("[SEARCH] entity=%s page=%d size=%d predicate=%s", entity.Slug, page.Page, page.PageSize, pred)

	rows, total, err := s.rows.Search(ctx, repository.RowQuery{
		TenantID:   entity.TenantID,
		EntityID:   entity.ID,
		Predicate:  pred,
		Sort:       req.Sort,
		Pagination: page,
	})
	if err != nil {
		return Page{}, fmt.Errorf("failed to search rows of %s: %w", entity.Slug, err)
	}

	return Page{
		Rows:       rows,
		Total:      total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages(total),
	}, nil
}

// Predicate resolves the entity and returns the predicate the request would run.
func (s *Service) Predicate(ctx context.Context, req Request) (predicate.Predicate, error) {
	entity, err := s.Entity(ctx, req.TenantID, req.Entity)
	if err != nil {
		return predicate.Predicate{}, err
	}
	return s.predicateFor(ctx, entity, req.Filters)
}

func (s *Service) predicateFor(ctx context.Context, entity domain.Entity, set domain.FilterSet) (predicate.Predicate, error) {
	catalog, err := s.catalog(ctx, entity, set)
	if err != nil {
		return predicate.Predicate{}, err
	}

	resolved := set
	resolved.Properties = make([]domain.FilterRequest, 0, len(set.Properties))
	for _, req := range set.Properties {
		if req.Property != nil {
			p, ok := resolveProperty(catalog, *req.Property)
			if !ok {
				log.Printf("[SEARCH] skipping filter on unknown property %q of %s", req.Property.Name, entity.Slug)
				continue
			}
			req.Property = &p
		}
		resolved.Properties = append(resolved.Properties, req)
	}
	return predicate.BuildRowPredicate(resolved, catalog), nil
}

// catalog returns the entity's properties, loading any filter property the
// entity value does not carry through the request's property loader.
func (s *Service) catalog(ctx context.Context, entity domain.Entity, set domain.FilterSet) ([]domain.Property, error) {
	catalog := append([]domain.Property(nil), entity.Properties...)
	if len(catalog) == 0 {
		props, err := s.properties.ListByEntity(ctx, entity.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load properties of %s: %w", entity.Slug, err)
		}
		catalog = props
	}

	var missing []uuid.UUID
	for _, req := range set.Properties {
		if req.Property == nil || req.Property.ID == uuid.Nil {
			continue
		}
		if _, ok := resolveProperty(catalog, domain.Property{ID: req.Property.ID}); !ok {
			missing = append(missing, req.Property.ID)
		}
	}
	if len(missing) == 0 {
		return catalog, nil
	}

	var (
		loaded []domain.Property
		err    error
	)
	if loader := middleware.PropertyLoaderFromContext(ctx); loader != nil {
		loaded, err = propertyloader.LoadMany(ctx, loader, missing)
	} else {
		loaded, err = s.properties.GetByIDs(ctx, missing)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load filter properties: %w", err)
	}
	for _, p := range loaded {
		if p.EntityID == entity.ID {
			catalog = append(catalog, p)
		}
	}
	return catalog, nil
}

// PropertyRef turns a caller supplied property reference into the stub a
// Request carries: a uuid becomes an ID reference, anything else a name.
// A blank reference returns nil, which makes the filter free text.
func PropertyRef(ref string) *domain.Property {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if id, err := uuid.Parse(ref); err == nil {
		return &domain.Property{ID: id}
	}
	return &domain.Property{Name: ref}
}

func resolveProperty(catalog []domain.Property, ref domain.Property) (domain.Property, bool) {
	if ref.ID != uuid.Nil {
		for _, p := range catalog {
			if p.ID == ref.ID {
				return p, true
			}
		}
		return domain.Property{}, false
	}
	return domain.PropertyByName(catalog, ref.Name)
}
