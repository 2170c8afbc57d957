package graph

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/rpattn/rowql/internal/auth"
	"github.com/rpattn/rowql/internal/domain"
	"github.com/rpattn/rowql/internal/filterparams"
	"github.com/rpattn/rowql/internal/middleware"
	"github.com/rpattn/rowql/internal/predicate"
	"github.com/rpattn/rowql/internal/search"
)

var errTenantRequired = fmt.Errorf("%s header is required", middleware.TenantHeader)

// Resolver handles GraphQL queries
type Resolver struct {
	search *search.Service
}

// NewResolver creates a new GraphQL resolver
func NewResolver(searchService *search.Service) *Resolver {
	return &Resolver{search: searchService}
}

// RowsArgs are the arguments of Query.rows.
type RowsArgs struct {
	Entity   string
	Filter   domain.FilterSet
	Page     int
	PageSize int
	Sort     string
}

// Rows returns one page of an entity's rows matching the filter
func (r *Resolver) Rows(ctx context.Context, args RowsArgs) (*RowPage, error) {
	tenantID, ok := auth.TenantIDFromContext(ctx)
	if !ok {
		return nil, errTenantRequired
	}
	entity, err := r.search.Entity(ctx, tenantID, args.Entity)
	if err != nil {
		return nil, publicError(err)
	}

	page, err := r.search.SearchEntity(ctx, entity, search.Request{
		TenantID:   tenantID,
		Filters:    args.Filter,
		Sort:       filterparams.ParseSort(args.Sort, entity.Properties),
		Pagination: domain.Pagination{Page: args.Page, PageSize: args.PageSize},
	})
	if err != nil {
		return nil, publicError(err)
	}
	return newRowPage(entity, page), nil
}

// RowPredicate returns the predicate the filter compiles to
func (r *Resolver) RowPredicate(ctx context.Context, entity string, filter domain.FilterSet) (*RowPredicate, error) {
	tenantID, ok := auth.TenantIDFromContext(ctx)
	if !ok {
		return nil, errTenantRequired
	}
	pred, err := r.search.Predicate(ctx, search.Request{TenantID: tenantID, Entity: entity, Filters: filter})
	if err != nil {
		return nil, publicError(err)
	}
	return &RowPredicate{Document: predicate.Render(pred), Description: pred.String()}, nil
}

// publicError keeps caller facing errors and hides everything else.
func publicError(err error) error {
	if errors.Is(err, search.ErrEntityNotFound) || errors.Is(err, auth.ErrScopeMismatch) {
		return err
	}
	log.Printf("[GRAPHQL] resolver failed: %v", err)
	return errors.New("internal server error")
}
