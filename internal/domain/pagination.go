package domain

import (
	"math"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// SortDirection represents ordering direction for sortable fields.
type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// RowSortField enumerates the built-in fields rows can be ordered by.
type RowSortField string

const (
	RowSortFieldCreatedAt RowSortField = "createdAt"
	RowSortFieldUpdatedAt RowSortField = "updatedAt"
	RowSortFieldFolio     RowSortField = "folio"
	RowSortFieldProperty  RowSortField = "property"
)

// RowSort captures ordering preferences for row listings.
type RowSort struct {
	Field        RowSortField
	Direction    SortDirection
	PropertyID   uuid.UUID
	PropertyType PropertyType
}

// Descending reports whether the sort runs in descending order.
func (s RowSort) Descending() bool {
	return s.Direction == SortDirectionDesc
}

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int
	PageSize int
}

// Normalize clamps the page request to valid bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	// Keep (Page-1)*PageSize within int.
	if last := math.MaxInt / p.PageSize; p.Page > last {
		p.Page = last
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

// TotalPages computes the page count for a total row count.
func (p Pagination) TotalPages(total int) int {
	n := p.Normalize()
	if total <= 0 {
		return 0
	}
	return (total + n.PageSize - 1) / n.PageSize
}
