// Package filterparams turns list-page query strings into a FilterSet.
//
//	?q=john&tags=vip,remote&page=2&pageSize=25&sort=-age
//	&name=smith&name.op=startsWith
//	&stage=new,hired&stage.match=or
//	&parent.company=null
package filterparams

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rpattn/rowql/internal/domain"
)

const (
	paramQuery    = "q"
	paramTags     = "tags"
	paramPage     = "page"
	paramPageSize = "pageSize"
	paramSort     = "sort"

	suffixOperator = ".op"
	suffixMatch    = ".match"
	prefixParent   = "parent."
)

// Parse reads filters, pagination and ordering from the query string. Every
// entity property yields a FilterRequest, valued or not, so free-text search
// can reach it.
func Parse(values url.Values, entity domain.Entity) (domain.FilterSet, domain.Pagination, []domain.RowSort, error) {
	set := domain.FilterSet{
		Query: strings.TrimSpace(values.Get(paramQuery)),
		Tags:  splitAll(values[paramTags]),
	}

	for _, prop := range entity.Properties {
		p := prop
		req := domain.FilterRequest{Property: &p}

		raw := lookup(values, prop.Name)
		parts := splitAll(raw)
		switch {
		case len(parts) == 1 && len(raw) == 1 && !strings.Contains(raw[0], ","):
			req.Value = domain.Scalar(parts[0])
		case len(parts) > 0:
			req.Value = domain.List(parts...)
		}

		if rawOp := strings.TrimSpace(first(lookup(values, prop.Name+suffixOperator))); rawOp != "" {
			op, ok := domain.ParseOperator(rawOp)
			if !ok {
				return domain.FilterSet{}, domain.Pagination{}, nil, fmt.Errorf("unknown operator %q for %s", rawOp, prop.Name)
			}
			req.Condition = op
		}

		switch strings.ToLower(strings.TrimSpace(first(lookup(values, prop.Name+suffixMatch)))) {
		case "", string(domain.MatchAnd):
		case string(domain.MatchOr):
			req.Match = domain.MatchOr
		default:
			return domain.FilterSet{}, domain.Pagination{}, nil, fmt.Errorf("match for %s must be and or or", prop.Name)
		}

		set.Properties = append(set.Properties, req)
	}

	for key, vals := range values {
		if !strings.HasPrefix(key, prefixParent) {
			continue
		}
		ref := strings.TrimPrefix(key, prefixParent)
		for _, v := range vals {
			if v = strings.TrimSpace(v); v != "" {
				set.ParentEntityFilters = append(set.ParentEntityFilters, domain.ParentEntityFilter{PropertyRef: ref, Value: v})
			}
		}
	}

	page := domain.Pagination{
		Page:     atoiOr(values.Get(paramPage), 1),
		PageSize: atoiOr(values.Get(paramPageSize), domain.DefaultPageSize),
	}.Normalize()

	return set, page, ParseSort(values.Get(paramSort), entity.Properties), nil
}

// ParseSort reads a comma separated sort list. A leading "-" sorts
// descending; names resolve to createdAt, updatedAt, folio or a property.
// Unknown names are dropped.
func ParseSort(raw string, properties []domain.Property) []domain.RowSort {
	var sorts []domain.RowSort
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		direction := domain.SortDirectionAsc
		if strings.HasPrefix(part, "-") {
			direction = domain.SortDirectionDesc
			part = strings.TrimPrefix(part, "-")
		} else {
			part = strings.TrimPrefix(part, "+")
		}
		if part == "" {
			continue
		}

		switch domain.RowSortField(part) {
		case domain.RowSortFieldCreatedAt, domain.RowSortFieldUpdatedAt, domain.RowSortFieldFolio:
			sorts = append(sorts, domain.RowSort{Field: domain.RowSortField(part), Direction: direction})
			continue
		}
		if prop, ok := domain.PropertyByName(properties, part); ok {
			sorts = append(sorts, domain.RowSort{
				Field:        domain.RowSortFieldProperty,
				Direction:    direction,
				PropertyID:   prop.ID,
				PropertyType: prop.Type,
			})
		}
	}
	return sorts
}

// lookup matches a parameter name case-insensitively.
func lookup(values url.Values, name string) []string {
	if v, ok := values[name]; ok {
		return v
	}
	for key, v := range values {
		if strings.EqualFold(key, name) {
			return v
		}
	}
	return nil
}

// splitAll flattens repeated and comma separated values, dropping blanks.
func splitAll(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func atoiOr(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}
