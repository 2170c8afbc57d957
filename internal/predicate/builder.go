package predicate

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/rowql/internal/domain"
)

var nan = math.NaN()

// BuildRowPredicate translates a filter set into a composite predicate.
//
// Filter requests only contribute when their property is filterable and they
// carry a value. Requests matched with "or", the free-text query and
// property-less requests share one OR group; every other request, the parent
// filters and the tag filter are AND-ed. Inputs that cannot be expressed
// (non-boolean strings for BOOLEAN, unsupported operators, unparsable dates)
// contribute nothing. Groups that end up empty are omitted, so an empty set
// yields a predicate that matches every row.
func BuildRowPredicate(set domain.FilterSet, properties []domain.Property) Predicate {
	catalog := newPropertyCatalog(properties)

	var (
		and All
		or  Any
	)

	eligible := make([]domain.Property, 0, len(set.Properties))
	seen := make(map[uuid.UUID]struct{}, len(set.Properties))
	var terms []string
	if q := strings.TrimSpace(set.Query); q != "" {
		terms = append(terms, q)
	}

	for _, req := range set.Properties {
		if req.Property == nil {
			terms = append(terms, req.Value.Values()...)
			continue
		}
		prop := catalog.resolve(*req.Property)
		if !prop.Filterable() {
			continue
		}
		if _, dup := seen[prop.ID]; !dup {
			seen[prop.ID] = struct{}{}
			eligible = append(eligible, prop)
		}
	}

	for _, term := range terms {
		for _, prop := range eligible {
			if leaf, ok := leafFor(prop, domain.Scalar(term), ""); ok {
				or = append(or, leaf)
			}
		}
	}

	for _, req := range set.Properties {
		if req.Property == nil || req.Value.IsEmpty() {
			continue
		}
		prop := catalog.resolve(*req.Property)
		if !prop.Filterable() {
			continue
		}
		leaf, ok := leafFor(prop, req.Value, req.Condition)
		if !ok {
			continue
		}
		if req.Match == domain.MatchOr {
			or = append(or, leaf)
		} else {
			and = append(and, leaf)
		}
	}

	for _, parent := range set.ParentEntityFilters {
		// A blank value still constrains: no parent link has an empty id.
		value := strings.TrimSpace(parent.Value)
		if value == domain.ParentNone {
			and = append(and, ParentMatch{None: true})
		} else {
			and = append(and, ParentMatch{ParentID: value})
		}
	}

	var root All
	if len(or) > 0 {
		root = append(root, or)
	}
	root = append(root, and...)
	if tags := cleanTags(set.Tags); len(tags) > 0 {
		root = append(root, TagMatch{Values: tags})
	}

	return Predicate{Root: root}
}

func leafFor(prop domain.Property, value domain.FilterValue, override domain.Operator) (Condition, bool) {
	kind, ok := kindOf(prop.Type)
	if !ok {
		return nil, false
	}
	return kind.leaf(prop.ID, value, override)
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// propertyCatalog resolves filter property references against the
// authoritative property metadata.
type propertyCatalog struct {
	byID map[uuid.UUID]domain.Property
}

func newPropertyCatalog(properties []domain.Property) propertyCatalog {
	byID := make(map[uuid.UUID]domain.Property, len(properties))
	for _, p := range properties {
		byID[p.ID] = p
	}
	return propertyCatalog{byID: byID}
}

// resolve returns the catalog copy of ref, falling back to ref itself when the
// catalog does not know the id.
func (c propertyCatalog) resolve(ref domain.Property) domain.Property {
	if p, ok := c.byID[ref.ID]; ok {
		return p
	}
	return ref
}
