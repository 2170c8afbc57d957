// Package catalog loads tenant, entity and row definitions from YAML and
// seeds them into the repositories.
package catalog

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/rpattn/rowql/internal/domain"
	"github.com/rpattn/rowql/internal/repository"
)

type Catalog struct {
	Tenants []Tenant `yaml:"tenants"`
}

type Tenant struct {
	Name     string   `yaml:"name"`
	Slug     string   `yaml:"slug"`
	Entities []Entity `yaml:"entities"`
}

type Entity struct {
	Name       string     `yaml:"name"`
	Slug       string     `yaml:"slug"`
	Title      string     `yaml:"title"`
	Parents    []string   `yaml:"parents"`
	Properties []Property `yaml:"properties"`
	Rows       []Row      `yaml:"rows"`
}

type Property struct {
	Name        string   `yaml:"name"`
	Title       string   `yaml:"title"`
	Type        string   `yaml:"type"`
	Filterable  bool     `yaml:"filterable"`
	TableFilter bool     `yaml:"tableFilter"`
	Searchable  bool     `yaml:"searchable"`
	Unique      bool     `yaml:"unique"`
	Options     []Option `yaml:"options"`
}

type Option struct {
	Value string `yaml:"value"`
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

// Row values are keyed by property name. Key names the row so that later
// rows can list it under Parents.
type Row struct {
	Key     string         `yaml:"key"`
	Values  map[string]any `yaml:"values"`
	Tags    []string       `yaml:"tags"`
	Parents []string       `yaml:"parents"`
}

// LoadFile parses the catalog at path.
func LoadFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a catalog document.
func Load(r io.Reader) (Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if err == io.EOF {
			return Catalog{}, nil
		}
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	return c, nil
}

// Stores groups the repositories a catalog is seeded into.
type Stores struct {
	Tenants  repository.TenantRepository
	Entities repository.EntityRepository
	Rows     repository.RowRepository
}

// Apply creates every tenant, entity and row of the catalog.
func (c Catalog) Apply(ctx context.Context, stores Stores) error {
	for _, t := range c.Tenants {
		tenant, err := stores.Tenants.Create(ctx, domain.NewTenant(t.Name, t.Slug))
		if err != nil {
			return fmt.Errorf("seed tenant %q: %w", t.Slug, err)
		}

		entitiesBySlug := make(map[string]domain.Entity, len(t.Entities))
		rowsByKey := make(map[string]uuid.UUID)
		for _, e := range t.Entities {
			entity, err := e.toDomain(tenant.ID, entitiesBySlug)
			if err != nil {
				return err
			}
			if entity, err = stores.Entities.Create(ctx, entity); err != nil {
				return fmt.Errorf("seed entity %q: %w", e.Slug, err)
			}
			entitiesBySlug[entity.Slug] = entity

			for i, r := range e.Rows {
				row, err := r.toDomain(entity, rowsByKey)
				if err != nil {
					return fmt.Errorf("seed row %d of %q: %w", i+1, e.Slug, err)
				}
				created, err := stores.Rows.Create(ctx, entity, row)
				if err != nil {
					return fmt.Errorf("seed row %d of %q: %w", i+1, e.Slug, err)
				}
				if r.Key != "" {
					rowsByKey[r.Key] = created.ID
				}
			}
			log.Printf("[SEED] %s/%s: %d properties, %d rows", tenant.Slug, entity.Slug, len(entity.Properties), len(e.Rows))
		}
	}
	return nil
}

func (e Entity) toDomain(tenantID uuid.UUID, known map[string]domain.Entity) (domain.Entity, error) {
	props := make([]domain.Property, 0, len(e.Properties))
	for _, p := range e.Properties {
		typ, ok := domain.ParsePropertyType(p.Type)
		if !ok {
			return domain.Entity{}, fmt.Errorf("entity %q: property %q has unknown type %q", e.Slug, p.Name, p.Type)
		}
		options := make([]domain.PropertyOption, len(p.Options))
		for i, o := range p.Options {
			options[i] = domain.PropertyOption{Value: o.Value, Name: o.Name, Color: o.Color}
		}
		props = append(props, domain.Property{
			Name:          p.Name,
			Title:         p.Title,
			Type:          typ,
			IsFilterable:  p.Filterable,
			IsTableFilter: p.TableFilter,
			IsSearchable:  p.Searchable,
			IsUnique:      p.Unique,
			Options:       options,
		})
	}

	slug := e.Slug
	if slug == "" {
		slug = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(e.Name), " ", "-"))
	}
	entity := domain.NewEntity(tenantID, e.Name, slug, props)
	if e.Title != "" {
		entity.Title = e.Title
	}
	for _, parent := range e.Parents {
		p, ok := known[parent]
		if !ok {
			return domain.Entity{}, fmt.Errorf("entity %q: parent %q must be declared before it", slug, parent)
		}
		entity.ParentEntityIDs = append(entity.ParentEntityIDs, p.ID)
	}
	return entity, nil
}

func (r Row) toDomain(entity domain.Entity, known map[string]uuid.UUID) (domain.Row, error) {
	byName := make(map[string]any, len(r.Values))
	for name, raw := range r.Values {
		if _, ok := domain.PropertyByName(entity.Properties, name); !ok {
			return domain.Row{}, fmt.Errorf("unknown property %q", name)
		}
		byName[strings.ToLower(strings.TrimSpace(name))] = raw
	}

	values := make([]domain.RowValue, 0, len(byName))
	for _, prop := range entity.Properties {
		raw, ok := byName[strings.ToLower(prop.Name)]
		if !ok || raw == nil {
			continue
		}
		v, err := rowValue(prop, raw)
		if err != nil {
			return domain.Row{}, err
		}
		values = append(values, v)
	}

	row := domain.NewRow(entity.TenantID, entity.ID, values)
	row.Tags = append([]string(nil), r.Tags...)
	for _, key := range r.Parents {
		id, ok := known[key]
		if !ok {
			return domain.Row{}, fmt.Errorf("parent row %q must be declared before it", key)
		}
		row.ParentIDs = append(row.ParentIDs, id)
	}
	return row, nil
}

func rowValue(prop domain.Property, raw any) (domain.RowValue, error) {
	switch prop.Type {
	case domain.PropertyTypeNumber:
		switch n := raw.(type) {
		case int:
			return domain.NumberValue(prop.ID, float64(n)), nil
		case float64:
			return domain.NumberValue(prop.ID, n), nil
		}
	case domain.PropertyTypeText, domain.PropertyTypeSelect:
		if s, ok := raw.(string); ok {
			return domain.TextValue(prop.ID, s), nil
		}
	case domain.PropertyTypeBoolean:
		if b, ok := raw.(bool); ok {
			return domain.BooleanValue(prop.ID, b), nil
		}
	case domain.PropertyTypeDate:
		switch d := raw.(type) {
		case time.Time:
			return domain.DateValue(prop.ID, d.UTC()), nil
		case string:
			for _, layout := range []string{"2006-01-02", time.RFC3339} {
				if t, err := time.Parse(layout, d); err == nil {
					return domain.DateValue(prop.ID, t.UTC()), nil
				}
			}
		}
	}
	return domain.RowValue{}, fmt.Errorf("%w: %v for property %q", domain.ErrValueTypeMismatch, raw, prop.Name)
}
