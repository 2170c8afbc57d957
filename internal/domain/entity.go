package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Entity represents a tenant-defined record type such as "Candidate" or "Job"
type Entity struct {
	ID              uuid.UUID   `json:"id"`
	TenantID        uuid.UUID   `json:"tenantId"`
	Name            string      `json:"name"`
	Slug            string      `json:"slug"`
	Title           string      `json:"title"`
	Properties      []Property  `json:"properties"`
	ParentEntityIDs []uuid.UUID `json:"parentEntityIds,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// NewEntity creates a new entity with immutable pattern
func NewEntity(tenantID uuid.UUID, name, slug string, properties []Property) Entity {
	now := time.Now()
	e := Entity{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		Slug:      slug,
		Title:     name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return e.WithProperties(properties)
}

// WithProperties returns a new entity owning a copy of the given properties.
// Each property is re-parented to the entity and missing ids are generated.
func (e Entity) WithProperties(properties []Property) Entity {
	copied := make([]Property, len(properties))
	for i, p := range properties {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.EntityID = e.ID
		if p.Order == 0 {
			p.Order = i + 1
		}
		p.Options = append([]PropertyOption(nil), p.Options...)
		copied[i] = p
	}
	sort.SliceStable(copied, func(i, j int) bool { return copied[i].Order < copied[j].Order })

	out := e
	out.Properties = copied
	out.UpdatedAt = time.Now()
	return out
}

// Property returns the entity property with the given id.
func (e Entity) Property(id uuid.UUID) (Property, bool) {
	for _, p := range e.Properties {
		if p.ID == id {
			return p, true
		}
	}
	return Property{}, false
}
