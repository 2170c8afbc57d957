package domain

import (
	"strings"

	"github.com/google/uuid"
)

// PropertyType represents the declared type of a custom entity property
type PropertyType string

const (
	PropertyTypeNumber  PropertyType = "NUMBER"
	PropertyTypeText    PropertyType = "TEXT"
	PropertyTypeDate    PropertyType = "DATE"
	PropertyTypeBoolean PropertyType = "BOOLEAN"
	PropertyTypeSelect  PropertyType = "SELECT"
)

// PropertyTypes lists every supported property type in declaration order.
var PropertyTypes = []PropertyType{
	PropertyTypeNumber,
	PropertyTypeText,
	PropertyTypeDate,
	PropertyTypeBoolean,
	PropertyTypeSelect,
}

// ParsePropertyType normalises a raw type name. The second return value is
// false when the name is not one of the supported types.
func ParsePropertyType(raw string) (PropertyType, bool) {
	candidate := PropertyType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, t := range PropertyTypes {
		if t == candidate {
			return t, true
		}
	}
	return "", false
}

// PropertyOption is one allowed value of a SELECT property
type PropertyOption struct {
	Value string `json:"value" yaml:"value"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// Property describes one user-defined field on a custom entity
type Property struct {
	ID            uuid.UUID        `json:"id"`
	EntityID      uuid.UUID        `json:"entityId"`
	Name          string           `json:"name"`
	Title         string           `json:"title"`
	Type          PropertyType     `json:"type"`
	Order         int              `json:"order"`
	IsFilterable  bool             `json:"isFilterable"`
	IsTableFilter bool             `json:"isTableFilter"`
	IsSearchable  bool             `json:"isSearchable"`
	IsUnique      bool             `json:"isUnique"`
	Options       []PropertyOption `json:"options,omitempty"`
}

// Filterable reports whether the property may contribute filter conditions.
func (p Property) Filterable() bool {
	return p.IsFilterable || p.IsTableFilter
}

// HasOption reports whether value is one of the property's allowed options.
// Properties without options accept any value.
func (p Property) HasOption(value string) bool {
	if len(p.Options) == 0 {
		return true
	}
	for _, opt := range p.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// DisplayTitle returns the title, falling back to the name.
func (p Property) DisplayTitle() string {
	if strings.TrimSpace(p.Title) != "" {
		return p.Title
	}
	return p.Name
}

// PropertyByName finds a property by case-insensitive name.
func PropertyByName(properties []Property, name string) (Property, bool) {
	name = strings.TrimSpace(name)
	for _, p := range properties {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Property{}, false
}
