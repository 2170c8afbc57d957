package domain

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrValueTypeMismatch is returned when a row value's populated slot does not
	// match its property's declared type.
	ErrValueTypeMismatch = errors.New("row value does not match property type")
	// ErrUnknownOption is returned when a SELECT value is not one of the property's options.
	ErrUnknownOption = errors.New("value is not an allowed option")
)

// RowValue is one typed value for a row and property pair. Exactly one slot is
// meaningful, determined by the property's type.
type RowValue struct {
	ID           uuid.UUID  `json:"id"`
	RowID        uuid.UUID  `json:"rowId"`
	PropertyID   uuid.UUID  `json:"propertyId"`
	NumberValue  *float64   `json:"numberValue,omitempty"`
	TextValue    *string    `json:"textValue,omitempty"`
	DateValue    *time.Time `json:"dateValue,omitempty"`
	BooleanValue *bool      `json:"booleanValue,omitempty"`
}

// NumberValue builds a number slot value for the property.
func NumberValue(propertyID uuid.UUID, v float64) RowValue {
	return RowValue{ID: uuid.New(), PropertyID: propertyID, NumberValue: &v}
}

// TextValue builds a text slot value for the property.
func TextValue(propertyID uuid.UUID, v string) RowValue {
	return RowValue{ID: uuid.New(), PropertyID: propertyID, TextValue: &v}
}

// DateValue builds a date slot value for the property.
func DateValue(propertyID uuid.UUID, v time.Time) RowValue {
	return RowValue{ID: uuid.New(), PropertyID: propertyID, DateValue: &v}
}

// BooleanValue builds a boolean slot value for the property.
func BooleanValue(propertyID uuid.UUID, v bool) RowValue {
	return RowValue{ID: uuid.New(), PropertyID: propertyID, BooleanValue: &v}
}

func (v RowValue) populatedSlots() int {
	n := 0
	if v.NumberValue != nil {
		n++
	}
	if v.TextValue != nil {
		n++
	}
	if v.DateValue != nil {
		n++
	}
	if v.BooleanValue != nil {
		n++
	}
	return n
}

// Validate checks that the populated slot matches the property's type.
func (v RowValue) Validate(p Property) error {
	if v.PropertyID != p.ID {
		return fmt.Errorf("%w: value bound to property %s, not %s", ErrValueTypeMismatch, v.PropertyID, p.ID)
	}
	if v.populatedSlots() != 1 {
		return fmt.Errorf("%w: property %q needs exactly one value slot", ErrValueTypeMismatch, p.Name)
	}

	var ok bool
	switch p.Type {
	case PropertyTypeNumber:
		ok = v.NumberValue != nil && !math.IsNaN(*v.NumberValue) && !math.IsInf(*v.NumberValue, 0)
	case PropertyTypeText:
		ok = v.TextValue != nil
	case PropertyTypeSelect:
		ok = v.TextValue != nil
		if ok && !p.HasOption(*v.TextValue) {
			return fmt.Errorf("%w: %q for property %q", ErrUnknownOption, *v.TextValue, p.Name)
		}
	case PropertyTypeDate:
		ok = v.DateValue != nil
	case PropertyTypeBoolean:
		ok = v.BooleanValue != nil
	}
	if !ok {
		return fmt.Errorf("%w: property %q is %s", ErrValueTypeMismatch, p.Name, p.Type)
	}
	return nil
}

// Display renders the populated slot as text.
func (v RowValue) Display() string {
	switch {
	case v.TextValue != nil:
		return *v.TextValue
	case v.NumberValue != nil:
		return fmt.Sprintf("%g", *v.NumberValue)
	case v.DateValue != nil:
		return v.DateValue.Format("2006-01-02")
	case v.BooleanValue != nil:
		if *v.BooleanValue {
			return "true"
		}
		return "false"
	}
	return ""
}

// Row is one record instance of an entity
type Row struct {
	ID        uuid.UUID   `json:"id"`
	TenantID  uuid.UUID   `json:"tenantId"`
	EntityID  uuid.UUID   `json:"entityId"`
	Folio     int         `json:"folio"`
	Values    []RowValue  `json:"values"`
	Tags      []string    `json:"tags,omitempty"`
	ParentIDs []uuid.UUID `json:"parentIds,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// NewRow creates a row and binds the given values to it.
func NewRow(tenantID, entityID uuid.UUID, values []RowValue) Row {
	now := time.Now()
	r := Row{
		ID:        uuid.New(),
		TenantID:  tenantID,
		EntityID:  entityID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.Values = make([]RowValue, len(values))
	for i, v := range values {
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		v.RowID = r.ID
		r.Values[i] = v
	}
	return r
}

// ValuesFor returns every value the row holds for the property.
func (r Row) ValuesFor(propertyID uuid.UUID) []RowValue {
	var out []RowValue
	for _, v := range r.Values {
		if v.PropertyID == propertyID {
			out = append(out, v)
		}
	}
	return out
}

// HasTag reports whether the row carries the tag value.
func (r Row) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ValidateValues checks every value against the entity's properties.
func (r Row) ValidateValues(e Entity) error {
	for _, v := range r.Values {
		p, ok := e.Property(v.PropertyID)
		if !ok {
			return fmt.Errorf("%w: property %s not defined on entity %q", ErrValueTypeMismatch, v.PropertyID, e.Name)
		}
		if err := v.Validate(p); err != nil {
			return err
		}
	}
	return nil
}
