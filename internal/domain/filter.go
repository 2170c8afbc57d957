package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Operator is a comparison condition a filter may request explicitly.
type Operator string

const (
	OperatorEquals     Operator = "equals"
	OperatorNot        Operator = "not"
	OperatorIn         Operator = "in"
	OperatorNotIn      Operator = "notIn"
	OperatorContains   Operator = "contains"
	OperatorStartsWith Operator = "startsWith"
	OperatorEndsWith   Operator = "endsWith"
	OperatorLt         Operator = "lt"
	OperatorLte        Operator = "lte"
	OperatorGt         Operator = "gt"
	OperatorGte        Operator = "gte"
)

// Operators lists every supported operator.
var Operators = []Operator{
	OperatorEquals, OperatorNot, OperatorIn, OperatorNotIn,
	OperatorContains, OperatorStartsWith, OperatorEndsWith,
	OperatorLt, OperatorLte, OperatorGt, OperatorGte,
}

// ParseOperator matches a raw operator name case-insensitively.
func ParseOperator(raw string) (Operator, bool) {
	raw = strings.TrimSpace(raw)
	for _, op := range Operators {
		if strings.EqualFold(string(op), raw) {
			return op, true
		}
	}
	return "", false
}

// IsList reports whether the operator compares against a set of values.
func (o Operator) IsList() bool {
	return o == OperatorIn || o == OperatorNotIn
}

// MatchMode decides how a filter request is combined with the others.
type MatchMode string

const (
	MatchAnd MatchMode = "and"
	MatchOr  MatchMode = "or"
)

// ParentNone is the parent filter value meaning "must have no parent link".
const ParentNone = "null"

// FilterValue is either a scalar string or a list of strings.
type FilterValue struct {
	scalar string
	list   []string
	isList bool
}

// Scalar builds a scalar filter value.
func Scalar(v string) FilterValue {
	return FilterValue{scalar: v}
}

// List builds a list filter value.
func List(values ...string) FilterValue {
	return FilterValue{list: append([]string(nil), values...), isList: true}
}

// IsList reports whether the value holds a list.
func (v FilterValue) IsList() bool { return v.isList }

// String returns the scalar value; lists are joined with commas.
func (v FilterValue) String() string {
	if v.isList {
		return strings.Join(v.list, ",")
	}
	return v.scalar
}

// Values returns the list items, or the scalar as a single item when non-empty.
func (v FilterValue) Values() []string {
	if v.isList {
		return append([]string(nil), v.list...)
	}
	if v.scalar == "" {
		return nil
	}
	return []string{v.scalar}
}

// IsEmpty reports whether the value carries nothing to filter by.
func (v FilterValue) IsEmpty() bool {
	if v.isList {
		return len(v.list) == 0
	}
	return v.scalar == ""
}

// MarshalJSON encodes scalars as strings and lists as arrays.
func (v FilterValue) MarshalJSON() ([]byte, error) {
	if v.isList {
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	}
	return json.Marshal(v.scalar)
}

// UnmarshalJSON accepts a string, a number, a boolean, null or an array of those.
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = FilterValue{}
		return nil
	}
	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode filter value list: %w", err)
		}
		items := make([]string, 0, len(raw))
		for _, item := range raw {
			s, err := rawToString(item)
			if err != nil {
				return err
			}
			items = append(items, s)
		}
		*v = List(items...)
		return nil
	}
	s, err := rawToString(data)
	if err != nil {
		return err
	}
	*v = Scalar(s)
	return nil
}

func rawToString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return "true", nil
		}
		return "false", nil
	}
	return "", fmt.Errorf("unsupported filter value %s", string(raw))
}

// FilterRequest describes one transient filter condition. A nil Property
// means the value is free text matched against every eligible property.
type FilterRequest struct {
	Property  *Property   `json:"property,omitempty"`
	Value     FilterValue `json:"value"`
	Condition Operator    `json:"condition,omitempty"`
	Match     MatchMode   `json:"match,omitempty"`
}

// ParentEntityFilter requires a parent link equal to Value, or no parent
// link at all when Value is ParentNone.
type ParentEntityFilter struct {
	PropertyRef string `json:"propertyRef,omitempty"`
	Value       string `json:"value"`
}

// FilterSet is the aggregate input to the row predicate builder.
type FilterSet struct {
	Properties          []FilterRequest      `json:"properties"`
	Query               string               `json:"query,omitempty"`
	Tags                []string             `json:"tags,omitempty"`
	ParentEntityFilters []ParentEntityFilter `json:"parentEntityFilters,omitempty"`
}

// IsEmpty reports whether the set constrains nothing.
func (s FilterSet) IsEmpty() bool {
	if strings.TrimSpace(s.Query) != "" || len(s.Tags) > 0 || len(s.ParentEntityFilters) > 0 {
		return false
	}
	for _, f := range s.Properties {
		if !f.Value.IsEmpty() {
			return false
		}
	}
	return true
}
