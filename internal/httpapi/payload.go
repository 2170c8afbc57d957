package httpapi

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rpattn/rowql/internal/domain"
	"github.com/rpattn/rowql/internal/search"
)

type searchPayload struct {
	TenantID      string          `json:"tenantId" validate:"omitempty,uuid"`
	Query         string          `json:"query" validate:"max=500"`
	Tags          []string        `json:"tags" validate:"max=50,dive,required,max=100"`
	Filters       []filterPayload `json:"filters" validate:"max=100,dive"`
	ParentFilters []parentPayload `json:"parentFilters" validate:"max=20,dive"`
	Page          int             `json:"page" validate:"gte=0"`
	PageSize      int             `json:"pageSize" validate:"gte=0,max=100"`
	Sort          string          `json:"sort" validate:"max=200"`
}

type filterPayload struct {
	Property  string             `json:"property" validate:"max=200"`
	Value     domain.FilterValue `json:"value"`
	Condition string             `json:"condition" validate:"omitempty,oneof=equals not in notIn contains startsWith endsWith lt lte gt gte"`
	Match     string             `json:"match" validate:"omitempty,oneof=and or"`
}

type parentPayload struct {
	Property string `json:"property" validate:"max=200"`
	Value    string `json:"value" validate:"required"`
}

// filterSet converts the payload into a FilterSet with property stubs that
// the search service resolves.
func (p searchPayload) filterSet() domain.FilterSet {
	set := domain.FilterSet{Query: p.Query, Tags: p.Tags}
	for _, f := range p.Filters {
		set.Properties = append(set.Properties, domain.FilterRequest{
			Property:  search.PropertyRef(f.Property),
			Value:     f.Value,
			Condition: domain.Operator(f.Condition),
			Match:     domain.MatchMode(f.Match),
		})
	}
	for _, pf := range p.ParentFilters {
		set.ParentEntityFilters = append(set.ParentEntityFilters, domain.ParentEntityFilter{PropertyRef: pf.Property, Value: pf.Value})
	}
	return set
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
