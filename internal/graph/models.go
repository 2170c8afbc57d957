package graph

import (
	"time"

	"github.com/rpattn/rowql/internal/domain"
	"github.com/rpattn/rowql/internal/search"
)

type RowPage struct {
	Rows       []*Row
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

type Row struct {
	ID        string
	Folio     int
	Tags      []string
	ParentIDs []string
	Values    []*RowValue
	CreatedAt string
	UpdatedAt string
}

type RowValue struct {
	PropertyID string
	Property   string
	Value      string
}

type RowPredicate struct {
	Document    map[string]any
	Description string
}

func newRowPage(entity domain.Entity, page search.Page) *RowPage {
	out := &RowPage{
		Rows:       make([]*Row, len(page.Rows)),
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
	for i, r := range page.Rows {
		out.Rows[i] = newRow(entity, r)
	}
	return out
}

func newRow(entity domain.Entity, r domain.Row) *Row {
	row := &Row{
		ID:        r.ID.String(),
		Folio:     r.Folio,
		Tags:      append([]string{}, r.Tags...),
		ParentIDs: make([]string, len(r.ParentIDs)),
		Values:    make([]*RowValue, 0, len(r.Values)),
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
	for i, id := range r.ParentIDs {
		row.ParentIDs[i] = id.String()
	}
	for _, v := range r.Values {
		name := v.PropertyID.String()
		if p, ok := entity.Property(v.PropertyID); ok {
			name = p.Name
		}
		row.Values = append(row.Values, &RowValue{PropertyID: v.PropertyID.String(), Property: name, Value: v.Display()})
	}
	return row
}
