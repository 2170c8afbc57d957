package export

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/rowql/internal/domain"
	"github.com/rpattn/rowql/internal/search"
)

// Service writes filtered rows of an entity to xlsx workbooks
type Service struct {
	search   *search.Service
	pageSize int
	maxRows  int
}

type Option func(*Service)

// WithPageSize sets how many rows are fetched per search page.
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 && size <= domain.MaxPageSize {
			s.pageSize = size
		}
	}
}

// WithMaxRows caps the number of exported rows.
func WithMaxRows(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRows = n
		}
	}
}

func NewService(searchService *search.Service, opts ...Option) *Service {
	service := &Service{
		search:   searchService,
		pageSize: domain.MaxPageSize,
		maxRows:  100000,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Result summarizes a finished export.
type Result struct {
	Entity   domain.Entity
	Rows     int
	Filename string
}

// WriteWorkbook streams every page of the search into an xlsx workbook
// written to w. The request's pagination is ignored.
func (s *Service) WriteWorkbook(ctx context.Context, req search.Request, w io.Writer) (Result, error) {
	entity, err := s.search.Entity(ctx, req.TenantID, req.Entity)
	if err != nil {
		return Result{}, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := sheetName(entity)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return Result{}, fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return Result{}, fmt.Errorf("create stream writer: %w", err)
	}

	properties := entity.Properties
	header := make([]any, 0, len(properties)+2)
	header = append(header, "Folio")
	for _, p := range properties {
		header = append(header, p.DisplayTitle())
	}
	header = append(header, "Tags")
	if err := sw.SetRow("A1", header); err != nil {
		return Result{}, fmt.Errorf("write header: %w", err)
	}

	written := 0
	for pageNumber := 1; written < s.maxRows; pageNumber++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		pageReq := req
		pageReq.Pagination = domain.Pagination{Page: pageNumber, PageSize: s.pageSize}
		page, err := s.search.SearchEntity(ctx, entity, pageReq)
		if err != nil {
			return Result{}, err
		}

		for _, row := range page.Rows {
			if written >= s.maxRows {
				break
			}
			cell, err := excelize.CoordinatesToCellName(1, written+2)
			if err != nil {
				return Result{}, err
			}
			if err := sw.SetRow(cell, rowCells(row, properties)); err != nil {
				return Result{}, fmt.Errorf("write row %d: %w", row.Folio, err)
			}
			written++
		}
		if pageNumber >= page.TotalPages {
			break
		}
	}

	if err := sw.Flush(); err != nil {
		return Result{}, fmt.Errorf("flush workbook: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return Result{}, fmt.Errorf("write workbook: %w", err)
	}

	log.Printf("[EXPORT] entity=%s rows=%d", entity.Slug, written)
	return Result{Entity: entity, Rows: written, Filename: sanitizeFileComponent(entity.Slug) + ".xlsx"}, nil
}

// rowCells returns typed cells: numbers, dates and booleans keep their type.
// Multiple values for one property are joined as text.
func rowCells(row domain.Row, properties []domain.Property) []any {
	cells := make([]any, 0, len(properties)+2)
	cells = append(cells, row.Folio)
	for _, p := range properties {
		values := row.ValuesFor(p.ID)
		switch {
		case len(values) == 0:
			cells = append(cells, nil)
		case len(values) == 1:
			cells = append(cells, cellValue(values[0]))
		default:
			parts := make([]string, len(values))
			for i, v := range values {
				parts[i] = v.Display()
			}
			cells = append(cells, strings.Join(parts, ", "))
		}
	}
	return append(cells, strings.Join(row.Tags, ", "))
}

func cellValue(v domain.RowValue) any {
	switch {
	case v.NumberValue != nil:
		return *v.NumberValue
	case v.DateValue != nil:
		return v.DateValue.UTC()
	case v.BooleanValue != nil:
		return *v.BooleanValue
	case v.TextValue != nil:
		return *v.TextValue
	}
	return nil
}

// sheetName trims the entity title to the 31 characters a sheet name allows
// and strips the characters excel rejects.
func sheetName(entity domain.Entity) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, strings.TrimSpace(entity.Title))
	if name == "" {
		name = "Rows"
	}
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	return name
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "rows"
	}
	return result
}
