package ingestion

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/rowql/internal/domain"
	"github.com/rpattn/rowql/internal/repository"
)

var timeLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// EntityResolver resolves an entity reference within a tenant.
type EntityResolver interface {
	Entity(ctx context.Context, tenantID uuid.UUID, ref string) (domain.Entity, error)
}

// Service imports spreadsheet rows into an existing entity
type Service struct {
	entities EntityResolver
	rows     repository.RowRepository
}

func NewService(entities EntityResolver, rows repository.RowRepository) *Service {
	return &Service{entities: entities, rows: rows}
}

// Request carries one uploaded CSV or XLSX file.
type Request struct {
	TenantID uuid.UUID
	Entity   string
	FileName string
	Data     io.Reader
}

// RowError reports why one data row was not imported.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Summary describes the import outcome.
type Summary struct {
	TotalRows      int        `json:"totalRows"`
	ImportedRows   int        `json:"importedRows"`
	InvalidRows    int        `json:"invalidRows"`
	IgnoredColumns []string   `json:"ignoredColumns,omitempty"`
	Errors         []RowError `json:"errors,omitempty"`
}

type tableData struct {
	headers []string
	rows    [][]string
}

// Ingest maps header cells to properties by name or title, coerces each cell
// to its property's type and creates one row per data line. A "tags" column
// holds comma separated tags. Invalid lines are reported and skipped.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	entity, err := s.entities.Entity(ctx, req.TenantID, req.Entity)
	if err != nil {
		return Summary{}, err
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read upload: %w", err)
	}
	table, err := parseTable(req.FileName, payload)
	if err != nil {
		return Summary{}, err
	}

	columns := make([]*domain.Property, len(table.headers))
	tagColumn := -1
	summary := Summary{TotalRows: len(table.rows)}
	for i, header := range table.headers {
		if strings.EqualFold(header, "tags") {
			tagColumn = i
			continue
		}
		if p, ok := matchProperty(entity.Properties, header); ok {
			columns[i] = &p
			continue
		}
		summary.IgnoredColumns = append(summary.IgnoredColumns, header)
	}

	for idx, record := range table.rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		rowNumber := idx + 2 // 1-based, after the header

		values := make([]domain.RowValue, 0, len(columns))
		var rowErr error
		for col, prop := range columns {
			raw := strings.TrimSpace(record[col])
			if prop == nil || raw == "" {
				continue
			}
			v, err := coerceValue(*prop, raw)
			if err != nil {
				rowErr = err
				break
			}
			values = append(values, v)
		}

		if rowErr == nil {
			row := domain.NewRow(entity.TenantID, entity.ID, values)
			if tagColumn >= 0 {
				row.Tags = splitTags(record[tagColumn])
			}
			_, rowErr = s.rows.Create(ctx, entity, row)
		}
		if rowErr != nil {
			summary.InvalidRows++
			summary.Errors = append(summary.Errors, RowError{Row: rowNumber, Message: rowErr.Error()})
			continue
		}
		summary.ImportedRows++
	}

	log.Printf("[INGEST] entity=%s file=%s imported=%d invalid=%d", entity.Slug, req.FileName, summary.ImportedRows, summary.InvalidRows)
	return summary, nil
}

func parseTable(fileName string, payload []byte) (tableData, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return parseExcel(payload)
	case ".csv", "":
		return parseCSV(payload)
	default:
		return tableData{}, fmt.Errorf("unsupported file type %q", filepath.Ext(fileName))
	}
}

func parseCSV(payload []byte) (tableData, error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read csv: %w", err)
	}
	return normalizeTable(records)
}

func parseExcel(payload []byte) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, errors.New("excel file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return normalizeTable(rows)
}

// normalizeTable takes the first non-empty line as header and pads data rows
// to the header width.
func normalizeTable(records [][]string) (tableData, error) {
	var table tableData
	for _, record := range records {
		if len(cleanRow(record)) == 0 {
			continue
		}
		if table.headers == nil {
			table.headers = make([]string, len(record))
			for i, h := range record {
				table.headers[i] = strings.TrimSpace(h)
			}
			continue
		}
		table.rows = append(table.rows, padRow(record, len(table.headers)))
	}
	if table.headers == nil {
		return tableData{}, errors.New("no rows found in file")
	}
	return table, nil
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func matchProperty(properties []domain.Property, header string) (domain.Property, bool) {
	if p, ok := domain.PropertyByName(properties, header); ok {
		return p, true
	}
	for _, p := range properties {
		if p.Title != "" && strings.EqualFold(p.Title, header) {
			return p, true
		}
	}
	return domain.Property{}, false
}

func splitTags(raw string) []string {
	var tags []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

func coerceValue(prop domain.Property, raw string) (domain.RowValue, error) {
	switch prop.Type {
	case domain.PropertyTypeText, domain.PropertyTypeSelect:
		return domain.TextValue(prop.ID, raw), nil
	case domain.PropertyTypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.RowValue{}, fmt.Errorf("%s: unable to coerce %q to number", prop.Name, raw)
		}
		return domain.NumberValue(prop.ID, f), nil
	case domain.PropertyTypeBoolean:
		value := strings.ToLower(raw)
		switch value {
		case "1", "yes", "y":
			return domain.BooleanValue(prop.ID, true), nil
		case "0", "no", "n":
			return domain.BooleanValue(prop.ID, false), nil
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return domain.RowValue{}, fmt.Errorf("%s: unable to coerce %q to boolean", prop.Name, raw)
		}
		return domain.BooleanValue(prop.ID, b), nil
	case domain.PropertyTypeDate:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return domain.DateValue(prop.ID, ts.UTC()), nil
			}
		}
		return domain.RowValue{}, fmt.Errorf("%s: unrecognized date %q", prop.Name, raw)
	}
	return domain.RowValue{}, fmt.Errorf("%s: unsupported property type %s", prop.Name, prop.Type)
}
