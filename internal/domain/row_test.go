package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRowValueValidateMatchesPropertyType(t *testing.T) {
	number := Property{ID: uuid.New(), Name: "salary", Type: PropertyTypeNumber}
	text := Property{ID: uuid.New(), Name: "name", Type: PropertyTypeText}
	date := Property{ID: uuid.New(), Name: "startedAt", Type: PropertyTypeDate}
	flag := Property{ID: uuid.New(), Name: "active", Type: PropertyTypeBoolean}

	cases := []struct {
		name    string
		prop    Property
		value   RowValue
		wantErr bool
	}{
		{"number ok", number, NumberValue(number.ID, 42), false},
		{"number nan", number, NumberValue(number.ID, math.NaN()), true},
		{"text in number slot", number, TextValue(number.ID, "42"), true},
		{"text ok", text, TextValue(text.ID, "john"), false},
		{"date ok", date, DateValue(date.ID, time.Now()), false},
		{"boolean ok", flag, BooleanValue(flag.ID, false), false},
		{"boolean wrong property", flag, BooleanValue(text.ID, true), true},
	}

	for _, tc := range cases {
		err := tc.value.Validate(tc.prop)
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if err != nil && !errors.Is(err, ErrValueTypeMismatch) {
			t.Fatalf("%s: expected ErrValueTypeMismatch, got %v", tc.name, err)
		}
	}
}

func TestRowValueValidateRejectsTwoSlots(t *testing.T) {
	p := Property{ID: uuid.New(), Name: "name", Type: PropertyTypeText}
	v := TextValue(p.ID, "a")
	n := 1.0
	v.NumberValue = &n

	if err := v.Validate(p); !errors.Is(err, ErrValueTypeMismatch) {
		t.Fatalf("expected mismatch for two populated slots, got %v", err)
	}
}

func TestRowValueValidateSelectOptions(t *testing.T) {
	p := Property{
		ID:      uuid.New(),
		Name:    "stage",
		Type:    PropertyTypeSelect,
		Options: []PropertyOption{{Value: "applied"}, {Value: "hired"}},
	}

	if err := TextValue(p.ID, "hired").Validate(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := TextValue(p.ID, "fired").Validate(p); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("expected ErrUnknownOption, got %v", err)
	}
}

func TestNewRowBindsValues(t *testing.T) {
	p := Property{ID: uuid.New(), Type: PropertyTypeText}
	row := NewRow(uuid.New(), uuid.New(), []RowValue{TextValue(p.ID, "x")})

	if row.Values[0].RowID != row.ID {
		t.Fatalf("expected value bound to row %s, got %s", row.ID, row.Values[0].RowID)
	}
	if got := row.ValuesFor(p.ID); len(got) != 1 {
		t.Fatalf("expected one value for property, got %d", len(got))
	}
}

func TestPaginationNormalize(t *testing.T) {
	p := Pagination{Page: 0, PageSize: 500}.Normalize()
	if p.Page != 1 || p.PageSize != MaxPageSize {
		t.Fatalf("unexpected normalised pagination %+v", p)
	}
	if off := (Pagination{Page: 3, PageSize: 20}).Offset(); off != 40 {
		t.Fatalf("expected offset 40, got %d", off)
	}
	if pages := (Pagination{PageSize: 10}).TotalPages(21); pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
}

func TestPaginationOffsetNeverOverflows(t *testing.T) {
	for _, page := range []int{math.MaxInt64 / 5, math.MaxInt64 / 10, math.MaxInt64} {
		p := Pagination{Page: page, PageSize: 10}
		if off := p.Offset(); off < 0 {
			t.Fatalf("page %d: negative offset %d", page, off)
		}
	}
}
