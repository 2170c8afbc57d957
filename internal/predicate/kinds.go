package predicate

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/rowql/internal/domain"
)

// valueKind builds the leaf condition for one family of property types.
type valueKind interface {
	slot() Slot
	accepts(op domain.Operator) bool
	leaf(propertyID uuid.UUID, value domain.FilterValue, override domain.Operator) (Condition, bool)
}

// kindOf maps every property type to its value kind. Unknown types yield no kind.
func kindOf(t domain.PropertyType) (valueKind, bool) {
	switch t {
	case domain.PropertyTypeNumber:
		return numberKind{}, true
	case domain.PropertyTypeText, domain.PropertyTypeSelect:
		return textKind{}, true
	case domain.PropertyTypeDate:
		return dateKind{}, true
	case domain.PropertyTypeBoolean:
		return booleanKind{}, true
	}
	return nil, false
}

type textKind struct{}

func (textKind) slot() Slot { return SlotText }

func (textKind) accepts(op domain.Operator) bool {
	switch op {
	case domain.OperatorEquals, domain.OperatorNot, domain.OperatorIn, domain.OperatorNotIn,
		domain.OperatorContains, domain.OperatorStartsWith, domain.OperatorEndsWith,
		domain.OperatorLt, domain.OperatorLte, domain.OperatorGt, domain.OperatorGte:
		return true
	}
	return false
}

func (k textKind) leaf(propertyID uuid.UUID, value domain.FilterValue, override domain.Operator) (Condition, bool) {
	op := domain.OperatorContains
	if value.IsList() {
		op = domain.OperatorIn
	}
	if override != "" {
		if !k.accepts(override) {
			return nil, false
		}
		op = override
	}

	var operand Operand
	switch {
	case op.IsList():
		operand = TextsOperand(value.Values())
	case value.IsList():
		return nil, false
	default:
		operand = TextOperand(value.String())
	}

	return ValueMatch{
		Quantifier:  Some,
		PropertyID:  propertyID,
		Slot:        SlotText,
		Comparisons: []Comparison{{Operator: op, Operand: operand}},
		Insensitive: true,
	}, true
}

type numberKind struct{}

func (numberKind) slot() Slot { return SlotNumber }

func (numberKind) accepts(op domain.Operator) bool {
	switch op {
	case domain.OperatorEquals, domain.OperatorNot, domain.OperatorIn, domain.OperatorNotIn,
		domain.OperatorLt, domain.OperatorLte, domain.OperatorGt, domain.OperatorGte:
		return true
	}
	return false
}

func (k numberKind) leaf(propertyID uuid.UUID, value domain.FilterValue, override domain.Operator) (Condition, bool) {
	op := domain.OperatorEquals
	if value.IsList() {
		op = domain.OperatorIn
	}
	if override != "" {
		if !k.accepts(override) {
			return nil, false
		}
		op = override
	}

	var operand Operand
	switch {
	case op.IsList():
		items := value.Values()
		numbers := make([]float64, len(items))
		for i, item := range items {
			numbers[i] = parseNumber(item)
		}
		operand = NumbersOperand(numbers)
	case value.IsList():
		return nil, false
	default:
		operand = NumberOperand(parseNumber(value.String()))
	}

	return ValueMatch{
		Quantifier:  Some,
		PropertyID:  propertyID,
		Slot:        SlotNumber,
		Comparisons: []Comparison{{Operator: op, Operand: operand}},
	}, true
}

// parseNumber parses a float, returning NaN for anything unparsable.
func parseNumber(raw string) float64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nan
	}
	return n
}

type dateKind struct{}

const dateLayout = "2006-01-02"

func (dateKind) slot() Slot { return SlotDate }

func (dateKind) accepts(op domain.Operator) bool {
	switch op {
	case domain.OperatorEquals, domain.OperatorNot,
		domain.OperatorLt, domain.OperatorLte, domain.OperatorGt, domain.OperatorGte:
		return true
	}
	return false
}

func (k dateKind) leaf(propertyID uuid.UUID, value domain.FilterValue, override domain.Operator) (Condition, bool) {
	if value.IsList() {
		return nil, false
	}
	if override != "" && !k.accepts(override) {
		return nil, false
	}

	at, dayOnly, ok := parseDate(value.String())
	if !ok {
		return nil, false
	}

	var comparisons []Comparison
	switch {
	case override != "":
		comparisons = []Comparison{{Operator: override, Operand: TimeOperand(at)}}
	case dayOnly:
		comparisons = []Comparison{
			{Operator: domain.OperatorGte, Operand: TimeOperand(at)},
			{Operator: domain.OperatorLt, Operand: TimeOperand(at.AddDate(0, 0, 1))},
		}
	default:
		comparisons = []Comparison{{Operator: domain.OperatorEquals, Operand: TimeOperand(at)}}
	}

	return ValueMatch{
		Quantifier:  Some,
		PropertyID:  propertyID,
		Slot:        SlotDate,
		Comparisons: comparisons,
	}, true
}

func parseDate(raw string) (time.Time, bool, bool) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, true, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, true
	}
	return time.Time{}, false, false
}

type booleanKind struct{}

func (booleanKind) slot() Slot { return SlotBoolean }

func (booleanKind) accepts(op domain.Operator) bool {
	return op == domain.OperatorEquals
}

// leaf maps "true" to "some value is true" and "false" to "no value is true",
// so a row without any value satisfies "false".
func (k booleanKind) leaf(propertyID uuid.UUID, value domain.FilterValue, override domain.Operator) (Condition, bool) {
	if value.IsList() {
		return nil, false
	}
	if override != "" && !k.accepts(override) {
		return nil, false
	}

	var quantifier Quantifier
	switch value.String() {
	case "true":
		quantifier = Some
	case "false":
		quantifier = None
	default:
		return nil, false
	}

	return ValueMatch{
		Quantifier:  quantifier,
		PropertyID:  propertyID,
		Slot:        SlotBoolean,
		Comparisons: []Comparison{{Operator: domain.OperatorEquals, Operand: BoolOperand(true)}},
	}, true
}
