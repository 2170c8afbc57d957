package predicate

import (
	"strings"

	"github.com/rpattn/rowql/internal/domain"
)

// Evaluate reports whether the row satisfies the predicate.
func Evaluate(p Predicate, row domain.Row) bool {
	return evaluate(p.Root, row)
}

func evaluate(c Condition, row domain.Row) bool {
	switch n := c.(type) {
	case All:
		for _, child := range n {
			if !evaluate(child, row) {
				return false
			}
		}
		return true
	case Any:
		for _, child := range n {
			if evaluate(child, row) {
				return true
			}
		}
		return false
	case ValueMatch:
		matched := false
		for _, v := range row.ValuesFor(n.PropertyID) {
			if valueMatches(n, v) {
				matched = true
				break
			}
		}
		if n.Quantifier == None {
			return !matched
		}
		return matched
	case ParentMatch:
		if n.None {
			return len(row.ParentIDs) == 0
		}
		for _, id := range row.ParentIDs {
			if strings.EqualFold(id.String(), n.ParentID) {
				return true
			}
		}
		return false
	case TagMatch:
		for _, tag := range row.Tags {
			for _, want := range n.Values {
				if tag == want {
					return true
				}
			}
		}
		return false
	}
	return false
}

func valueMatches(m ValueMatch, v domain.RowValue) bool {
	for _, cmp := range m.Comparisons {
		if result, constant := cmp.Constant(); constant {
			if !result {
				return false
			}
			continue
		}
		if !compareSlot(m.Slot, cmp, v, m.Insensitive) {
			return false
		}
	}
	return true
}

func compareSlot(slot Slot, cmp Comparison, v domain.RowValue, insensitive bool) bool {
	switch slot {
	case SlotText:
		if v.TextValue == nil {
			return false
		}
		return compareText(cmp, *v.TextValue, insensitive)
	case SlotNumber:
		if v.NumberValue == nil {
			return false
		}
		return compareNumber(cmp, *v.NumberValue)
	case SlotDate:
		if v.DateValue == nil {
			return false
		}
		return compareOrdered(cmp.Operator, v.DateValue.Compare(cmp.Operand.Time))
	case SlotBoolean:
		if v.BooleanValue == nil {
			return false
		}
		switch cmp.Operator {
		case domain.OperatorEquals:
			return *v.BooleanValue == cmp.Operand.Bool
		case domain.OperatorNot:
			return *v.BooleanValue != cmp.Operand.Bool
		}
	}
	return false
}

func compareText(cmp Comparison, got string, insensitive bool) bool {
	fold := func(s string) string {
		if insensitive {
			return strings.ToLower(s)
		}
		return s
	}
	got = fold(got)

	switch cmp.Operator {
	case domain.OperatorIn, domain.OperatorNotIn:
		found := false
		for _, want := range cmp.Operand.Texts {
			if fold(want) == got {
				found = true
				break
			}
		}
		return found == (cmp.Operator == domain.OperatorIn)
	}

	want := fold(cmp.Operand.Text)
	switch cmp.Operator {
	case domain.OperatorContains:
		return strings.Contains(got, want)
	case domain.OperatorStartsWith:
		return strings.HasPrefix(got, want)
	case domain.OperatorEndsWith:
		return strings.HasSuffix(got, want)
	}
	return compareOrdered(cmp.Operator, strings.Compare(got, want))
}

func compareNumber(cmp Comparison, got float64) bool {
	switch cmp.Operator {
	case domain.OperatorIn, domain.OperatorNotIn:
		found := false
		for _, want := range cmp.Operand.Numbers {
			if want == got {
				found = true
				break
			}
		}
		return found == (cmp.Operator == domain.OperatorIn)
	}

	want := cmp.Operand.Number
	rel := 0
	if got < want {
		rel = -1
	} else if got > want {
		rel = 1
	}
	return compareOrdered(cmp.Operator, rel)
}

// compareOrdered applies an ordering operator to the sign of got-want.
func compareOrdered(op domain.Operator, rel int) bool {
	switch op {
	case domain.OperatorEquals:
		return rel == 0
	case domain.OperatorNot:
		return rel != 0
	case domain.OperatorLt:
		return rel < 0
	case domain.OperatorLte:
		return rel <= 0
	case domain.OperatorGt:
		return rel > 0
	case domain.OperatorGte:
		return rel >= 0
	}
	return false
}
