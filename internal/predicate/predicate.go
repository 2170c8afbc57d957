// Package predicate turns row filter requests into a composite predicate tree
// and provides the in-memory and document renderings of that tree.
package predicate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/rowql/internal/domain"
)

// Condition is one node of a predicate tree.
type Condition interface{ isCondition() }

// Supported conditions.
type (
	// All is satisfied when every child condition is satisfied.
	All []Condition

	// Any is satisfied when at least one child condition is satisfied.
	Any []Condition

	// ValueMatch requires that some (or no) row value of PropertyID satisfies
	// every comparison on Slot.
	ValueMatch struct {
		Quantifier  Quantifier
		PropertyID  uuid.UUID
		Slot        Slot
		Comparisons []Comparison
		Insensitive bool
	}

	// ParentMatch requires a parent link equal to ParentID, or no parent link
	// at all when None is set.
	ParentMatch struct {
		None     bool
		ParentID string
	}

	// TagMatch requires at least one attached tag whose value is in Values.
	TagMatch struct {
		Values []string
	}
)

func (All) isCondition()         {}
func (Any) isCondition()         {}
func (ValueMatch) isCondition()  {}
func (ParentMatch) isCondition() {}
func (TagMatch) isCondition()    {}

// Quantifier selects between "at least one value matches" and "no value matches".
type Quantifier string

const (
	Some Quantifier = "some"
	None Quantifier = "none"
)

// Slot names the typed column of a row value a comparison reads.
type Slot string

const (
	SlotNumber  Slot = "numberValue"
	SlotText    Slot = "textValue"
	SlotDate    Slot = "dateValue"
	SlotBoolean Slot = "booleanValue"
)

// Comparison is a single operator applied to a slot.
type Comparison struct {
	Operator domain.Operator
	Operand  Operand
}

// Constant reports whether the comparison has the same result for every
// stored value. Stored numbers are finite, so a NaN operand fails every
// operator except not and notIn, which every number satisfies.
func (c Comparison) Constant() (result, constant bool) {
	if !c.Operand.Unsatisfiable() {
		return false, false
	}
	switch c.Operator {
	case domain.OperatorNot, domain.OperatorNotIn:
		return true, true
	}
	return false, true
}

// OperandKind tags the active field of an Operand.
type OperandKind int

const (
	OperandText OperandKind = iota + 1
	OperandTexts
	OperandNumber
	OperandNumbers
	OperandTime
	OperandBool
)

// Operand is the right-hand side of a comparison.
type Operand struct {
	Kind    OperandKind
	Text    string
	Texts   []string
	Number  float64
	Numbers []float64
	Time    time.Time
	Bool    bool
}

func TextOperand(s string) Operand { return Operand{Kind: OperandText, Text: s} }
func TextsOperand(s []string) Operand { return Operand{Kind: OperandTexts, Texts: s} }
func NumberOperand(n float64) Operand { return Operand{Kind: OperandNumber, Number: n} }
func NumbersOperand(n []float64) Operand { return Operand{Kind: OperandNumbers, Numbers: n} }
func TimeOperand(t time.Time) Operand { return Operand{Kind: OperandTime, Time: t} }
func BoolOperand(b bool) Operand { return Operand{Kind: OperandBool, Bool: b} }

// Unsatisfiable reports whether the operand holds no comparable number.
func (o Operand) Unsatisfiable() bool {
	switch o.Kind {
	case OperandNumber:
		return math.IsNaN(o.Number)
	case OperandNumbers:
		for _, n := range o.Numbers {
			if !math.IsNaN(n) {
				return false
			}
		}
		return true
	}
	return false
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandText:
		return fmt.Sprintf("%q", o.Text)
	case OperandTexts:
		return fmt.Sprintf("%q", o.Texts)
	case OperandNumber:
		return fmt.Sprintf("%g", o.Number)
	case OperandNumbers:
		return fmt.Sprintf("%g", o.Numbers)
	case OperandTime:
		return o.Time.Format(time.RFC3339)
	case OperandBool:
		return fmt.Sprintf("%t", o.Bool)
	}
	return "<nil>"
}

// Predicate is the AND of its root conditions. An empty root matches every row.
type Predicate struct {
	Root All
}

// MatchesEverything reports whether the predicate carries no constraint.
func (p Predicate) MatchesEverything() bool {
	return len(p.Root) == 0
}

// String renders a compact, human readable form used in logs.
func (p Predicate) String() string {
	if p.MatchesEverything() {
		return "TRUE"
	}
	var b strings.Builder
	describe(&b, p.Root)
	return b.String()
}

func describe(b *strings.Builder, c Condition) {
	switch n := c.(type) {
	case All:
		describeGroup(b, "AND", n)
	case Any:
		describeGroup(b, "OR", n)
	case ValueMatch:
		fmt.Fprintf(b, "%s(%s", n.Quantifier, n.PropertyID)
		for _, cmp := range n.Comparisons {
			fmt.Fprintf(b, " %s %s %s", n.Slot, cmp.Operator, cmp.Operand)
		}
		if n.Insensitive {
			b.WriteString(" ci")
		}
		b.WriteString(")")
	case ParentMatch:
		if n.None {
			b.WriteString("parent(none)")
		} else {
			fmt.Fprintf(b, "parent(%s)", n.ParentID)
		}
	case TagMatch:
		fmt.Fprintf(b, "tags(%s)", strings.Join(n.Values, ","))
	}
}

func describeGroup(b *strings.Builder, name string, children []Condition) {
	b.WriteString(name)
	b.WriteString("[")
	for i, child := range children {
		if i > 0 {
			b.WriteString(", ")
		}
		describe(b, child)
	}
	b.WriteString("]")
}
