package repository

import (
	"fmt"
	"math"
	"strings"

	"github.com/rpattn/rowql/internal/domain"
	"github.com/rpattn/rowql/internal/predicate"
)

type sqlBuilder struct {
	args []any
}

func newSQLBuilder() *sqlBuilder {
	return &sqlBuilder{args: make([]any, 0)}
}

func (b *sqlBuilder) addArg(value any) int {
	b.args = append(b.args, value)
	return len(b.args)
}

func (b *sqlBuilder) placeholder(idx int) string {
	return fmt.Sprintf("$%d", idx)
}

// bind adds the value and returns its placeholder with a type cast.
func (b *sqlBuilder) bind(value any, cast string) string {
	p := b.placeholder(b.addArg(value))
	if cast == "" {
		return p
	}
	return p + "::" + cast
}

// compilePredicate renders the predicate as a boolean SQL expression over the
// entity_rows alias. An empty predicate compiles to TRUE.
func compilePredicate(p predicate.Predicate, alias string, b *sqlBuilder) string {
	if p.MatchesEverything() {
		return "TRUE"
	}
	return compileCondition(p.Root, alias, b)
}

func compileCondition(c predicate.Condition, alias string, b *sqlBuilder) string {
	switch n := c.(type) {
	case predicate.All:
		return compileGroup(n, " AND ", "TRUE", alias, b)
	case predicate.Any:
		return compileGroup(n, " OR ", "FALSE", alias, b)
	case predicate.ValueMatch:
		return compileValueMatch(n, alias, b)
	case predicate.ParentMatch:
		if n.None {
			return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM row_relationships rr WHERE rr.child_id = %s.id)", alias)
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM row_relationships rr WHERE rr.child_id = %s.id AND rr.parent_id::text = lower(%s))",
			alias, b.bind(n.ParentID, "text"))
	case predicate.TagMatch:
		return fmt.Sprintf("EXISTS (SELECT 1 FROM row_tags t WHERE t.row_id = %s.id AND t.value = ANY(%s))",
			alias, b.bind(append([]string(nil), n.Values...), "text[]"))
	}
	return "FALSE"
}

func compileGroup(children []predicate.Condition, sep, empty, alias string, b *sqlBuilder) string {
	if len(children) == 0 {
		return empty
	}
	parts := make([]string, 0, len(children))
	for _, child := range children {
		parts = append(parts, compileCondition(child, alias, b))
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func compileValueMatch(m predicate.ValueMatch, alias string, b *sqlBuilder) string {
	clauses := []string{
		fmt.Sprintf("v.row_id = %s.id", alias),
		fmt.Sprintf("v.property_id = %s", b.bind(m.PropertyID, "uuid")),
	}
	for _, cmp := range m.Comparisons {
		clauses = append(clauses, compileComparison(m.Slot, cmp, m.Insensitive, b))
	}

	exists := "EXISTS (SELECT 1 FROM row_values v WHERE " + strings.Join(clauses, " AND ") + ")"
	if m.Quantifier == predicate.None {
		return "NOT " + exists
	}
	return exists
}

func slotColumn(slot predicate.Slot) (column, cast string) {
	switch slot {
	case predicate.SlotNumber:
		return "v.number_value", "double precision"
	case predicate.SlotDate:
		return "v.date_value", "timestamptz"
	case predicate.SlotBoolean:
		return "v.boolean_value", "boolean"
	default:
		return "v.text_value", "text"
	}
}

func compileComparison(slot predicate.Slot, cmp predicate.Comparison, insensitive bool, b *sqlBuilder) string {
	if result, constant := cmp.Constant(); constant {
		if result {
			return "TRUE"
		}
		return "FALSE"
	}

	column, cast := slotColumn(slot)
	fold := func(s string) string { return s }
	if insensitive && slot == predicate.SlotText {
		column = "lower(" + column + ")"
		fold = strings.ToLower
	}

	if cmp.Operator.IsList() {
		var list any
		switch cmp.Operand.Kind {
		case predicate.OperandNumbers:
			nums := make([]float64, 0, len(cmp.Operand.Numbers))
			for _, n := range cmp.Operand.Numbers {
				if !math.IsNaN(n) {
					nums = append(nums, n)
				}
			}
			list = nums
		default:
			texts := make([]string, len(cmp.Operand.Texts))
			for i, s := range cmp.Operand.Texts {
				texts[i] = fold(s)
			}
			list = texts
		}
		expr := fmt.Sprintf("%s = ANY(%s)", column, b.bind(list, cast+"[]"))
		if cmp.Operator == domain.OperatorNotIn {
			return "NOT (" + expr + ")"
		}
		return expr
	}

	var value any
	switch cmp.Operand.Kind {
	case predicate.OperandText:
		value = fold(cmp.Operand.Text)
	case predicate.OperandNumber:
		value = cmp.Operand.Number
	case predicate.OperandTime:
		value = cmp.Operand.Time
	case predicate.OperandBool:
		value = cmp.Operand.Bool
	default:
		return "FALSE"
	}

	switch cmp.Operator {
	case domain.OperatorContains:
		return fmt.Sprintf("%s LIKE '%%' || %s || '%%' ESCAPE '\\'", column, b.bind(escapeLike(fmt.Sprint(value)), "text"))
	case domain.OperatorStartsWith:
		return fmt.Sprintf("%s LIKE %s || '%%' ESCAPE '\\'", column, b.bind(escapeLike(fmt.Sprint(value)), "text"))
	case domain.OperatorEndsWith:
		return fmt.Sprintf("%s LIKE '%%' || %s ESCAPE '\\'", column, b.bind(escapeLike(fmt.Sprint(value)), "text"))
	}

	op, ok := sqlOperators[cmp.Operator]
	if !ok {
		return "FALSE"
	}
	return fmt.Sprintf("%s %s %s", column, op, b.bind(value, cast))
}

var sqlOperators = map[domain.Operator]string{
	domain.OperatorEquals: "=",
	domain.OperatorNot:    "<>",
	domain.OperatorLt:     "<",
	domain.OperatorLte:    "<=",
	domain.OperatorGt:     ">",
	domain.OperatorGte:    ">=",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// compileOrder renders ORDER BY for the requested sorts, newest rows first by default.
func compileOrder(sorts []domain.RowSort, alias string, b *sqlBuilder) string {
	orderings := make([]string, 0, len(sorts)+1)
	for _, s := range sorts {
		direction := "ASC"
		if s.Descending() {
			direction = "DESC"
		}
		var expr string
		switch s.Field {
		case domain.RowSortFieldCreatedAt:
			expr = alias + ".created_at"
		case domain.RowSortFieldUpdatedAt:
			expr = alias + ".updated_at"
		case domain.RowSortFieldFolio:
			expr = alias + ".folio"
		case domain.RowSortFieldProperty:
			column, _ := slotColumn(slotFor(s.PropertyType))
			expr = fmt.Sprintf("(SELECT %s FROM row_values v WHERE v.row_id = %s.id AND v.property_id = %s LIMIT 1)",
				column, alias, b.bind(s.PropertyID, "uuid"))
		default:
			continue
		}
		orderings = append(orderings, fmt.Sprintf("%s %s NULLS LAST", expr, direction))
	}
	orderings = append(orderings, alias+".created_at DESC", alias+".id")
	return "ORDER BY " + strings.Join(orderings, ", ")
}

func slotFor(t domain.PropertyType) predicate.Slot {
	switch t {
	case domain.PropertyTypeNumber:
		return predicate.SlotNumber
	case domain.PropertyTypeDate:
		return predicate.SlotDate
	case domain.PropertyTypeBoolean:
		return predicate.SlotBoolean
	default:
		return predicate.SlotText
	}
}
