package repository

import (
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/rowql/internal/domain"
	"github.com/rpattn/rowql/internal/predicate"
)

func TestBuildSearchQueriesWithoutPredicateHasScopeOnly(t *testing.T) {
	tenant, entity := uuid.New(), uuid.New()
	countQuery, pageQuery, countArgs, pageArgs := buildSearchQueries(RowQuery{
		TenantID:   tenant,
		EntityID:   entity,
		Pagination: domain.Pagination{Page: 3, PageSize: 20},
	})

	assert.Equal(t, "SELECT COUNT(*) FROM entity_rows r WHERE r.tenant_id = $1 AND r.entity_id = $2", countQuery)
	assert.Equal(t, []any{tenant, entity}, countArgs)
	assert.Contains(t, pageQuery, "ORDER BY r.created_at DESC, r.id LIMIT $3 OFFSET $4")
	assert.Equal(t, []any{tenant, entity, 20, 40}, pageArgs)
}

func TestCompilePredicateValueMatch(t *testing.T) {
	propID := uuid.New()
	p := predicate.Predicate{Root: predicate.All{
		predicate.ValueMatch{
			Quantifier:  predicate.Some,
			PropertyID:  propID,
			Slot:        predicate.SlotText,
			Insensitive: true,
			Comparisons: []predicate.Comparison{{Operator: domain.OperatorContains, Operand: predicate.TextOperand("50%_Off")}},
		},
	}}

	b := newSQLBuilder()
	sql := compilePredicate(p, "r", b)

	assert.Equal(t, `(EXISTS (SELECT 1 FROM row_values v WHERE v.row_id = r.id AND v.property_id = $1::uuid AND lower(v.text_value) LIKE '%' || $2::text || '%' ESCAPE '\'))`, sql)
	require.Len(t, b.args, 2)
	assert.Equal(t, propID, b.args[0])
	assert.Equal(t, `50\%\_off`, b.args[1])
}

func TestCompilePredicateNoneQuantifierAndLists(t *testing.T) {
	propID := uuid.New()
	p := predicate.Predicate{Root: predicate.All{
		predicate.ValueMatch{
			Quantifier:  predicate.None,
			PropertyID:  propID,
			Slot:        predicate.SlotBoolean,
			Comparisons: []predicate.Comparison{{Operator: domain.OperatorEquals, Operand: predicate.BoolOperand(true)}},
		},
		predicate.ValueMatch{
			Quantifier:  predicate.Some,
			PropertyID:  propID,
			Slot:        predicate.SlotNumber,
			Comparisons: []predicate.Comparison{{Operator: domain.OperatorNotIn, Operand: predicate.NumbersOperand([]float64{1, math.NaN(), 2})}},
		},
	}}

	b := newSQLBuilder()
	sql := compilePredicate(p, "r", b)

	assert.True(t, strings.HasPrefix(sql, "(NOT EXISTS (SELECT 1 FROM row_values v"), sql)
	assert.Contains(t, sql, "v.boolean_value = $2::boolean")
	assert.Contains(t, sql, "NOT (v.number_value = ANY($4::double precision[]))")
	assert.Equal(t, []float64{1, 2}, b.args[3])
}

func TestCompilePredicateNaNComparisonIsConstant(t *testing.T) {
	cases := []struct {
		op   domain.Operator
		want string
	}{
		{domain.OperatorEquals, "AND FALSE)"},
		{domain.OperatorGte, "AND FALSE)"},
		{domain.OperatorNot, "AND TRUE)"},
	}

	for _, tc := range cases {
		p := predicate.Predicate{Root: predicate.All{
			predicate.ValueMatch{
				Quantifier:  predicate.Some,
				PropertyID:  uuid.New(),
				Slot:        predicate.SlotNumber,
				Comparisons: []predicate.Comparison{{Operator: tc.op, Operand: predicate.NumberOperand(math.NaN())}},
			},
		}}

		b := newSQLBuilder()
		sql := compilePredicate(p, "r", b)
		assert.Contains(t, sql, tc.want, "operator %s", tc.op)
		assert.Len(t, b.args, 1)
	}
}

func TestCompilePredicateGroupsParentsAndTags(t *testing.T) {
	parent := uuid.New()
	p := predicate.Predicate{Root: predicate.All{
		predicate.Any{},
		predicate.ParentMatch{None: true},
		predicate.ParentMatch{ParentID: strings.ToUpper(parent.String())},
		predicate.TagMatch{Values: []string{"vip", "remote"}},
	}}

	b := newSQLBuilder()
	sql := compilePredicate(p, "r", b)

	assert.Equal(t, "(FALSE AND "+
		"NOT EXISTS (SELECT 1 FROM row_relationships rr WHERE rr.child_id = r.id) AND "+
		"EXISTS (SELECT 1 FROM row_relationships rr WHERE rr.child_id = r.id AND rr.parent_id::text = lower($1::text)) AND "+
		"EXISTS (SELECT 1 FROM row_tags t WHERE t.row_id = r.id AND t.value = ANY($2::text[])))", sql)
	assert.Equal(t, []any{strings.ToUpper(parent.String()), []string{"vip", "remote"}}, b.args)
}

func TestCompileOrderByProperty(t *testing.T) {
	propID := uuid.New()
	b := newSQLBuilder()
	order := compileOrder([]domain.RowSort{
		{Field: domain.RowSortFieldProperty, Direction: domain.SortDirectionDesc, PropertyID: propID, PropertyType: domain.PropertyTypeNumber},
		{Field: domain.RowSortFieldFolio},
	}, "r", b)

	assert.Equal(t, "ORDER BY (SELECT v.number_value FROM row_values v WHERE v.row_id = r.id AND v.property_id = $1::uuid LIMIT 1) DESC NULLS LAST, "+
		"r.folio ASC NULLS LAST, r.created_at DESC, r.id", order)
	assert.Equal(t, []any{propID}, b.args)
}

func TestUniquePredicateOnlyCoversUniqueProperties(t *testing.T) {
	email := domain.Property{Name: "email", Type: domain.PropertyTypeText, IsUnique: true}
	name := domain.Property{Name: "name", Type: domain.PropertyTypeText}
	entity := domain.NewEntity(uuid.New(), "Candidate", "candidates", []domain.Property{email, name})
	email, name = entity.Properties[0], entity.Properties[1]

	row := domain.NewRow(entity.TenantID, entity.ID, []domain.RowValue{domain.TextValue(name.ID, "Ann")})
	if _, ok := uniquePredicate(entity, row); ok {
		t.Fatalf("expected no unique predicate without unique values")
	}

	row = domain.NewRow(entity.TenantID, entity.ID, []domain.RowValue{
		domain.TextValue(name.ID, "Ann"),
		domain.TextValue(email.ID, "ann@example.com"),
	})
	p, ok := uniquePredicate(entity, row)
	require.True(t, ok)
	assert.Equal(t, `AND[OR[some(`+email.ID.String()+` textValue equals "ann@example.com" ci)]]`, p.String())
}
