package predicate

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/rowql/internal/domain"
)

func textProp(filterable bool) domain.Property {
	return domain.Property{ID: uuid.New(), Name: "name", Type: domain.PropertyTypeText, IsFilterable: filterable}
}

func ref(p domain.Property) *domain.Property { return &p }

func TestBuildRowPredicateEmptySetMatchesEverything(t *testing.T) {
	p := textProp(true)
	got := BuildRowPredicate(domain.FilterSet{
		Properties: []domain.FilterRequest{{Property: ref(p)}},
	}, []domain.Property{p})

	assert.True(t, got.MatchesEverything())
	assert.Nil(t, got.Root)
	assert.Equal(t, map[string]any{}, Render(got))
}

func TestBuildRowPredicateIgnoresNonFilterableProperties(t *testing.T) {
	hidden := textProp(false)
	got := BuildRowPredicate(domain.FilterSet{
		Query: "john",
		Properties: []domain.FilterRequest{
			{Property: ref(hidden), Value: domain.Scalar("john")},
			{Property: ref(hidden), Value: domain.List("a", "b"), Match: domain.MatchOr},
		},
	}, []domain.Property{hidden})

	assert.True(t, got.MatchesEverything())
}

func TestBuildRowPredicateCatalogFlagsWin(t *testing.T) {
	p := textProp(false)
	stale := p
	stale.IsFilterable = true

	got := BuildRowPredicate(domain.FilterSet{
		Properties: []domain.FilterRequest{{Property: &stale, Value: domain.Scalar("x")}},
	}, []domain.Property{p})
	assert.True(t, got.MatchesEverything(), "catalog says the property is not filterable")

	got = BuildRowPredicate(domain.FilterSet{
		Properties: []domain.FilterRequest{{Property: &stale, Value: domain.Scalar("x")}},
	}, nil)
	assert.Len(t, got.Root, 1, "unknown ids fall back to the embedded property")
}

func TestBuildRowPredicateTextScalarAndList(t *testing.T) {
	p := textProp(true)
	sel := domain.Property{ID: uuid.New(), Type: domain.PropertyTypeSelect, IsTableFilter: true}

	got := BuildRowPredicate(domain.FilterSet{
		Properties: []domain.FilterRequest{
			{Property: ref(p), Value: domain.Scalar("Jo")},
			{Property: ref(sel), Value: domain.List("hired", "applied")},
		},
	}, []domain.Property{p, sel})

	require.Equal(t, All{
		ValueMatch{
			Quantifier:  Some,
			PropertyID:  p.ID,
			Slot:        SlotText,
			Comparisons: []Comparison{{Operator: domain.OperatorContains, Operand: TextOperand("Jo")}},
			Insensitive: true,
		},
		ValueMatch{
			Quantifier:  Some,
			PropertyID:  sel.ID,
			Slot:        SlotText,
			Comparisons: []Comparison{{Operator: domain.OperatorIn, Operand: TextsOperand([]string{"hired", "applied"})}},
			Insensitive: true,
		},
	}, got.Root)
}

func TestBuildRowPredicateConditionOverride(t *testing.T) {
	p := textProp(true)
	n := domain.Property{ID: uuid.New(), Type: domain.PropertyTypeNumber, IsFilterable: true}

	got := BuildRowPredicate(domain.FilterSet{
		Properties: []domain.FilterRequest{
			{Property: ref(p), Value: domain.Scalar("Jo"), Condition: domain.OperatorStartsWith},
			{Property: ref(n), Value: domain.Scalar("10"), Condition: domain.OperatorGte},
			{Property: ref(n), Value: domain.Scalar("10"), Condition: domain.OperatorContains},
			{Property: ref(p), Value: domain.List("a", "b"), Condition: domain.OperatorContains},
		},
	}, []domain.Property{p, n})

	require.Len(t, got.Root, 2, "unsupported operator combinations contribute nothing")
	first := got.Root[0].(ValueMatch)
	assert.Equal(t, domain.OperatorStartsWith, first.Comparisons[0].Operator)
	second := got.Root[1].(ValueMatch)
	assert.Equal(t, SlotNumber, second.Slot)
	assert.Equal(t, domain.OperatorGte, second.Comparisons[0].Operator)
	assert.Equal(t, 10.0, second.Comparisons[0].Operand.Number)
}

func TestBuildRowPredicateBooleanFalseIsNoneTrue(t *testing.T) {
	p3 := domain.Property{ID: uuid.New(), Type: domain.PropertyTypeBoolean, IsFilterable: true}

	got := BuildRowPredicate(domain.FilterSet{
		Properties: []domain.FilterRequest{{Property: ref(p3), Value: domain.Scalar("false")}},
	}, []domain.Property{p3})

	require.Equal(t, All{
		ValueMatch{
			Quantifier:  None,
			PropertyID:  p3.ID,
			Slot:        SlotBoolean,
			Comparisons: []Comparison{{Operator: domain.OperatorEquals, Operand: BoolOperand(true)}},
		},
	}, got.Root)

	empty := domain.NewRow(uuid.New(), uuid.New(), nil)
	explicitFalse := domain.NewRow(uuid.New(), uuid.New(), []domain.RowValue{domain.BooleanValue(p3.ID, false)})
	explicitTrue := domain.NewRow(uuid.New(), uuid.New(), []domain.RowValue{domain.BooleanValue(p3.ID, true)})

	assert.True(t, Evaluate(got, empty), "row without values satisfies false")
	assert.True(t, Evaluate(got, explicitFalse))
	assert.False(t, Evaluate(got, explicitTrue))
}

func TestBuildRowPredicateBooleanRejectsAmbiguousStrings(t *testing.T) {
	p := domain.Property{ID: uuid.New(), Type: domain.PropertyTypeBoolean, IsFilterable: true}
	for _, raw := range []string{"TRUE", "1", "yes", " true", "False"} {
		got := BuildRowPredicate(domain.FilterSet{
			Properties: []domain.FilterRequest{{Property: ref(p), Value: domain.Scalar(raw)}},
		}, []domain.Property{p})
		assert.True(t, got.MatchesEverything(), "value %q must not produce a condition", raw)
	}

	got := BuildRowPredicate(domain.FilterSet{
		Properties: []domain.FilterRequest{{Property: ref(p), Value: domain.Scalar("true")}},
	}, []domain.Property{p})
	require.Len(t, got.Root, 1)
	assert.Equal(t, Some, got.Root[0].(ValueMatch).Quantifier)
}

func TestBuildRowPredicateNumberNaNMatchesNothing(t *testing.T) {
	p := domain.Property{ID: uuid.New(), Type: domain.PropertyTypeNumber, IsFilterable: true}

	got := BuildRowPredicate(domain.FilterSet{
		Properties: []domain.FilterRequest{{Property: ref(p), Value: domain.Scalar("abc")}},
	}, []domain.Property{p})

	require.Len(t, got.Root, 1)
	leaf := got.Root[0].(ValueMatch)
	assert.True(t, math.IsNaN(leaf.Comparisons[0].Operand.Number))
	assert.True(t, leaf.Comparisons[0].Operand.Unsatisfiable())

	for _, v := range []float64{0, -1, 42, math.MaxFloat64} {
		row := domain.NewRow(uuid.New(), uuid.New(), []domain.RowValue{domain.NumberValue(p.ID, v)})
		assert.False(t, Evaluate(got, row), "NaN leaf matched %v", v)
	}
}

func TestBuildRowPredicateQueryOnlyBuildsSingleOrGroup(t *testing.T) {
	p1 := domain.Property{ID: uuid.New(), Type: domain.PropertyTypeText, IsFilterable: true}
	p2 := domain.Property{ID: uuid.New(), Type: domain.PropertyTypeNumber, IsTableFilter: true}

	got := BuildRowPredicate(domain.FilterSet{
		Query: "john",
		Properties: []domain.FilterRequest{
			{Property: ref(p1)},
			{Property: ref(p2)},
		},
	}, []domain.Property{p1, p2})

	require.Len(t, got.Root, 1)
	group, ok := got.Root[0].(Any)
	require.True(t, ok, "expected OR group, got %T", got.Root[0])
	require.Len(t, group, 2)

	text := group[0].(ValueMatch)
	assert.Equal(t, p1.ID, text.PropertyID)
	assert.Equal(t, domain.OperatorContains, text.Comparisons[0].Operator)
	assert.Equal(t, "john", text.Comparisons[0].Operand.Text)
	assert.True(t, text.Insensitive)

	number := group[1].(ValueMatch)
	assert.Equal(t, p2.ID, number.PropertyID)
	assert.Equal(t, domain.OperatorEquals, number.Comparisons[0].Operator)
	assert.True(t, math.IsNaN(number.Comparisons[0].Operand.Number))

	doc := Render(got)
	and := doc["AND"].([]any)
	or := and[0].(map[string]any)["OR"].([]any)
	assert.Len(t, or, 2)
	numberDoc := or[1].(map[string]any)["values"].(map[string]any)["some"].(map[string]any)
	assert.Equal(t, map[string]any{"equals": "NaN"}, numberDoc["numberValue"])
}

func TestBuildRowPredicateQueryDeduplicatesProperties(t *testing.T) {
	p := textProp(true)
	got := BuildRowPredicate(domain.FilterSet{
		Query:      "x",
		Properties: []domain.FilterRequest{{Property: ref(p)}, {Property: ref(p)}},
	}, []domain.Property{p})

	require.Len(t, got.Root, 1)
	assert.Len(t, got.Root[0].(Any), 1)
}

func TestBuildRowPredicateOrMatchSharesQueryGroup(t *testing.T) {
	name := textProp(true)
	city := domain.Property{ID: uuid.New(), Type: domain.PropertyTypeText, IsFilterable: true}
	age := domain.Property{ID: uuid.New(), Type: domain.PropertyTypeNumber, IsFilterable: true}

	got := BuildRowPredicate(domain.FilterSet{
		Query: "ann",
		Properties: []domain.FilterRequest{
			{Property: ref(name)},
			{Property: ref(city), Value: domain.Scalar("paris"), Match: domain.MatchOr},
			{Property: ref(age), Value: domain.Scalar("30")},
		},
	}, []domain.Property{name, city, age})

	require.Len(t, got.Root, 2)
	group := got.Root[0].(Any)
	require.Len(t, group, 4, "query over three properties plus the or request")
	assert.Equal(t, city.ID, group[3].(ValueMatch).PropertyID)
	assert.Equal(t, age.ID, got.Root[1].(ValueMatch).PropertyID)
}

func TestBuildRowPredicatePropertylessRequestIsFreeText(t *testing.T) {
	p := textProp(true)
	got := BuildRowPredicate(domain.FilterSet{
		Properties: []domain.FilterRequest{
			{Property: ref(p)},
			{Value: domain.Scalar("smith")},
		},
	}, []domain.Property{p})

	require.Len(t, got.Root, 1)
	group := got.Root[0].(Any)
	require.Len(t, group, 1)
	assert.Equal(t, "smith", group[0].(ValueMatch).Comparisons[0].Operand.Text)
}

func TestBuildRowPredicateParentFilters(t *testing.T) {
	hidden := textProp(false)
	parentID := uuid.New()

	got := BuildRowPredicate(domain.FilterSet{
		Properties: []domain.FilterRequest{{Property: ref(hidden), Value: domain.Scalar("x")}},
		ParentEntityFilters: []domain.ParentEntityFilter{
			{PropertyRef: "job", Value: domain.ParentNone},
			{PropertyRef: "company", Value: parentID.String()},
		},
	}, []domain.Property{hidden})

	require.Equal(t, All{
		ParentMatch{None: true},
		ParentMatch{ParentID: parentID.String()},
	}, got.Root)

	orphan := domain.NewRow(uuid.New(), uuid.New(), nil)
	child := orphan
	child.ParentIDs = []uuid.UUID{parentID}

	noParent := BuildRowPredicate(domain.FilterSet{
		ParentEntityFilters: []domain.ParentEntityFilter{{Value: "null"}},
	}, nil)
	assert.True(t, Evaluate(noParent, orphan))
	assert.False(t, Evaluate(noParent, child))
}

func TestBuildRowPredicateBlankParentMatchesNothing(t *testing.T) {
	got := BuildRowPredicate(domain.FilterSet{
		ParentEntityFilters: []domain.ParentEntityFilter{{PropertyRef: "company", Value: " "}},
	}, nil)
	require.Equal(t, All{ParentMatch{ParentID: ""}}, got.Root)

	child := domain.NewRow(uuid.New(), uuid.New(), nil)
	child.ParentIDs = []uuid.UUID{uuid.New()}
	assert.False(t, Evaluate(got, child))
	assert.False(t, Evaluate(got, domain.NewRow(uuid.New(), uuid.New(), nil)))
}

func TestBuildRowPredicateTagsAreLast(t *testing.T) {
	p := textProp(true)
	got := BuildRowPredicate(domain.FilterSet{
		Query:      "x",
		Tags:       []string{"vip", " ", "remote"},
		Properties: []domain.FilterRequest{{Property: ref(p), Value: domain.Scalar("y")}},
	}, []domain.Property{p})

	require.Len(t, got.Root, 3)
	assert.IsType(t, Any{}, got.Root[0])
	assert.IsType(t, ValueMatch{}, got.Root[1])
	assert.Equal(t, TagMatch{Values: []string{"vip", "remote"}}, got.Root[2])
}

func TestBuildRowPredicateDateDayRange(t *testing.T) {
	p := domain.Property{ID: uuid.New(), Type: domain.PropertyTypeDate, IsFilterable: true}
	got := BuildRowPredicate(domain.FilterSet{
		Properties: []domain.FilterRequest{
			{Property: ref(p), Value: domain.Scalar("2024-03-01")},
			{Property: ref(p), Value: domain.Scalar("not a date")},
		},
	}, []domain.Property{p})

	require.Len(t, got.Root, 1)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, []Comparison{
		{Operator: domain.OperatorGte, Operand: TimeOperand(day)},
		{Operator: domain.OperatorLt, Operand: TimeOperand(day.AddDate(0, 0, 1))},
	}, got.Root[0].(ValueMatch).Comparisons)

	inside := domain.NewRow(uuid.New(), uuid.New(), []domain.RowValue{domain.DateValue(p.ID, day.Add(13*time.Hour))})
	outside := domain.NewRow(uuid.New(), uuid.New(), []domain.RowValue{domain.DateValue(p.ID, day.AddDate(0, 0, 1))})
	assert.True(t, Evaluate(got, inside))
	assert.False(t, Evaluate(got, outside))
}

func TestEveryPropertyTypeHasKind(t *testing.T) {
	for _, pt := range domain.PropertyTypes {
		kind, ok := kindOf(pt)
		require.True(t, ok, "property type %s has no value kind", pt)
		assert.NotEmpty(t, kind.slot())
	}
	_, ok := kindOf(domain.PropertyType("MEDIA"))
	assert.False(t, ok)
}
