package graph

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/rpattn/rowql/internal/domain"
	"github.com/rpattn/rowql/internal/search"
)

//go:embed schema.graphqls
var schemaSource string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: schemaSource})

// NewExecutableSchema binds the row schema to the resolver.
func NewExecutableSchema(resolver *Resolver) graphql.ExecutableSchema {
	return &executableSchema{resolver: resolver}
}

type executableSchema struct {
	resolver *Resolver
}

func (e *executableSchema) Schema() *ast.Schema {
	return parsedSchema
}

// Complexity leaves every field at the default cost.
func (e *executableSchema) Complexity(ctx context.Context, typeName, field string, childComplexity int, rawArgs map[string]any) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	opCtx := graphql.GetOperationContext(ctx)
	if opCtx.Operation.Operation != ast.Query {
		return graphql.OneShot(graphql.ErrorResponse(ctx, "unsupported operation: %s", opCtx.Operation.Operation))
	}

	first := true
	return func(ctx context.Context) *graphql.Response {
		if !first {
			return nil
		}
		first = false

		var buf bytes.Buffer
		e.query(ctx, opCtx).MarshalGQL(&buf)
		return &graphql.Response{Data: buf.Bytes()}
	}
}

func (e *executableSchema) query(ctx context.Context, opCtx *graphql.OperationContext) graphql.Marshaler {
	fields := graphql.CollectFields(opCtx, opCtx.Operation.SelectionSet, []string{"Query"})
	out := graphql.NewFieldSet(fields)
	for i, field := range fields {
		out.Values[i] = graphql.Null
		switch field.Name {
		case "__typename":
			out.Values[i] = graphql.MarshalString("Query")
		case "rows", "rowPredicate":
			out.Values[i] = e.rootField(ctx, opCtx, field)
		default:
			graphql.AddError(ctx, fmt.Errorf("field %q is not supported", field.Name))
		}
	}
	return out
}

// rootField resolves one Query field through the resolver middleware so
// field extensions see it.
func (e *executableSchema) rootField(ctx context.Context, opCtx *graphql.OperationContext, field graphql.CollectedField) graphql.Marshaler {
	args := field.ArgumentMap(opCtx.Variables)
	ctx = graphql.WithFieldContext(ctx, &graphql.FieldContext{
		Object:     "Query",
		Field:      field,
		Args:       args,
		IsMethod:   true,
		IsResolver: true,
	})

	res, err := opCtx.ResolverMiddleware(ctx, func(ctx context.Context) (any, error) {
		entity, _ := args["entity"].(string)
		filter, err := decodeFilter(args["filter"])
		if err != nil {
			return nil, err
		}
		if field.Name == "rowPredicate" {
			return e.resolver.RowPredicate(ctx, entity, filter)
		}
		return e.resolver.Rows(ctx, RowsArgs{
			Entity:   entity,
			Filter:   filter,
			Page:     intArg(args["page"]),
			PageSize: intArg(args["pageSize"]),
			Sort:     stringArg(args["sort"]),
		})
	})
	if err != nil {
		graphql.AddError(ctx, err)
		return graphql.Null
	}

	switch v := res.(type) {
	case *RowPage:
		if v != nil {
			return e.marshalRowPage(opCtx, field.Selections, v)
		}
	case *RowPredicate:
		if v != nil {
			return e.marshalRowPredicate(opCtx, field.Selections, v)
		}
	}
	return graphql.Null
}

func (e *executableSchema) marshalRowPage(opCtx *graphql.OperationContext, sel ast.SelectionSet, page *RowPage) graphql.Marshaler {
	fields := graphql.CollectFields(opCtx, sel, []string{"RowPage"})
	out := graphql.NewFieldSet(fields)
	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = graphql.MarshalString("RowPage")
		case "rows":
			rows := make(graphql.Array, len(page.Rows))
			for j, r := range page.Rows {
				rows[j] = e.marshalRow(opCtx, field.Selections, r)
			}
			out.Values[i] = rows
		case "total":
			out.Values[i] = graphql.MarshalInt(page.Total)
		case "page":
			out.Values[i] = graphql.MarshalInt(page.Page)
		case "pageSize":
			out.Values[i] = graphql.MarshalInt(page.PageSize)
		case "totalPages":
			out.Values[i] = graphql.MarshalInt(page.TotalPages)
		default:
			out.Values[i] = graphql.Null
		}
	}
	return out
}

func (e *executableSchema) marshalRow(opCtx *graphql.OperationContext, sel ast.SelectionSet, row *Row) graphql.Marshaler {
	fields := graphql.CollectFields(opCtx, sel, []string{"Row"})
	out := graphql.NewFieldSet(fields)
	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = graphql.MarshalString("Row")
		case "id":
			out.Values[i] = graphql.MarshalID(row.ID)
		case "folio":
			out.Values[i] = graphql.MarshalInt(row.Folio)
		case "tags":
			out.Values[i] = marshalStrings(row.Tags, graphql.MarshalString)
		case "parentIds":
			out.Values[i] = marshalStrings(row.ParentIDs, graphql.MarshalID)
		case "values":
			values := make(graphql.Array, len(row.Values))
			for j, v := range row.Values {
				values[j] = marshalRowValue(opCtx, field.Selections, v)
			}
			out.Values[i] = values
		case "createdAt":
			out.Values[i] = graphql.MarshalString(row.CreatedAt)
		case "updatedAt":
			out.Values[i] = graphql.MarshalString(row.UpdatedAt)
		default:
			out.Values[i] = graphql.Null
		}
	}
	return out
}

func marshalRowValue(opCtx *graphql.OperationContext, sel ast.SelectionSet, v *RowValue) graphql.Marshaler {
	fields := graphql.CollectFields(opCtx, sel, []string{"RowValue"})
	out := graphql.NewFieldSet(fields)
	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = graphql.MarshalString("RowValue")
		case "propertyId":
			out.Values[i] = graphql.MarshalID(v.PropertyID)
		case "property":
			out.Values[i] = graphql.MarshalString(v.Property)
		case "value":
			out.Values[i] = graphql.MarshalString(v.Value)
		default:
			out.Values[i] = graphql.Null
		}
	}
	return out
}

func (e *executableSchema) marshalRowPredicate(opCtx *graphql.OperationContext, sel ast.SelectionSet, p *RowPredicate) graphql.Marshaler {
	fields := graphql.CollectFields(opCtx, sel, []string{"RowPredicate"})
	out := graphql.NewFieldSet(fields)
	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = graphql.MarshalString("RowPredicate")
		case "document":
			out.Values[i] = graphql.MarshalMap(p.Document)
		case "description":
			out.Values[i] = graphql.MarshalString(p.Description)
		default:
			out.Values[i] = graphql.Null
		}
	}
	return out
}

func marshalStrings(values []string, marshal func(string) graphql.Marshaler) graphql.Marshaler {
	out := make(graphql.Array, len(values))
	for i, v := range values {
		out[i] = marshal(v)
	}
	return out
}

// decodeFilter converts a validated RowFilter input into a FilterSet with
// property stubs the search service resolves.
func decodeFilter(raw any) (domain.FilterSet, error) {
	var set domain.FilterSet
	if raw == nil {
		return set, nil
	}
	input, ok := raw.(map[string]any)
	if !ok {
		return set, fmt.Errorf("filter must be an object, got %T", raw)
	}

	set.Query = stringArg(input["query"])
	set.Tags = stringsArg(input["tags"])

	for _, item := range listArg(input["properties"]) {
		f, _ := item.(map[string]any)
		values := stringsArg(f["value"])
		value := domain.List(values...)
		if len(values) == 1 {
			value = domain.Scalar(values[0])
		}
		set.Properties = append(set.Properties, domain.FilterRequest{
			Property:  search.PropertyRef(stringArg(f["property"])),
			Value:     value,
			Condition: domain.Operator(stringArg(f["condition"])),
			Match:     domain.MatchMode(stringArg(f["match"])),
		})
	}

	for _, item := range listArg(input["parents"]) {
		f, _ := item.(map[string]any)
		set.ParentEntityFilters = append(set.ParentEntityFilters, domain.ParentEntityFilter{
			PropertyRef: stringArg(f["property"]),
			Value:       stringArg(f["value"]),
		})
	}
	return set, nil
}

func stringArg(v any) string {
	s, _ := v.(string)
	return s
}

func listArg(v any) []any {
	list, _ := v.([]any)
	return list
}

func stringsArg(v any) []string {
	var out []string
	for _, item := range listArg(v) {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// intArg accepts the integer shapes literals and decoded variables arrive in.
func intArg(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := strconv.Atoi(n.String())
		return i
	}
	return 0
}
