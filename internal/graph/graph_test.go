package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/rowql/internal/catalog"
	"github.com/rpattn/rowql/internal/middleware"
	"github.com/rpattn/rowql/internal/repository"
	"github.com/rpattn/rowql/internal/search"
)

const testCatalog = `
tenants:
  - name: Acme
    slug: acme
    entities:
      - name: Candidate
        slug: candidates
        properties:
          - { name: name, type: TEXT, filterable: true }
          - { name: age, type: NUMBER, filterable: true }
        rows:
          - values: { name: Johnny Bravo, age: 41 }
            tags: [vip]
          - values: { name: Jane Doe, age: 29 }
          - values: { name: John Smith, age: 34 }
`

func newTestHandler(t *testing.T) (http.Handler, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	c, err := catalog.Load(strings.NewReader(testCatalog))
	require.NoError(t, err)
	require.NoError(t, c.Apply(ctx, catalog.Stores{Tenants: store.Tenants(), Entities: store.Entities(), Rows: store.Rows()}))

	tenant, err := store.Tenants().GetBySlug(ctx, "acme")
	require.NoError(t, err)

	resolver := NewResolver(search.NewService(store.Entities(), store.Properties(), store.Rows()))
	return middleware.TenantMiddleware(NewHandler(resolver)), tenant.ID
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string   `json:"message"`
		Path    []string `json:"path"`
	} `json:"errors"`
}

func post(t *testing.T, h http.Handler, tenant uuid.UUID, query string, variables map[string]any) gqlResponse {
	t.Helper()
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if tenant != uuid.Nil {
		req.Header.Set(middleware.TenantHeader, tenant.String())
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp gqlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestRowsQueryFiltersSortsAndPages(t *testing.T) {
	h, tenant := newTestHandler(t)

	resp := post(t, h, tenant, `query Rows($filter: RowFilter, $size: Int) {
		rows(entity: "candidates", filter: $filter, pageSize: $size, sort: "name") {
			__typename
			total
			pageSize
			totalPages
			rows { folio tags values { property value } }
		}
	}`, map[string]any{
		"filter": map[string]any{
			"properties": []any{map[string]any{"property": "name", "value": []any{"JOHN"}}},
		},
		"size": 1,
	})
	require.Empty(t, resp.Errors)

	var data struct {
		Rows struct {
			Typename   string `json:"__typename"`
			Total      int    `json:"total"`
			PageSize   int    `json:"pageSize"`
			TotalPages int    `json:"totalPages"`
			Rows       []struct {
				Folio  int      `json:"folio"`
				Tags   []string `json:"tags"`
				Values []struct {
					Property string `json:"property"`
					Value    string `json:"value"`
				} `json:"values"`
			} `json:"rows"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))

	assert.Equal(t, "RowPage", data.Rows.Typename)
	assert.Equal(t, 2, data.Rows.Total)
	assert.Equal(t, 1, data.Rows.PageSize)
	assert.Equal(t, 2, data.Rows.TotalPages)
	require.Len(t, data.Rows.Rows, 1)
	assert.Equal(t, 3, data.Rows.Rows[0].Folio)
	assert.Empty(t, data.Rows.Rows[0].Tags)
	assert.Contains(t, data.Rows.Rows[0].Values, struct {
		Property string `json:"property"`
		Value    string `json:"value"`
	}{"name", "John Smith"})
}

func TestRowsQueryTagsAndFreeText(t *testing.T) {
	h, tenant := newTestHandler(t)

	resp := post(t, h, tenant, `{
		rows(entity: "candidates", filter: {query: "bravo", tags: ["vip"], properties: [{property: "name"}]}) { total }
	}`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"rows": {"total": 1}}`, string(resp.Data))
}

func TestRowPredicateQueryRendersDocument(t *testing.T) {
	h, tenant := newTestHandler(t)

	resp := post(t, h, tenant, `{
		rowPredicate(entity: "candidates", filter: {parents: [{value: "null"}], tags: ["vip"]}) { document description }
	}`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"rowPredicate": {
		"document": {"AND": [{"parentRows": {"none": {}}}, {"tags": {"some": {"tag": {"value": {"in": ["vip"]}}}}}]},
		"description": "AND[parent(none), tags(vip)]"
	}}`, string(resp.Data))
}

func TestRowsQueryErrors(t *testing.T) {
	h, tenant := newTestHandler(t)

	resp := post(t, h, uuid.Nil, `{ rows(entity: "candidates") { total } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, middleware.TenantHeader)
	assert.Equal(t, []string{"rows"}, resp.Errors[0].Path)
	assert.JSONEq(t, `{"rows": null}`, string(resp.Data))

	resp = post(t, h, tenant, `{ rows(entity: "missing") { total } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, search.ErrEntityNotFound.Error())

	resp = post(t, h, tenant, `{ rows(entity: "candidates", filter: {properties: [{property: "name", condition: like}]}) { total } }`, nil)
	assert.NotEmpty(t, resp.Errors, "unknown operator must fail validation")
}
