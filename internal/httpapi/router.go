package httpapi

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/rpattn/rowql/internal/export"
	"github.com/rpattn/rowql/internal/graph"
	"github.com/rpattn/rowql/internal/ingestion"
	"github.com/rpattn/rowql/internal/middleware"
	"github.com/rpattn/rowql/internal/repository"
	"github.com/rpattn/rowql/internal/search"
)

// Deps are the services the API serves.
type Deps struct {
	Search         *search.Service
	Export         *export.Service
	Ingestion      *ingestion.Service
	Properties     repository.PropertyRepository
	AllowedOrigins []string
}

// NewRouter wires the row API and the GraphQL endpoint behind CORS, access logging, tenant scoping
// and the per-request property loader.
func NewRouter(deps Deps) http.Handler {
	h := &Handler{search: deps.Search, export: deps.Export, validate: newValidator()}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /api/entities/{entity}/rows", h.handleListRows)
	mux.HandleFunc("POST /api/entities/{entity}/rows/search", h.handleSearchRows)
	mux.HandleFunc("POST /api/entities/{entity}/rows/predicate", h.handlePredicate)
	mux.HandleFunc("GET /api/entities/{entity}/rows/export.xlsx", h.handleExport)
	mux.Handle("/query", graph.NewHandler(graph.NewResolver(deps.Search)))
	mux.Handle("GET /playground", graph.PlaygroundHandler("/query"))
	if deps.Ingestion != nil {
		mux.Handle("POST /api/entities/{entity}/rows/import", ingestion.NewHTTPHandler(deps.Ingestion))
	}

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.TenantHeader},
		ExposedHeaders: []string{"Content-Disposition"},
	})

	return corsHandler.Handler(
		middleware.LoggingMiddleware(
			middleware.TenantMiddleware(
				middleware.DataLoaderMiddleware(deps.Properties)(mux),
			),
		),
	)
}
