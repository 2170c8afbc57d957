package graph

import (
	"net/http"

	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/99designs/gqlgen/graphql/playground"

	"github.com/rpattn/rowql/internal/middleware"
)

// NewHandler serves the row schema over GET and POST with per-field logging.
func NewHandler(resolver *Resolver) http.Handler {
	srv := handler.New(NewExecutableSchema(resolver))
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})

	// Add the resolver logging extension
	srv.Use(middleware.ResolverLoggerExtension{})
	return srv
}

// PlaygroundHandler serves the GraphQL playground for the endpoint.
func PlaygroundHandler(endpoint string) http.Handler {
	return playground.Handler("rowql playground", endpoint)
}
