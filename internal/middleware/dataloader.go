package middleware

import (
	"context"
	"net/http"

	"github.com/rpattn/rowql/internal/propertyloader"
	"github.com/rpattn/rowql/internal/repository"

	"github.com/graph-gophers/dataloader"
)

type ctxKey string

const propertyLoaderKey ctxKey = "propertyLoader"

// DataLoaderMiddleware attaches a fresh property loader to each request context
func DataLoaderMiddleware(repo repository.PropertyRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := propertyloader.NewPropertyLoader(repo)
			next.ServeHTTP(w, r.WithContext(ContextWithPropertyLoader(r.Context(), loader.Loader)))
		})
	}
}

// ContextWithPropertyLoader stores the loader in ctx.
func ContextWithPropertyLoader(ctx context.Context, loader *dataloader.Loader) context.Context {
	return context.WithValue(ctx, propertyLoaderKey, loader)
}

// PropertyLoaderFromContext retrieves the dataloader from context
func PropertyLoaderFromContext(ctx context.Context) *dataloader.Loader {
	if l, ok := ctx.Value(propertyLoaderKey).(*dataloader.Loader); ok {
		return l
	}
	return nil
}
