package middleware

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql"

	"github.com/rpattn/rowql/internal/auth"
)

// responseWriter captures the status code and the body size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

// ResolverLoggerExtension logs every intercepted GraphQL field with its tenant and duration.
type ResolverLoggerExtension struct{}

// ExtensionName implements graphql.HandlerExtension
func (ResolverLoggerExtension) ExtensionName() string {
	return "ResolverLogger"
}

// Validate implements graphql.HandlerExtension
func (ResolverLoggerExtension) Validate(graphql.ExecutableSchema) error {
	return nil
}

// InterceptField implements graphql.FieldInterceptor
func (ResolverLoggerExtension) InterceptField(ctx context.Context, next graphql.Resolver) (any, error) {
	start := time.Now()
	res, err := next(ctx)

	field := "?"
	if fc := graphql.GetFieldContext(ctx); fc != nil {
		field = fc.Object + "." + fc.Field.Name
	}
	log.Printf("[GRAPHQL] %s tenant=%s took %.3fms, error: %v", field, tenantLabel(ctx), float64(time.Since(start).Microseconds())/1000, err)
	return res, err
}

// LoggingMiddleware logs method, path, status, size, tenant header and duration of every request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		tenant := r.Header.Get(TenantHeader)
		if tenant == "" {
			tenant = "-"
		}
		log.Printf("[HTTP] %s %s %d %dB tenant=%s %s from %s",
			r.Method, r.URL.Path, rw.statusCode, rw.written, tenant, time.Since(start), r.RemoteAddr)
	})
}

func tenantLabel(ctx context.Context) string {
	if id, ok := auth.TenantIDFromContext(ctx); ok {
		return id.String()
	}
	return "-"
}
