package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/rowql/internal/auth"
)

// TenantHeader carries the caller's tenant id.
const TenantHeader = "X-Tenant-ID"

// TenantMiddleware scopes the request context to the tenant named in the
// X-Tenant-ID header. Requests without the header pass through unscoped.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(TenantHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid "+TenantHeader+" header", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithTenantID(r.Context(), id)))
	})
}
