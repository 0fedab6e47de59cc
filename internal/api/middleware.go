package api

import (
	"context"
	"net/http"

	"github.com/bookwell/insights/internal/pkg/httputil"
)

type contextKey string

const (
	tenantIDKey contextKey = "tenant_id"
	actorKey    contextKey = "actor"
)

// TenantContext resolves the calling tenant from the X-Tenant-ID header and
// stores it on the request context. Requests without a tenant are rejected
// before any handler runs.
func TenantContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get("X-Tenant-ID")
		if tenantID == "" {
			httputil.ErrorCode(w, http.StatusUnauthorized, "tenant_required", "missing X-Tenant-ID header")
			return
		}
		ctx := context.WithValue(r.Context(), tenantIDKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActor guards audited administrative routes: the X-Actor header
// names who performed the action and goes into the audit record.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := r.Header.Get("X-Actor")
		if actor == "" {
			httputil.ErrorCode(w, http.StatusUnauthorized, "actor_required", "missing X-Actor header")
			return
		}
		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantID returns the tenant stored by TenantContext, empty when absent.
func TenantID(ctx context.Context) string {
	id, _ := ctx.Value(tenantIDKey).(string)
	return id
}

// Actor returns the actor stored by RequireActor, empty when absent.
func Actor(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey).(string)
	return actor
}
