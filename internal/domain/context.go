package domain

import "context"

type contextKey string

const tenantIDKey contextKey = "tenant_id"

// WithTenantID returns a context carrying the tenant (business) id.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// GetTenantIDFromContext extracts the tenant id, or "" when absent.
func GetTenantIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tenantIDKey).(string); ok {
		return v
	}
	return ""
}
