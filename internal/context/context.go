package appcontext

import (
	"context"

	"schoolpoints/relay/internal/models/entities"
)

type contextKey string

const (
	tenantKey    contextKey = "tenant"
	requestIDKey contextKey = "request_id"
)

// WithTenant stores the authenticated institution for downstream handlers.
func WithTenant(ctx context.Context, inst *entities.Institution) context.Context {
	return context.WithValue(ctx, tenantKey, inst)
}

func Tenant(ctx context.Context) (*entities.Institution, bool) {
	inst, ok := ctx.Value(tenantKey).(*entities.Institution)
	return inst, ok
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
