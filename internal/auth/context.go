package auth

import "context"

type ctxKey string

const adminClaimsKey ctxKey = "admin_claims"

func SetAdminClaims(ctx context.Context, claims *AdminClaims) context.Context {
	return context.WithValue(ctx, adminClaimsKey, claims)
}

func GetAdminClaims(ctx context.Context) (*AdminClaims, bool) {
	claims, ok := ctx.Value(adminClaimsKey).(*AdminClaims)
	return claims, ok
}
