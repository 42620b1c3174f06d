package auth

import "context"

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a context carrying the authenticated caller.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext returns the authenticated caller, or "" if the
// request was not authenticated.
func PrincipalFromContext(ctx context.Context) string {
	if principal, ok := ctx.Value(principalKey).(string); ok {
		return principal
	}
	return ""
}
