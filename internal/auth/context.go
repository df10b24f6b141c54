package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const principalKey contextKey = "principal"

// DefaultPrincipalHeader is the request header naming the acting user when
// none is configured.
const DefaultPrincipalHeader = "X-Remote-User"

// ContextWithPrincipal returns a new context that carries the acting user.
func ContextWithPrincipal(ctx context.Context, principal string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext retrieves the acting user from the context, if any.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	principal, ok := ctx.Value(principalKey).(string)
	if !ok || principal == "" {
		return "", false
	}
	return principal, true
}

// PrincipalMiddleware copies the identity set by an upstream authenticating
// proxy from header into the request context.
func PrincipalMiddleware(header string) func(http.Handler) http.Handler {
	if strings.TrimSpace(header) == "" {
		header = DefaultPrincipalHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if principal := strings.TrimSpace(r.Header.Get(header)); principal != "" {
				r = r.WithContext(ContextWithPrincipal(r.Context(), principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}
