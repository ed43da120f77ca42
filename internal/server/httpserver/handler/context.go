package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/yndnr/attendmesh/internal/core/domain"
)

type principalKey struct{}

// Principal is the authenticated caller of a request.
type Principal struct {
	User  *domain.User
	Token string
}

// WithPrincipal stores the authenticated caller in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated caller, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *domain.User {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.User
	}
	return nil
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
// WebSocket clients that cannot set headers may pass ?access_token= on GET.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	if r.Method == http.MethodGet {
		return r.URL.Query().Get("access_token")
	}
	return ""
}
