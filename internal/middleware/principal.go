// Package middleware holds the HTTP middleware shared by every handler:
// credential resolution, usage recording, metrics, and rate limiting.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/msaada/backend/internal/auth"
	"github.com/msaada/backend/internal/monitoring"
)

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal attaches a resolved principal to the request context.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the principal placed by the Principal middleware.
func PrincipalFrom(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*auth.Principal)
	return p, ok
}

// Principal resolves request credentials and injects the principal into
// the context. Unresolved credentials get 401; backend outages get 503.
// After a successful resolution the audit side effect (last-active
// timestamp) runs in the background so it never delays the request.
func Principal(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := auth.CredentialsFromRequest(r)

			principal, err := resolver.Resolve(r.Context(), creds)
			if err != nil {
				if errors.Is(err, auth.ErrUpstreamUnavailable) {
					monitoring.AuthOutcomes.WithLabelValues("error").Inc()
					http.Error(w, "Identity backend unavailable", http.StatusServiceUnavailable)
					return
				}
				monitoring.AuthOutcomes.WithLabelValues("unauthenticated").Inc()
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			monitoring.AuthOutcomes.WithLabelValues("resolved").Inc()

			go resolver.RecordKeyUse(context.WithoutCancel(r.Context()), principal)

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole rejects principals whose role is not in the allowed set.
// Role policy is the caller's concern, not the resolver's; this adapter
// maps a wrong-role principal straight to 403.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	allowed := make(map[auth.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[principal.Role]; !ok {
				monitoring.AuthOutcomes.WithLabelValues("forbidden").Inc()
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireScope gates mutating endpoints for tenant-key principals: the
// key's stored scopes must include the given write scope. Principals
// from other credential paths pass through to the role check instead.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if principal.Kind == auth.KindAPIKeyTenant && !principal.HasScope(scope) {
				monitoring.AuthOutcomes.WithLabelValues("forbidden").Inc()
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
