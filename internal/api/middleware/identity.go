package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/briefdesk/briefdesk/internal/authz"
	"github.com/briefdesk/briefdesk/pkg/contracts"
	"github.com/briefdesk/briefdesk/pkg/models"
)

type contextKey string

// UserKey is the context key for the resolved caller context.
const UserKey contextKey = "user"

// HeaderProvider resolves the caller from gateway-forwarded headers:
// X-User-Id, X-User-Name, X-User-Email, and X-User-Scopes (comma-separated
// "<group>:<role>" grants). Authentication itself happens at the edge; this
// service only consumes the forwarded principal.
type HeaderProvider struct{}

// Name implements contracts.IdentityProvider.
func (HeaderProvider) Name() string { return "headers" }

// Enabled implements contracts.IdentityProvider.
func (HeaderProvider) Enabled() bool { return true }

// Resolve implements contracts.IdentityProvider.
func (HeaderProvider) Resolve(_ context.Context, r *http.Request) (*models.UserContext, error) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		return nil, nil
	}
	uc := &models.UserContext{
		UserID: userID,
		Name:   strings.TrimSpace(r.Header.Get("X-User-Name")),
		Email:  strings.TrimSpace(r.Header.Get("X-User-Email")),
	}
	for _, s := range strings.Split(r.Header.Get("X-User-Scopes"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			uc.Scopes = append(uc.Scopes, s)
		}
	}
	return uc, nil
}

// Identity returns middleware that resolves the caller through the given
// provider and stores the enriched UserContext in the request context.
// An unresolved caller proceeds as anonymous with no scope grants.
func Identity(provider contracts.IdentityProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uc, err := provider.Resolve(r.Context(), r)
			if err != nil {
				http.Error(w, "identity resolution failed", http.StatusUnauthorized)
				return
			}
			if uc == nil {
				uc = &models.UserContext{UserID: "anonymous"}
			}
			authz.EnrichUserContext(uc)
			ctx := context.WithValue(r.Context(), UserKey, *uc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser retrieves the caller context stored by Identity.
func GetUser(ctx context.Context) models.UserContext {
	if v, ok := ctx.Value(UserKey).(models.UserContext); ok {
		return v
	}
	uc := models.UserContext{UserID: "anonymous"}
	authz.EnrichUserContext(&uc)
	return uc
}
