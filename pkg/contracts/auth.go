// Package contracts — identity interfaces for the pluggable identity layer.
//
// The orchestration engine trusts the edge to authenticate; what varies
// between deployments is how the authenticated principal and their scope
// grants reach this service. The community provider reads forwarded headers.
// A deployment behind a different gateway can register its own provider.
package contracts

import (
	"context"
	"net/http"

	"github.com/briefdesk/briefdesk/pkg/models"
)

// IdentityProvider resolves an HTTP request to the caller's UserContext.
//
// The chain pattern:
//   - Return (*UserContext, nil) → resolved, stop chain
//   - Return (nil, nil) → this provider doesn't handle this request, try next
//   - Return (nil, error) → resolution was attempted but failed, reject
type IdentityProvider interface {
	// Name returns the provider identifier (e.g. "headers").
	Name() string

	// Resolve inspects the request and returns the caller's context.
	Resolve(ctx context.Context, r *http.Request) (*models.UserContext, error)

	// Enabled returns whether this provider is configured and active.
	Enabled() bool
}
