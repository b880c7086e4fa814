// Package auth provides identity providers beyond the gateway-header default:
// HMAC-signed service tokens for internal jobs and static API keys for
// automation clients, composed through a provider chain.
package auth

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/briefdesk/briefdesk/pkg/contracts"
	"github.com/briefdesk/briefdesk/pkg/models"
)

// ProviderChain walks registered identity providers in order until one
// resolves the request. It implements contracts.IdentityProvider itself so
// the middleware sees a single provider.
//
// Thread-safe: providers can be registered after the server is built.
type ProviderChain struct {
	mu        sync.RWMutex
	providers []contracts.IdentityProvider
}

// NewProviderChain creates a chain over the given providers, tried in order.
func NewProviderChain(providers ...contracts.IdentityProvider) *ProviderChain {
	c := &ProviderChain{}
	for _, p := range providers {
		c.Register(p)
	}
	return c
}

// Register adds a provider to the end of the chain.
func (c *ProviderChain) Register(p contracts.IdentityProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers = append(c.providers, p)
	log.Info().
		Str("provider", p.Name()).
		Bool("enabled", p.Enabled()).
		Msg("identity provider registered")
}

// Name implements contracts.IdentityProvider.
func (c *ProviderChain) Name() string { return "chain" }

// Enabled implements contracts.IdentityProvider. The chain is enabled when
// any registered provider is.
func (c *ProviderChain) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.providers {
		if p.Enabled() {
			return true
		}
	}
	return false
}

// Resolve walks the chain of providers in order.
//
// Contract per provider:
//   - (*UserContext, nil) → resolved, stop walking
//   - (nil, nil) → this provider doesn't handle this request, try next
//   - (nil, error) → resolution attempted but failed, reject immediately
func (c *ProviderChain) Resolve(ctx context.Context, r *http.Request) (*models.UserContext, error) {
	c.mu.RLock()
	providers := make([]contracts.IdentityProvider, len(c.providers))
	copy(providers, c.providers)
	c.mu.RUnlock()

	for _, p := range providers {
		if !p.Enabled() {
			continue
		}
		user, err := p.Resolve(ctx, r)
		if err != nil {
			log.Debug().
				Str("provider", p.Name()).
				Err(err).
				Msg("identity provider rejected request")
			return nil, err
		}
		if user != nil {
			log.Debug().
				Str("provider", p.Name()).
				Str("user_id", user.UserID).
				Msg("request identity resolved")
			return user, nil
		}
	}

	// No provider matched; the middleware falls back to anonymous.
	return nil, nil
}

// Providers returns the names of all registered providers (for diagnostics).
func (c *ProviderChain) Providers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}
