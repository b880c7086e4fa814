package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/briefdesk/briefdesk/pkg/models"
)

// APIKeyProvider resolves automation clients from a static API key. Keys are
// validated from the Authorization: Bearer <key> or X-API-Key headers.
//
// Config: BRIEFDESK_API_KEYS env var (comma-separated list).
// Scope grants for key callers: BRIEFDESK_API_KEY_SCOPES env var
// (comma-separated "<group>:<role>" grants, default "global:reader").
type APIKeyProvider struct {
	mu      sync.RWMutex
	keys    map[string]bool
	enabled bool
	scopes  []string
}

// NewAPIKeyProvider creates an API key provider from environment config.
func NewAPIKeyProvider() *APIKeyProvider {
	p := &APIKeyProvider{
		keys:   make(map[string]bool),
		scopes: []string{"global:reader"},
	}

	if s := os.Getenv("BRIEFDESK_API_KEY_SCOPES"); s != "" {
		p.scopes = nil
		for _, grant := range strings.Split(s, ",") {
			if grant = strings.TrimSpace(grant); grant != "" {
				p.scopes = append(p.scopes, grant)
			}
		}
	}

	for _, key := range strings.Split(os.Getenv("BRIEFDESK_API_KEYS"), ",") {
		if key = strings.TrimSpace(key); key != "" {
			p.keys[key] = true
			p.enabled = true
		}
	}
	return p
}

func (p *APIKeyProvider) Name() string { return "apikey" }

func (p *APIKeyProvider) Enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// Resolve validates the API key and returns the key's caller context.
// Returns (nil, nil) if no API key is present (let the next provider try).
// Returns (nil, error) if an API key is present but invalid.
func (p *APIKeyProvider) Resolve(_ context.Context, r *http.Request) (*models.UserContext, error) {
	apiKey := extractAPIKey(r)
	if apiKey == "" {
		return nil, nil
	}

	if !p.validateKey(apiKey) {
		return nil, fmt.Errorf("invalid API key")
	}

	keyHash := fmt.Sprintf("%x", sha256.Sum256([]byte(apiKey)))
	p.mu.RLock()
	scopes := append([]string(nil), p.scopes...)
	p.mu.RUnlock()

	return &models.UserContext{
		UserID: "apikey:" + keyHash[:16],
		Name:   "API Key Client",
		Scopes: scopes,
	}, nil
}

func (p *APIKeyProvider) validateKey(candidate string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for key := range p.keys {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// AddKey adds an API key at runtime.
func (p *APIKeyProvider) AddKey(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys[key] = true
	p.enabled = true
}

// RemoveKey removes an API key at runtime.
func (p *APIKeyProvider) RemoveKey(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.keys, key)
	if len(p.keys) == 0 {
		p.enabled = false
	}
}

func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return ""
}
