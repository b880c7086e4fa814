package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/briefdesk/briefdesk/pkg/models"
)

// ServiceTokenProvider validates HMAC-signed service tokens. Used by
// internal jobs and pipeline integrations that call the engine directly
// rather than through the user-facing gateway.
//
// Token format: base64(JSON payload) + "." + base64(HMAC-SHA256 signature)
// Payload: {"sub": "brief-importer", "scopes": ["global:editor"], "exp": 1234567890}
//
// Config: BRIEFDESK_SERVICE_SECRET env var (HMAC secret key).
type ServiceTokenProvider struct {
	secret  []byte
	enabled bool
}

// serviceTokenPayload is the JWT-like payload for service tokens.
type serviceTokenPayload struct {
	Subject string   `json:"sub"`
	Name    string   `json:"name,omitempty"`
	Scopes  []string `json:"scopes"`
	Exp     int64    `json:"exp"`
}

// NewServiceTokenProvider creates a service token provider from environment
// config. Disabled when no secret is set.
func NewServiceTokenProvider() *ServiceTokenProvider {
	secret := os.Getenv("BRIEFDESK_SERVICE_SECRET")
	if secret == "" {
		return &ServiceTokenProvider{enabled: false}
	}
	return &ServiceTokenProvider{secret: []byte(secret), enabled: true}
}

func (p *ServiceTokenProvider) Name() string  { return "service_token" }
func (p *ServiceTokenProvider) Enabled() bool { return p.enabled }

// Resolve validates the token from the X-Service-Token header.
// Returns (nil, nil) if no service token is present.
// Returns (nil, error) if the token is present but invalid.
func (p *ServiceTokenProvider) Resolve(_ context.Context, r *http.Request) (*models.UserContext, error) {
	token := r.Header.Get("X-Service-Token")
	if token == "" {
		return nil, nil
	}

	payload, err := p.validateToken(token)
	if err != nil {
		return nil, fmt.Errorf("invalid service token: %w", err)
	}

	name := payload.Name
	if name == "" {
		name = payload.Subject
	}
	return &models.UserContext{
		UserID: "svc:" + payload.Subject,
		Name:   name,
		Scopes: payload.Scopes,
	}, nil
}

func (p *ServiceTokenProvider) validateToken(token string) (*serviceTokenPayload, error) {
	dot := strings.LastIndexByte(token, '.')
	if dot < 0 {
		return nil, fmt.Errorf("malformed token: expected payload.signature")
	}
	payloadB64, sigB64 := token[:dot], token[dot+1:]

	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(payloadB64))
	expectedSig := mac.Sum(nil)

	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if !hmac.Equal(sig, expectedSig) {
		return nil, fmt.Errorf("signature mismatch")
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, fmt.Errorf("invalid payload encoding: %w", err)
	}

	var payload serviceTokenPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("invalid payload JSON: %w", err)
	}

	if payload.Exp > 0 && time.Now().Unix() > payload.Exp {
		return nil, fmt.Errorf("token expired")
	}
	if payload.Subject == "" {
		return nil, fmt.Errorf("missing subject")
	}
	return &payload, nil
}

// GenerateServiceToken creates a signed service token. This is a helper for
// CLI tooling and tests, not called by the server.
func GenerateServiceToken(secret []byte, subject string, scopes []string, ttl time.Duration) (string, error) {
	payload := serviceTokenPayload{
		Subject: subject,
		Scopes:  scopes,
		Exp:     time.Now().Add(ttl).Unix(),
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	payloadB64 := base64.RawURLEncoding.EncodeToString(payloadBytes)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payloadB64))
	sigB64 := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return payloadB64 + "." + sigB64, nil
}
