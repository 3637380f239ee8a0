// internal/pkg/jwt/provider.go
package jwt

import (
	"crypto/ecdsa"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// APNs rejects provider tokens older than an hour and throttles ones
// refreshed more often than every 20 minutes.
const DefaultProviderTTL = 50 * time.Minute

// ProviderToken issues the ES256 bearer token APNs expects for
// token-based authentication, reusing it until it goes stale.
type ProviderToken struct {
	priv   *ecdsa.PrivateKey
	keyID  string
	teamID string
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	token    string
	issuedAt time.Time
}

func NewProviderToken(priv *ecdsa.PrivateKey, keyID, teamID string, ttl time.Duration) *ProviderToken {
	if ttl <= 0 {
		ttl = DefaultProviderTTL
	}
	return &ProviderToken{
		priv:   priv,
		keyID:  keyID,
		teamID: teamID,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Load reads the key at keyPath and builds a ProviderToken from it.
func Load(keyPath, keyID, teamID string) (*ProviderToken, error) {
	priv, err := LoadECPrivateKeyFromPEM(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key from %s: %w", keyPath, err)
	}
	return NewProviderToken(priv, keyID, teamID, DefaultProviderTTL), nil
}

// Token returns the cached token, signing a fresh one when needed.
func (p *ProviderToken) Token() (string, error) {
	if p.priv == nil {
		return "", fmt.Errorf("provider token has nil private key")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.token != "" && now.Sub(p.issuedAt) < p.ttl {
		return p.token, nil
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Issuer:   p.teamID,
		IssuedAt: jwt.NewNumericDate(now),
	})
	tok.Header["kid"] = p.keyID

	signed, err := tok.SignedString(p.priv)
	if err != nil {
		return "", fmt.Errorf("failed to sign provider token: %w", err)
	}

	p.token = signed
	p.issuedAt = now
	return signed, nil
}

// Invalidate forces the next Token call to sign again, e.g. after APNs
// answers ExpiredProviderToken.
func (p *ProviderToken) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}
