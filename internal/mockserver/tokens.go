// internal/mockserver/tokens.go
package mockserver

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenRevoked is returned for a token issued before the last ExpireTokens call.
var ErrTokenRevoked = errors.New("token revoked")

// issuer signs and verifies session tokens with a per-process ed25519 key pair.
type issuer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration

	mu         sync.Mutex
	generation int
}

// newIssuer generates a fresh key pair. A ttl of zero issues tokens without an exp claim.
func newIssuer(ttl time.Duration) (*issuer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &issuer{privateKey: priv, publicKey: pub, ttl: ttl}, nil
}

// issue creates a signed JWT with "sub" = playerID.
func (i *issuer) issue(playerID string) (string, error) {
	i.mu.Lock()
	gen := i.generation
	i.mu.Unlock()

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": playerID,
		"iat": now.Unix(),
		"gen": gen,
	}
	if i.ttl > 0 {
		claims["exp"] = now.Add(i.ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(i.privateKey)
}

// authenticate verifies a token and returns its subject.
func (i *issuer) authenticate(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid jwt claims")
	}
	playerID, ok := claims["sub"].(string)
	if !ok || playerID == "" {
		return "", errors.New("missing sub in jwt")
	}
	gen, _ := claims["gen"].(float64)

	i.mu.Lock()
	current := i.generation
	i.mu.Unlock()
	if int(gen) < current {
		return "", ErrTokenRevoked
	}
	return playerID, nil
}

// revokeAll invalidates every token issued so far.
func (i *issuer) revokeAll() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.generation++
}
