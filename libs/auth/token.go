package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identifies the operator calling a booking endpoint.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	// Tenant scopes an operator to one provider pool. Empty means all.
	Tenant string `json:"tenant,omitempty"`
}

// SignHS256 issues a shared-secret token. Used by tooling and tests.
func SignHS256(c Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

// Verifier accepts HS256 tokens signed with Secret and, when Keys is set,
// RS256 tokens whose kid resolves in the key set.
type Verifier struct {
	Secret string
	Keys   *KeySet
}

func (v Verifier) Enabled() bool {
	return v.Secret != "" || v.Keys != nil
}

func (v Verifier) methods() []string {
	var out []string
	if v.Secret != "" {
		out = append(out, jwt.SigningMethodHS256.Alg())
	}
	if v.Keys != nil {
		out = append(out, jwt.SigningMethodRS256.Alg())
	}
	return out
}

func (v Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	methods := v.methods()
	if len(methods) == 0 {
		return nil, ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods(methods),
		jwt.WithLeeway(30*time.Second),
	)
	claims := &Claims{}
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() == jwt.SigningMethodHS256.Alg() {
			return []byte(v.Secret), nil
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrKeyNotFound
		}
		return v.Keys.Key(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
