package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func operator(sub, role string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
}

func TestHS256RoundTrip(t *testing.T) {
	token, err := SignHS256(operator("ops-1", "scheduler", time.Hour), "s3cret")
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}
	got, err := Verifier{Secret: "s3cret"}.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.Subject != "ops-1" || got.Role != "scheduler" {
		t.Fatalf("claims mismatch: %+v", got)
	}
	if _, err := (Verifier{Secret: "other"}).Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: expected ErrInvalidToken, got %v", err)
	}
	if _, err := (Verifier{}).Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("disabled verifier: expected ErrInvalidToken, got %v", err)
	}
}

func TestExpiredAndMalformedTokens(t *testing.T) {
	v := Verifier{Secret: "k"}
	expired, _ := SignHS256(operator("ops-1", "admin", -time.Hour), "k")
	for _, tok := range []string{expired, "", "a.b", "!!.??.##"} {
		if _, err := v.Verify(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%q: expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func jwksServer(t *testing.T, kid string, pub *rsa.PublicKey, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": kid,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signRS256(t *testing.T, c Claims, key *rsa.PrivateKey, kid string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestVerifierRS256ViaKeySet(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var hits atomic.Int32
	srv := jwksServer(t, "kid-1", &key.PublicKey, &hits)
	v := Verifier{Keys: NewKeySet(srv.URL, time.Minute)}

	token := signRS256(t, operator("ops-2", "admin", time.Hour), key, "kid-1")
	for range 2 {
		got, err := v.Verify(context.Background(), token)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if got.Role != "admin" {
			t.Fatalf("expected admin role, got %+v", got)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("expected cached key set, fetched %d times", hits.Load())
	}

	unknown := signRS256(t, operator("ops-2", "admin", time.Hour), key, "kid-2")
	if _, err := v.Verify(context.Background(), unknown); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unknown kid: expected ErrInvalidToken, got %v", err)
	}

	hs, _ := SignHS256(operator("ops-3", "admin", time.Hour), "shared")
	if _, err := v.Verify(context.Background(), hs); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("HS256 must be refused without a secret, got %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	v := Verifier{Secret: "k"}
	var seen *Claims
	h := RequireRole(v, true, "scheduler")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(method, token string) int {
		req := httptest.NewRequest(method, "/api/v1/providers", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do(http.MethodGet, ""); code != http.StatusNoContent {
		t.Fatalf("GET without token: expected 204, got %d", code)
	}
	if code := do(http.MethodPut, ""); code != http.StatusUnauthorized {
		t.Fatalf("PUT without token: expected 401, got %d", code)
	}
	if code := do(http.MethodPut, "garbage"); code != http.StatusUnauthorized {
		t.Fatalf("PUT with bad token: expected 401, got %d", code)
	}
	agent, _ := SignHS256(operator("a", "agent", time.Hour), "k")
	if code := do(http.MethodPut, agent); code != http.StatusForbidden {
		t.Fatalf("PUT as agent: expected 403, got %d", code)
	}
	sched, _ := SignHS256(operator("s", "scheduler", time.Hour), "k")
	if code := do(http.MethodPut, sched); code != http.StatusNoContent {
		t.Fatalf("PUT as scheduler: expected 204, got %d", code)
	}
	if seen == nil || seen.Subject != "s" {
		t.Fatalf("claims not propagated: %+v", seen)
	}
}
