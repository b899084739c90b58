/**
 * @description
 * This file contains custom middleware for the HTTP router. The auth
 * middleware validates bearer JWTs against the identity provider's JWKS and
 * places the caller's authority (the token subject) on the request context.
 * The same verification path is reused for the provider co-authorization
 * token carried in the finalize request body.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: JWT parsing and validation.
 */

package api

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthorityContextKey is a custom type for the context key to avoid collisions.
type AuthorityContextKey string

const authorityKey AuthorityContextKey = "authority"

// AuthConfig carries the token verification settings. Audience and Issuer are
// enforced only when non-empty.
type AuthConfig struct {
	JWKSURL  string
	Audience string
	Issuer   string
}

// AuthMiddleware creates a middleware that validates bearer JWTs against the
// identity provider's JWKS endpoint.
func AuthMiddleware(auth AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			subject, err := verifyBearerToken(auth, tokenString)
			if err != nil {
				http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authorityKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// verifyBearerToken parses and validates a JWT and returns its subject claim.
// It is used both for the primary Authorization header and for the provider
// co-authorization token on withdrawal finalization.
func verifyBearerToken(auth AuthConfig, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid not found in token header")
		}

		publicKey, err := getPublicKeyFromJWKS(auth.JWKSURL, kid)
		if err != nil {
			return nil, fmt.Errorf("failed to get public key: %w", err)
		}
		return publicKey, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	if auth.Audience != "" {
		if aud, ok := claims["aud"].(string); !ok || aud != auth.Audience {
			return "", fmt.Errorf("invalid audience")
		}
	}
	if auth.Issuer != "" {
		if iss, ok := claims["iss"].(string); !ok || iss != auth.Issuer {
			return "", fmt.Errorf("invalid issuer")
		}
	}

	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return "", fmt.Errorf("subject not found in token")
	}
	return subject, nil
}

// getPublicKeyFromJWKS fetches the public key from the identity provider's JWKS endpoint
func getPublicKeyFromJWKS(jwksURL, kid string) (interface{}, error) {
	// This is a simplified implementation
	// In production, you should cache the JWKS and implement proper key rotation
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(jwksURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, err
	}

	for _, key := range jwks.Keys {
		if key.Kid == kid {
			return parseRSAPublicKey(key.N, key.E)
		}
	}

	return nil, fmt.Errorf("key with kid %s not found", kid)
}

// parseRSAPublicKey parses RSA public key from modulus and exponent
func parseRSAPublicKey(n, e string) (interface{}, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var exp uint64
	if len(eb) == 3 {
		// Common case for 65537
		exp = uint64(eb[0])<<16 | uint64(eb[1])<<8 | uint64(eb[2])
	} else {
		for _, b := range eb {
			exp = (exp << 8) | uint64(b)
		}
	}

	nInt := new(big.Int).SetBytes(nb)
	pub := &rsa.PublicKey{
		N: nInt,
		E: int(exp),
	}
	return pub, nil
}

// GetAuthority retrieves the authenticated authority from the request context.
// Handlers should use this function to get the caller's identity.
func GetAuthority(ctx context.Context) (string, bool) {
	authority, ok := ctx.Value(authorityKey).(string)
	return authority, ok
}
