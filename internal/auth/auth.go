// Package auth verifies the HMAC-signed bearer tokens that guard the dashboard API.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ScopeDashboardRead grants access to the read-only dashboard endpoints.
const ScopeDashboardRead = "dashboard:read"

// Config holds signer verification parameters.
type Config struct {
	Secret string
	Issuer string
	// AllowedSubjects restricts access to the listed subjects or emails. Empty admits any valid token.
	AllowedSubjects []string
	// RequiredScope, when set, must be present in the token's scopes.
	RequiredScope string
}

// Claims represents the payload extracted from a JWT.
type Claims struct {
	Subject   string
	Email     string
	Scopes    map[string]struct{}
	ExpiresAt time.Time
}

var (
	// ErrMissingToken is returned when the Authorization header is absent.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken wraps parsing and validation errors.
	ErrInvalidToken = errors.New("invalid bearer token")
	// ErrForbidden is returned for valid tokens that are not on the allow-list or lack the required scope.
	ErrForbidden = errors.New("access denied")
)

// Parse validates a JWT and returns normalized claims.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return &Claims{
		Subject:   subject,
		Email:     strings.ToLower(email),
		Scopes:    normalizeScopes(claims["scopes"]),
		ExpiresAt: exp.Time,
	}, nil
}

// Authorize applies the allow-list and scope requirements to parsed claims.
func Authorize(claims *Claims, cfg Config) error {
	if claims == nil {
		return ErrInvalidToken
	}
	if cfg.RequiredScope != "" && !claims.HasScope(cfg.RequiredScope) {
		return fmt.Errorf("%w: missing scope %s", ErrForbidden, cfg.RequiredScope)
	}
	if len(cfg.AllowedSubjects) == 0 {
		return nil
	}
	for _, allowed := range cfg.AllowedSubjects {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == strings.ToLower(claims.Subject) || (claims.Email != "" && allowed == claims.Email) {
			return nil
		}
	}
	return ErrForbidden
}

func normalizeScopes(value interface{}) map[string]struct{} {
	out := make(map[string]struct{})
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok && str != "" {
				out[str] = struct{}{}
			}
		}
	case []string:
		for _, str := range v {
			if str != "" {
				out[str] = struct{}{}
			}
		}
	case string:
		for _, str := range strings.Fields(v) {
			out[str] = struct{}{}
		}
	}
	return out
}

// HasScope reports whether the claim set includes the provided scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Scopes[scope]
	return ok
}
