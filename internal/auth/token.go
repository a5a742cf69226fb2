// Package auth admits connections: it verifies the signed bearer token a
// client presents and checks the request origin.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongType    = errors.New("token type mismatch")
)

// Claims is what a game token carries. DisplayName and Color are optional.
type Claims struct {
	UserID      string `json:"userId"`
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName,omitempty"`
	Color       string `json:"color,omitempty"`
	Type        string `json:"type"`
	jwt.RegisteredClaims
}

// Verifier checks HMAC-signed tokens issued by the external auth service.
type Verifier struct {
	secret    []byte
	tokenType string
	parser    *jwt.Parser
}

func NewVerifier(secret, tokenType string) *Verifier {
	return &Verifier{
		secret:    []byte(secret),
		tokenType: tokenType,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(5*time.Second),
		),
	}
}

// VerifyToken validates signature, expiry and the type discriminator, and
// requires the user and room bindings to be present.
func (v *Verifier) VerifyToken(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Type != v.tokenType {
		return nil, fmt.Errorf("%w: got %q", ErrWrongType, claims.Type)
	}
	if claims.UserID == "" || claims.RoomID == "" {
		return nil, fmt.Errorf("%w: userId and roomId are required", ErrInvalidToken)
	}
	return claims, nil
}

// Sign issues a token the way the auth service does. The server never calls
// it; tools and tests do.
func Sign(secret string, c Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	if c.IssuedAt == nil {
		c.IssuedAt = jwt.NewNumericDate(now)
	}
	if c.ExpiresAt == nil {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}
