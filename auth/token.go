// Package auth is the identity verification collaborator: it issues
// and checks the credentials a session presents at handshake time.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 tokens with one shared secret.
// It implements contract.IVerifier.
type Tokens struct {
	secret   []byte
	lifetime time.Duration
}

func NewTokens(secret string, lifetime time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), lifetime: lifetime}
}

// Generate creates a signed JWT for a specific user.
func (t *Tokens) Generate(userID, email string) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "chat-relay",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses and validates the signature and expiration of a
// credential and returns the stable identity it names. A failed
// verification yields an error, never a partial identity.
func (t *Tokens) Verify(credential string) (string, error) {
	token, err := jwt.ParseWithClaims(credential, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", jwt.ErrSignatureInvalid
	}
	return claims.UserID, nil
}
