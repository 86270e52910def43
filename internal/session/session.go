// Package session defines the session-validation contract consumed by the
// message receiver, plus a JWT-backed implementation. The trusted user
// identity always comes from the validated token, never from client fields.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid access token")
)

// Validator is the contract the receiver authenticates against.
type Validator interface {
	Validate(ctx context.Context, token string) bool
	UserIDFor(ctx context.Context, token string) (uuid.UUID, error)
}

// JWTValidator verifies HMAC-signed access tokens carrying the user id in
// the subject claim.
type JWTValidator struct {
	secret []byte
}

// NewJWTValidator creates a validator with the given shared secret.
func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret)}
}

func (v *JWTValidator) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Validate reports whether the token is a currently valid session.
func (v *JWTValidator) Validate(_ context.Context, token string) bool {
	_, err := v.parse(token)
	return err == nil
}

// UserIDFor resolves the trusted user identity of a validated session.
func (v *JWTValidator) UserIDFor(_ context.Context, token string) (uuid.UUID, error) {
	claims, err := v.parse(token)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed subject", ErrInvalidToken)
	}
	return id, nil
}
