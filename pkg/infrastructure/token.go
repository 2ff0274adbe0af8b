package infrastructure

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quackbench/quackbench/pkg/errors"
)

// TokenInfo summarizes the claims of a MotherDuck service token.
// MotherDuck tokens are JWTs; the signature is verified server-side,
// so this only decodes claims for operator display and early expiry
// warnings.
type TokenInfo struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token was expired at the given instant.
// Tokens without an exp claim never expire.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// InspectToken decodes a token without verifying its signature.
func InspectToken(token string) (TokenInfo, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, errors.Wrap(err, errors.CodeConfigInvalid, "token is not a valid JWT")
	}

	info := TokenInfo{}
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if iss, err := claims.GetIssuer(); err == nil {
		info.Issuer = iss
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}
