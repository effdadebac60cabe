package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jrsteele09/zhancare-client/internal/errors"
)

// Introspection is what the client can learn about an access token by reading it.
// Opaque (non JWT) tokens cannot be introspected.
type Introspection struct {
	Subject   string
	Email     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// ExpiresIn returns the time left before expiry, or zero when already expired or unknown.
func (i *Introspection) ExpiresIn(now time.Time) time.Duration {
	if i == nil || i.ExpiresAt.IsZero() {
		return 0
	}
	if d := i.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Expired reports whether the exp claim is in the past. Tokens without exp never expire here.
func (i *Introspection) Expired(now time.Time) bool {
	return i != nil && !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Inspect decodes the claims of a JWT access token without verifying its signature.
// The backend is the authority on validity; this is only used for display and logging.
func Inspect(rawToken string) (*Introspection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.ErrInvalidToken
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "[token.Inspect] %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "[token.Inspect] unexpected claims type")
	}
	return fromClaims(claims), nil
}

func fromClaims(claims jwt.MapClaims) *Introspection {
	i := &Introspection{}
	i.Subject, _ = claims.GetSubject()
	if email, ok := claims["email"].(string); ok {
		i.Email = email
	}
	if jti, ok := claims["jti"].(string); ok {
		i.JTI = jti
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		i.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		i.ExpiresAt = exp.Time
	}
	return i
}
