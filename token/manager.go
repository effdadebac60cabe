package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/zhancare-client/internal/errors"
)

const defaultAccessTokenExpiry = 15 * time.Minute

// Manager issues and verifies signed access tokens for the development backend.
type Manager struct {
	signer            Signer
	revoked           RevokedTokenCache
	accessTokenExpiry time.Duration
	nowFunc           func() time.Time
}

type ManagerOption func(*Manager)

// WithNowFunc overrides the clock used for iat/exp and for verification.
func WithNowFunc(f func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = f
	}
}

func WithAccessTokenExpiry(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.accessTokenExpiry = d
		}
	}
}

func WithRevokedCache(c RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revoked = c
	}
}

func NewManager(signer Signer, opts ...ManagerOption) *Manager {
	m := &Manager{
		signer:            signer,
		accessTokenExpiry: defaultAccessTokenExpiry,
		nowFunc:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.revoked == nil {
		m.revoked = NewRevokedTokenCache(WithRevokedNowFunc(m.nowFunc))
	}
	return m
}

// CreateAccessToken signs a short lived access token for the user.
func (m *Manager) CreateAccessToken(userID, email string) (string, error) {
	now := m.nowFunc()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(m.accessTokenExpiry).Unix(),
		"jti":   uuid.New().String(),
	}
	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "Manager.CreateAccessToken Sign")
	}
	return signed, nil
}

// Verify checks signature, expiry and revocation of an access token.
func (m *Manager) Verify(rawToken string) (*Introspection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithExpirationRequired(),
	)
	parsed, err := parser.Parse(rawToken, m.signer.GetVerificationKey)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "Manager.Verify %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.ErrInvalidToken
	}
	info := fromClaims(claims)
	if info.JTI != "" && m.revoked.IsRevoked(info.JTI) {
		return nil, apperrors.ErrTokenRevoked
	}
	return info, nil
}

// Revoke invalidates an access token before its natural expiry.
func (m *Manager) Revoke(rawToken string) error {
	info, err := m.Verify(rawToken)
	if err != nil {
		return err
	}
	if info.JTI == "" {
		return apperrors.ErrInvalidToken
	}
	return m.revoked.Add(info.JTI, info.ExpiresAt)
}
