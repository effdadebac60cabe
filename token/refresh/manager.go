package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jrsteele09/zhancare-client/internal/errors"
)

const (
	defaultTokenLength = 32 // bytes
	defaultExpiry      = 7 * 24 * time.Hour
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Manager handles refresh token creation, validation, and revocation
type Manager struct {
	repo   Repo
	expiry time.Duration
}

// NewManager creates a new refresh token manager. A zero expiry selects seven days.
func NewManager(repo Repo, expiry time.Duration) *Manager {
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	return &Manager{
		repo:   repo,
		expiry: expiry,
	}
}

// Create issues a new refresh token, replacing any previous one for the user.
func (m *Manager) Create(userID string) (string, error) {
	if existing, err := m.repo.GetByUserID(userID); err == nil && existing != nil {
		if err := m.repo.Delete(existing.Token); err != nil {
			return "", fmt.Errorf("failed to delete existing refresh token: %w", err)
		}
	}

	tokenBytes := make([]byte, defaultTokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    NowTimeFunc(),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return tokenStr, nil
}

// Validate returns the stored record for a live token.
func (m *Manager) Validate(token string) (*StoredRefreshToken, error) {
	if token == "" {
		return nil, errors.ErrMissingRefreshToken
	}
	rt, err := m.repo.Get(token)
	if err != nil || rt == nil {
		return nil, errors.ErrInvalidRefreshToken
	}
	if m.IsExpired(rt) {
		_ = m.repo.Delete(token)
		return nil, errors.ErrInvalidRefreshToken
	}
	return rt, nil
}

// Delete removes a refresh token from storage
func (m *Manager) Delete(token string) error {
	return m.repo.Delete(token)
}

// IsExpired checks if a refresh token has outlived the configured expiry
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return NowTimeFunc().Sub(rt.Iat) > m.expiry
}
