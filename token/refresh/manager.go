package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jrsteele09/go-course-server/internal/config"
	apperrors "github.com/jrsteele09/go-course-server/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo   Repo
	config config.AuthConfig
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, cfg config.AuthConfig) *Manager {
	return &Manager{
		repo:   repo,
		config: cfg,
	}
}

// Create generates a new refresh token and stores it
func (m *Manager) Create(userID string) (string, error) {
	// Delete existing refresh token for this user (single refresh token per user)
	if existingToken, err := m.repo.GetByUserID(userID); err == nil && existingToken != nil {
		if err := m.repo.Delete(existingToken.Token); err != nil {
			return "", fmt.Errorf("failed to delete existing refresh token: %w", err)
		}
	}

	tokenBytes := make([]byte, m.config.GetRefreshTokenLength())
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

// Rotate consumes a refresh token and issues a replacement for the same user
func (m *Manager) Rotate(token string) (userID, newToken string, err error) {
	rt, err := m.repo.Get(token)
	if err != nil {
		return "", "", apperrors.ErrInvalidRefreshToken
	}
	if m.IsExpired(rt) {
		_ = m.repo.Delete(token)
		return "", "", apperrors.ErrRefreshTokenExpired
	}
	newToken, err = m.Create(rt.UserID)
	if err != nil {
		return "", "", err
	}
	return rt.UserID, newToken, nil
}

// Delete removes a refresh token from storage
func (m *Manager) Delete(token string) error {
	return m.repo.Delete(token)
}

// DeleteForUser removes whatever refresh token the user holds
func (m *Manager) DeleteForUser(userID string) error {
	rt, err := m.repo.GetByUserID(userID)
	if err != nil {
		return nil // nothing to revoke
	}
	return m.repo.Delete(rt.Token)
}

// IsExpired checks if a refresh token has expired
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return NowTimeFunc().Sub(rt.Iat) > m.config.GetRefreshTokenExpiry()
}
