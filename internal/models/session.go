package models

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

type Session struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	UserEmail string `json:"user_email"`
	// Token is only set when creating a new session. When looking up a session
	// it is left empty, as only the hash of a token is stored.
	Token     string    `json:"-"`
	TokenHash string    `json:"token_hash"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

const (
	// MinBytesPerToken is the minimum number of bytes for a session token
	MinBytesPerToken = 32
	// DefaultTokenLength is the default token length (32 bytes = 256 bits)
	DefaultTokenLength = 32
	// SessionDuration is how long a session lasts (24 hours)
	SessionDuration = 24 * time.Hour
	// RefreshWindow is how close to expiry a session gets extended
	RefreshWindow = time.Hour
)

// SessionStore persists session records keyed by token hash.
type SessionStore interface {
	Insert(ctx context.Context, session *Session) error
	ByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	Extend(ctx context.Context, session *Session, expiresAt time.Time) error
	Delete(ctx context.Context, tokenHash string) error
}

type SessionService struct {
	store SessionStore

	BytesPerToken   int
	SessionDuration time.Duration
	RefreshWindow   time.Duration

	now func() time.Time
}

func NewSessionService(store SessionStore) *SessionService {
	return &SessionService{
		store:           store,
		BytesPerToken:   DefaultTokenLength,
		SessionDuration: SessionDuration,
		RefreshWindow:   RefreshWindow,
		now:             time.Now,
	}
}

// Create starts a new session for the user. The returned session carries
// the raw token; only its hash is stored.
func (ss *SessionService) Create(ctx context.Context, user *User) (*Session, error) {
	bytesPerToken := ss.BytesPerToken
	if bytesPerToken < MinBytesPerToken {
		bytesPerToken = MinBytesPerToken
	}
	token, err := ss.generateToken(bytesPerToken)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	now := ss.now()
	session := &Session{
		UserID:    user.ID,
		UserEmail: user.Email,
		Token:     token,
		TokenHash: ss.hash(token),
		CreatedAt: now,
		ExpiresAt: now.Add(ss.SessionDuration),
	}

	if err := ss.store.Insert(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// GetSession resolves a raw token to a live session.
func (ss *SessionService) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	session, err := ss.store.ByTokenHash(ctx, ss.hash(token))
	if err != nil {
		return nil, err
	}
	if session.Expired(ss.now()) {
		return nil, ErrSessionExpired
	}
	session.Token = token
	return session, nil
}

// RefreshSession extends a session that is inside the refresh window.
// Sessions further from expiry are returned unchanged. The boolean reports
// whether the expiry moved, so callers know to re-issue the cookie.
func (ss *SessionService) RefreshSession(ctx context.Context, session *Session) (*Session, bool, error) {
	now := ss.now()
	if session.Expired(now) {
		return nil, false, ErrSessionExpired
	}
	if session.ExpiresAt.Sub(now) > ss.RefreshWindow {
		return session, false, nil
	}

	expiresAt := now.Add(ss.SessionDuration)
	if err := ss.store.Extend(ctx, session, expiresAt); err != nil {
		return nil, false, fmt.Errorf("refresh session: %w", err)
	}

	refreshed := *session
	refreshed.ExpiresAt = expiresAt
	return &refreshed, true, nil
}

// Delete revokes the session behind a raw token.
func (ss *SessionService) Delete(ctx context.Context, token string) error {
	err := ss.store.Delete(ctx, ss.hash(token))
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return err
}

func (ss *SessionService) generateToken(length int) (string, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to read random: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// hash is what gets stored; the raw token never leaves the cookie.
func (ss *SessionService) hash(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base64.URLEncoding.EncodeToString(hash[:])
}
