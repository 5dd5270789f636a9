package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// PostgresSessionStore keeps sessions in the sessions table.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

func NewPostgresSessionStore(pool *pgxpool.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

func (s *PostgresSessionStore) Insert(ctx context.Context, session *Session) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (user_id, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		session.UserID, session.TokenHash, session.CreatedAt, session.ExpiresAt,
	).Scan(&session.ID)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) ByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	session := &Session{TokenHash: tokenHash}
	err := s.pool.QueryRow(ctx, `
		SELECT sessions.id, sessions.user_id, users.email, sessions.created_at, sessions.expires_at
		FROM sessions
		JOIN users ON users.id = sessions.user_id
		WHERE sessions.token_hash = $1`, tokenHash,
	).Scan(&session.ID, &session.UserID, &session.UserEmail, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

func (s *PostgresSessionStore) Extend(ctx context.Context, session *Session, expiresAt time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET expires_at = $1 WHERE token_hash = $2`, expiresAt, session.TokenHash)
	if err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresSessionStore) Delete(ctx context.Context, tokenHash string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RedisSessionStore keeps each session as a JSON value whose TTL tracks
// the session expiry, so Redis evicts dead sessions on its own.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: "speciessight:session:"}
}

func (s *RedisSessionStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

func (s *RedisSessionStore) Insert(ctx context.Context, session *Session) error {
	_, err := s.write(ctx, session, session.ExpiresAt, "")
	return err
}

func (s *RedisSessionStore) ByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	raw, err := s.client.Get(ctx, s.key(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// Extend rewrites the record only if it still exists (SET XX), so a
// concurrent Delete is never undone.
func (s *RedisSessionStore) Extend(ctx context.Context, session *Session, expiresAt time.Time) error {
	written, err := s.write(ctx, session, expiresAt, "XX")
	if err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}
	if !written {
		return ErrSessionNotFound
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, tokenHash string) error {
	n, err := s.client.Del(ctx, s.key(tokenHash)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// write stores the record with a TTL matching expiresAt. mode is a SET
// condition ("", "NX" or "XX"); written is false when it was not met.
func (s *RedisSessionStore) write(ctx context.Context, session *Session, expiresAt time.Time, mode string) (bool, error) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return false, ErrSessionExpired
	}

	record := *session
	record.Token = ""
	record.ExpiresAt = expiresAt
	raw, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("failed to encode session: %w", err)
	}

	err = s.client.SetArgs(ctx, s.key(session.TokenHash), raw, redis.SetArgs{Mode: mode, TTL: ttl}).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to store session: %w", err)
	}
	return true, nil
}

// Health pings Redis.
func (s *RedisSessionStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
