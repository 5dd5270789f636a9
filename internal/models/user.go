package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// Auth providers a user can sign in with.
const (
	ProviderEmail  = "email"
	ProviderGitHub = "github"
	ProviderGoogle = "google"
)

type User struct {
	ID             int64      `json:"id"`
	Email          string     `json:"email"`
	DisplayName    string     `json:"display_name"`
	PasswordHash   *string    `json:"-"`
	Provider       string     `json:"provider"`
	ProviderUserID *string    `json:"-"`
	OAuthToken     *string    `json:"-"` // encrypted
	AvatarURL      *string    `json:"avatar_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

// Name is what the header shows for the user.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// OAuthIdentity is the profile an OAuth provider returned for a sign-in.
type OAuthIdentity struct {
	Provider       string
	ProviderUserID string
	Email          string
	DisplayName    string
	AvatarURL      string
}

type UserService struct {
	pool       *pgxpool.Pool
	bcryptCost int
}

func NewUserService(pool *pgxpool.Pool, bcryptCost int) *UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{pool: pool, bcryptCost: bcryptCost}
}

const userColumns = `id, email, display_name, password_hash, provider, provider_user_id,
	oauth_token, avatar_url, created_at, updated_at, last_login`

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.Provider,
		&user.ProviderUserID,
		&user.OAuthToken,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

var validate = validator.New()

// NormalizeEmail lower-cases and trims an email and checks its format.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Create registers an email/password user.
func (us *UserService) Create(ctx context.Context, email, password string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < 8 {
		return nil, ErrPasswordTooShort
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), us.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (email, display_name, password_hash, provider)
		VALUES ($1, '', $2, $3)
		RETURNING ` + userColumns

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	user, err := scanUser(us.pool.QueryRow(ctx, query, email, string(hashedBytes), ProviderEmail))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Authenticate checks an email/password pair.
func (us *UserService) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := us.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == nil {
		// OAuth-only account
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := us.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func (us *UserService) ByID(ctx context.Context, id int64) (*User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	user, err := scanUser(us.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	return user, err
}

func (us *UserService) ByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	user, err := scanUser(us.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to load user by email: %w", err)
	}
	return user, err
}

// UpsertOAuth creates or updates the user behind an OAuth identity.
// Identities are matched on email, so an existing email account is linked
// rather than duplicated.
func (us *UserService) UpsertOAuth(ctx context.Context, identity OAuthIdentity, encryptedToken string) (*User, error) {
	email, err := NormalizeEmail(identity.Email)
	if err != nil {
		return nil, fmt.Errorf("%s account has no usable email: %w", identity.Provider, err)
	}

	query := `
		INSERT INTO users (email, display_name, provider, provider_user_id, oauth_token, avatar_url, last_login)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NOW())
		ON CONFLICT (email) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			provider = EXCLUDED.provider,
			provider_user_id = EXCLUDED.provider_user_id,
			oauth_token = EXCLUDED.oauth_token,
			avatar_url = COALESCE(EXCLUDED.avatar_url, users.avatar_url),
			last_login = NOW(),
			updated_at = NOW()
		RETURNING ` + userColumns

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	user, err := scanUser(us.pool.QueryRow(ctx, query,
		email,
		identity.DisplayName,
		identity.Provider,
		identity.ProviderUserID,
		encryptedToken,
		identity.AvatarURL,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert %s user: %w", identity.Provider, err)
	}
	return user, nil
}

func (us *UserService) UpdateLastLogin(ctx context.Context, userID int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := us.pool.Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
