package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rahul4469/speciessight/internal/middleware"
	"github.com/rahul4469/speciessight/internal/models"
)

// SessionManager starts and revokes sessions. *models.SessionService
// implements it.
type SessionManager interface {
	Create(ctx context.Context, user *models.User) (*models.Session, error)
	Delete(ctx context.Context, token string) error
}

// sessionIssuer hands session tokens to the browser.
type sessionIssuer struct {
	sessions SessionManager
	cookie   middleware.SessionCookie
}

// signIn starts a session for user and sets the session cookie.
func (si sessionIssuer) signIn(w http.ResponseWriter, r *http.Request, user *models.User) error {
	session, err := si.sessions.Create(r.Context(), user)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	si.cookie.Set(w, session.Token, session.ExpiresAt)
	return nil
}

// signOut revokes the request's session, if any, and clears the cookie.
// The cookie is cleared even when revoking fails.
func (si sessionIssuer) signOut(w http.ResponseWriter, r *http.Request) error {
	defer si.cookie.Clear(w)

	token := si.cookie.Token(r)
	if token == "" {
		return nil
	}
	err := si.sessions.Delete(r.Context(), token)
	if err != nil && !errors.Is(err, models.ErrSessionNotFound) {
		return err
	}
	return nil
}
