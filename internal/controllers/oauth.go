package controllers

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/rahul4469/speciessight/internal/crypto"
	"github.com/rahul4469/speciessight/internal/middleware"
	"github.com/rahul4469/speciessight/internal/models"
	"github.com/rahul4469/speciessight/internal/services"
)

const (
	oauthStateSession = "speciessight_oauth"
	oauthStateMaxAge  = 10 * 60 // 10 minutes
)

// OAuthAccounts links provider identities to local users.
// *models.UserService implements it.
type OAuthAccounts interface {
	UpsertOAuth(ctx context.Context, identity models.OAuthIdentity, encryptedToken string) (*models.User, error)
}

// OAuthController handles social sign-in for every configured provider.
type OAuthController struct {
	providers  map[string]services.IdentityProvider
	accounts   OAuthAccounts
	issuer     sessionIssuer
	encryptor  *crypto.Encryptor
	stateStore sessions.Store
	logger     *zap.Logger
}

func NewOAuthController(
	providers []services.IdentityProvider,
	accounts OAuthAccounts,
	sessionManager SessionManager,
	cookie middleware.SessionCookie,
	encryptor *crypto.Encryptor,
	stateStore sessions.Store,
	logger *zap.Logger,
) *OAuthController {
	byID := make(map[string]services.IdentityProvider, len(providers))
	for _, p := range providers {
		byID[p.ID()] = p
	}
	return &OAuthController{
		providers:  byID,
		accounts:   accounts,
		issuer:     sessionIssuer{sessions: sessionManager, cookie: cookie},
		encryptor:  encryptor,
		stateStore: stateStore,
		logger:     logger.Named("oauth"),
	}
}

// NewStateStore builds the signed cookie store holding OAuth state between
// the redirect to the provider and the callback.
func NewStateStore(hashKey []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(hashKey)
	store.Options = &sessions.Options{
		Path:     "/auth",
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Links lists the configured providers for the sign-in page.
func Links(providers []services.IdentityProvider) []ProviderLink {
	links := make([]ProviderLink, 0, len(providers))
	for _, p := range providers {
		links = append(links, ProviderLink{ID: p.ID(), Name: p.Name()})
	}
	return links
}

// Start redirects to the provider's consent page.
// GET /auth/{provider}
func (c *OAuthController) Start(w http.ResponseWriter, r *http.Request) {
	provider, ok := c.providers[chi.URLParam(r, "provider")]
	if !ok {
		http.Redirect(w, r, "/auth?error=unknown_provider", http.StatusSeeOther)
		return
	}

	// Generate state token to prevent CSRF
	state, err := generateState()
	if err != nil {
		c.logger.Error("failed to generate state", zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// A stale or tampered cookie just yields a fresh session
	session, _ := c.stateStore.Get(r, oauthStateSession)
	session.Values["state"] = state
	session.Values["provider"] = provider.ID()
	if err := session.Save(r, w); err != nil {
		c.logger.Error("failed to save oauth state", zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
}

// Callback finishes sign-in once the provider redirects back.
// GET /auth/callback/{provider}
func (c *OAuthController) Callback(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")
	provider, ok := c.providers[providerID]
	if !ok {
		http.Redirect(w, r, "/auth?error=unknown_provider", http.StatusSeeOther)
		return
	}
	logger := c.logger.With(zap.String("provider", providerID))

	if !c.consumeState(w, r, providerID) {
		logger.Warn("oauth state mismatch")
		http.Redirect(w, r, "/auth?error=oauth_failed", http.StatusSeeOther)
		return
	}

	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		logger.Info("provider denied sign-in", zap.String("error", errParam), zap.String("description", query.Get("error_description")))
		http.Redirect(w, r, "/auth?error=oauth_denied", http.StatusSeeOther)
		return
	}

	code := query.Get("code")
	if code == "" {
		logger.Warn("missing authorization code")
		http.Redirect(w, r, "/auth?error=oauth_failed", http.StatusSeeOther)
		return
	}

	token, err := provider.Exchange(r.Context(), code)
	if err != nil {
		logger.Error("failed to exchange code for token", zap.Error(err))
		http.Redirect(w, r, "/auth?error=oauth_failed", http.StatusSeeOther)
		return
	}

	identity, err := provider.Identity(r.Context(), token)
	if err != nil {
		if errors.Is(err, services.ErrNoVerifiedEmail) {
			http.Redirect(w, r, "/auth?error=no_email", http.StatusSeeOther)
			return
		}
		logger.Error("failed to load provider profile", zap.Error(err))
		http.Redirect(w, r, "/auth?error=oauth_failed", http.StatusSeeOther)
		return
	}

	// Provider tokens are kept sealed and bound to the identity they belong to
	sealed, err := c.encryptor.Encrypt(token.AccessToken, identity.Provider+":"+identity.ProviderUserID)
	if err != nil {
		logger.Error("failed to encrypt token", zap.Error(err))
		http.Redirect(w, r, "/auth?error=oauth_failed", http.StatusSeeOther)
		return
	}

	user, err := c.accounts.UpsertOAuth(r.Context(), *identity, sealed)
	if err != nil {
		if errors.Is(err, models.ErrInvalidEmail) {
			http.Redirect(w, r, "/auth?error=no_email", http.StatusSeeOther)
			return
		}
		logger.Error("failed to save user", zap.Error(err))
		http.Redirect(w, r, "/auth?error=oauth_failed", http.StatusSeeOther)
		return
	}

	if err := c.issuer.signIn(w, r, user); err != nil {
		logger.Error("session start failed", zap.Int64("user_id", user.ID), zap.Error(err))
		http.Redirect(w, r, "/auth?error=session_failed", http.StatusSeeOther)
		return
	}

	logger.Info("user signed in", zap.Int64("user_id", user.ID))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// consumeState checks the callback's state against the stored one and
// deletes it so it cannot be replayed.
func (c *OAuthController) consumeState(w http.ResponseWriter, r *http.Request, providerID string) bool {
	session, err := c.stateStore.Get(r, oauthStateSession)
	if err != nil {
		return false
	}
	expected, _ := session.Values["state"].(string)
	storedProvider, _ := session.Values["provider"].(string)

	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		c.logger.Warn("failed to clear oauth state", zap.Error(err))
	}

	got := r.URL.Query().Get("state")
	return expected != "" && storedProvider == providerID &&
		subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// generateState creates a random state string for CSRF protection.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
