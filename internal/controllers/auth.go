package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/rahul4469/speciessight/internal/middleware"
	"github.com/rahul4469/speciessight/internal/models"
)

// Accounts registers and authenticates email/password users.
// *models.UserService implements it.
type Accounts interface {
	Create(ctx context.Context, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// AuthController handles the sign-in page, email sign-in/up and sign-out.
type AuthController struct {
	accounts  Accounts
	issuer    sessionIssuer
	template  Template
	providers []ProviderLink
	logger    *zap.Logger
}

// ProviderLink is a social sign-in button on the auth page.
type ProviderLink struct {
	ID   string
	Name string
}

// AuthPageData holds data for the auth page template.
type AuthPageData struct {
	Providers []ProviderLink
	Email     string
}

func NewAuthController(
	accounts Accounts,
	sessions SessionManager,
	cookie middleware.SessionCookie,
	tpl Template,
	providers []ProviderLink,
	logger *zap.Logger,
) *AuthController {
	return &AuthController{
		accounts:  accounts,
		issuer:    sessionIssuer{sessions: sessions, cookie: cookie},
		template:  tpl,
		providers: providers,
		logger:    logger.Named("auth"),
	}
}

// authErrors maps the ?error= codes set by redirects to user-facing text.
var authErrors = map[string]string{
	"oauth_failed":     "Sign-in with that provider failed. Please try again.",
	"oauth_denied":     "Sign-in was cancelled.",
	"no_email":         "Your account with that provider has no verified email address.",
	"unknown_provider": "That sign-in provider is not available.",
	"session_failed":   "We could not sign you in. Please try again.",
}

// GetAuth renders the sign-in page.
// GET /auth
func (ac *AuthController) GetAuth(w http.ResponseWriter, r *http.Request) {
	data := pageData(r, "Sign in", AuthPageData{Providers: ac.providers})
	data.Error = authErrors[r.URL.Query().Get("error")]
	if r.URL.Query().Get("msg") == "signed_out" {
		data.Success = "You have been signed out."
	}
	ac.template.ExecuteHTTPWithStatus(w, r, http.StatusOK, data)
}

// PostSignIn signs in an existing email user.
// POST /auth/signin
func (ac *AuthController) PostSignIn(w http.ResponseWriter, r *http.Request) {
	email, password, ok := ac.credentials(w, r)
	if !ok {
		return
	}

	user, err := ac.accounts.Authenticate(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) || errors.Is(err, models.ErrUserNotFound) {
			ac.renderError(w, r, http.StatusUnauthorized, "Invalid email or password", email)
			return
		}
		ac.logger.Error("sign-in failed", zap.Error(err))
		ac.renderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.", email)
		return
	}

	ac.finish(w, r, user)
}

// PostSignUp registers a new email user and signs them in.
// POST /auth/signup
func (ac *AuthController) PostSignUp(w http.ResponseWriter, r *http.Request) {
	email, password, ok := ac.credentials(w, r)
	if !ok {
		return
	}

	user, err := ac.accounts.Create(r.Context(), email, password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmailAlreadyExists):
			ac.renderError(w, r, http.StatusConflict, "An account with that email already exists", email)
		case errors.Is(err, models.ErrInvalidEmail), errors.Is(err, models.ErrPasswordTooShort):
			ac.renderError(w, r, http.StatusUnprocessableEntity, capitalize(err.Error()), email)
		default:
			ac.logger.Error("sign-up failed", zap.Error(err))
			ac.renderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.", email)
		}
		return
	}

	ac.logger.Info("user registered", zap.Int64("user_id", user.ID))
	ac.finish(w, r, user)
}

// PostSignOut revokes the session.
// POST /signout
func (ac *AuthController) PostSignOut(w http.ResponseWriter, r *http.Request) {
	if err := ac.issuer.signOut(w, r); err != nil {
		ac.logger.Warn("failed to revoke session", zap.Error(err))
	}
	http.Redirect(w, r, "/auth?msg=signed_out", http.StatusSeeOther)
}

func (ac *AuthController) credentials(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	if err := r.ParseForm(); err != nil {
		ac.renderError(w, r, http.StatusBadRequest, "Failed to parse form", "")
		return "", "", false
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if email == "" {
		ac.renderError(w, r, http.StatusUnprocessableEntity, "Email is required", email)
		return "", "", false
	}
	if password == "" {
		ac.renderError(w, r, http.StatusUnprocessableEntity, "Password is required", email)
		return "", "", false
	}
	return email, password, true
}

func (ac *AuthController) finish(w http.ResponseWriter, r *http.Request, user *models.User) {
	if err := ac.issuer.signIn(w, r, user); err != nil {
		ac.logger.Error("session start failed", zap.Int64("user_id", user.ID), zap.Error(err))
		ac.renderError(w, r, http.StatusInternalServerError, authErrors["session_failed"], user.Email)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ac *AuthController) renderError(w http.ResponseWriter, r *http.Request, status int, msg, email string) {
	data := pageData(r, "Sign in", AuthPageData{Providers: ac.providers, Email: email})
	data.Error = msg
	ac.template.ExecuteHTTPWithStatus(w, r, status, data)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
