package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	appctx "github.com/rahul4469/speciessight/context"
	"github.com/rahul4469/speciessight/internal/models"
)

// SessionProvider resolves and refreshes sessions. *models.SessionService
// implements it.
type SessionProvider interface {
	GetSession(ctx context.Context, token string) (*models.Session, error)
	RefreshSession(ctx context.Context, session *models.Session) (*models.Session, bool, error)
}

// UserLookup loads the account behind a session.
type UserLookup interface {
	ByID(ctx context.Context, id int64) (*models.User, error)
}

type GateConfig struct {
	Cookie     SessionCookie
	SignInPath string // public, along with everything below it
	HomePath   string
	// BypassPaths skip the gate entirely. Entries ending in "/" match as
	// prefixes, others match exactly.
	BypassPaths []string
}

// DefaultGateConfig is the route layout the server uses.
func DefaultGateConfig(cookie SessionCookie) GateConfig {
	return GateConfig{
		Cookie:      cookie,
		SignInPath:  "/auth",
		HomePath:    "/",
		BypassPaths: []string{"/static/", "/favicon.ico", "/healthz", "/metrics"},
	}
}

// AccessGate decides per request whether to redirect or pass through:
//
//	no session, protected path  -> redirect to SignInPath
//	session, SignInPath or below -> redirect to HomePath
//	anything else               -> forward
//
// A session inside its refresh window is extended and the cookie re-issued
// on whichever response is sent.
type AccessGate struct {
	sessions SessionProvider
	users    UserLookup
	cfg      GateConfig
	logger   *zap.Logger
}

// NewAccessGate builds the gate. users may be nil, in which case the user in
// the request context carries only the id and email held by the session.
func NewAccessGate(sessions SessionProvider, users UserLookup, cfg GateConfig, logger *zap.Logger) *AccessGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessGate{
		sessions: sessions,
		users:    users,
		cfg:      cfg,
		logger:   logger.Named("gate"),
	}
}

func (g *AccessGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if g.bypassed(path) {
			next.ServeHTTP(w, r)
			return
		}

		user := g.resolve(w, r)
		signIn := g.isSignInPath(path)

		switch {
		case user == nil && !signIn:
			http.Redirect(w, r, g.cfg.SignInPath, http.StatusSeeOther)
			return
		case user != nil && signIn:
			http.Redirect(w, r, g.cfg.HomePath, http.StatusSeeOther)
			return
		}

		if user != nil {
			r = r.WithContext(appctx.ContextSetUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// resolve returns the user behind a live session, or nil. Cookies that can
// never become valid again are cleared; transient store failures leave the
// cookie alone.
func (g *AccessGate) resolve(w http.ResponseWriter, r *http.Request) *models.User {
	token := g.cfg.Cookie.Token(r)
	if token == "" {
		return nil
	}
	ctx := r.Context()

	session, err := g.sessions.GetSession(ctx, token)
	if err != nil {
		if isInvalidSession(err) {
			g.cfg.Cookie.Clear(w)
		} else {
			g.logger.Error("session lookup failed", zap.Error(err))
		}
		return nil
	}

	refreshed, extended, err := g.sessions.RefreshSession(ctx, session)
	switch {
	case err != nil && isInvalidSession(err):
		g.cfg.Cookie.Clear(w)
		return nil
	case err != nil:
		// the session is still valid, it just was not extended this time
		g.logger.Warn("session refresh failed", zap.Int64("user_id", session.UserID), zap.Error(err))
	case extended:
		g.cfg.Cookie.Set(w, token, refreshed.ExpiresAt)
		session = refreshed
	}

	if g.users == nil {
		return &models.User{ID: session.UserID, Email: session.UserEmail}
	}
	user, err := g.users.ByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			g.cfg.Cookie.Clear(w)
		} else {
			g.logger.Error("user lookup failed", zap.Int64("user_id", session.UserID), zap.Error(err))
		}
		return nil
	}
	return user
}

func (g *AccessGate) isSignInPath(path string) bool {
	return path == g.cfg.SignInPath || strings.HasPrefix(path, g.cfg.SignInPath+"/")
}

func (g *AccessGate) bypassed(path string) bool {
	for _, p := range g.cfg.BypassPaths {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path, p) {
				return true
			}
		} else if path == p {
			return true
		}
	}
	return false
}

func isInvalidSession(err error) bool {
	return errors.Is(err, models.ErrSessionNotFound) ||
		errors.Is(err, models.ErrSessionExpired) ||
		errors.Is(err, models.ErrSessionInvalid)
}

// HELPER FUNCS --------------------------------------------

// CurrentUser is a helper function to get the current user from any handler.
// Returns nil if not authenticated.
func CurrentUser(r *http.Request) *models.User {
	return appctx.ContextGetUser(r.Context())
}
