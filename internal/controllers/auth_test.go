package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rahul4469/speciessight/internal/models"
	"github.com/rahul4469/speciessight/internal/views"
)

// MockAccounts is a mock implementation of Accounts
type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) Create(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccounts) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newAuthController(t *testing.T, accounts Accounts, sessions SessionManager) *AuthController {
	t.Helper()
	tpl, err := views.ParseFS("pages/auth.gohtml")
	require.NoError(t, err)
	providers := []ProviderLink{{ID: "github", Name: "GitHub"}, {ID: "google", Name: "Google"}}
	return NewAuthController(accounts, sessions, testCookie, tpl, providers, zap.NewNop())
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestAuthController_GetAuth(t *testing.T) {
	c := newAuthController(t, new(MockAccounts), new(MockSessions))

	rr := httptest.NewRecorder()
	c.GetAuth(rr, httptest.NewRequest(http.MethodGet, "/auth?error=oauth_denied", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `href="/auth/github"`)
	assert.Contains(t, body, `href="/auth/google"`)
	assert.Contains(t, body, "Sign-in was cancelled.")
}

func TestAuthController_PostSignIn(t *testing.T) {
	user := &models.User{ID: 7, Email: "jane@example.com"}

	t.Run("valid credentials", func(t *testing.T) {
		accounts := new(MockAccounts)
		sessions := new(MockSessions)
		accounts.On("Authenticate", mock.Anything, "jane@example.com", "correct horse").Return(user, nil)
		sessions.On("Create", mock.Anything, user).Return(newSession(user), nil)
		c := newAuthController(t, accounts, sessions)

		rr := httptest.NewRecorder()
		c.PostSignIn(rr, formRequest("/auth/signin", url.Values{"email": {"jane@example.com"}, "password": {"correct horse"}}))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/", rr.Header().Get("Location"))
		cookie := findCookie(rr, testCookie.Name)
		require.NotNil(t, cookie)
		assert.Equal(t, "fresh-token", cookie.Value)
		assert.True(t, cookie.HttpOnly)
	})

	t.Run("wrong password", func(t *testing.T) {
		accounts := new(MockAccounts)
		accounts.On("Authenticate", mock.Anything, "jane@example.com", "wrong").Return(nil, models.ErrInvalidCredentials)
		sessions := new(MockSessions)
		c := newAuthController(t, accounts, sessions)

		rr := httptest.NewRecorder()
		c.PostSignIn(rr, formRequest("/auth/signin", url.Values{"email": {"jane@example.com"}, "password": {"wrong"}}))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid email or password")
		assert.Contains(t, rr.Body.String(), `value="jane@example.com"`)
		assert.Nil(t, findCookie(rr, testCookie.Name))
		sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("missing password", func(t *testing.T) {
		accounts := new(MockAccounts)
		c := newAuthController(t, accounts, new(MockSessions))

		rr := httptest.NewRecorder()
		c.PostSignIn(rr, formRequest("/auth/signin", url.Values{"email": {"jane@example.com"}}))

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		accounts.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("session store down", func(t *testing.T) {
		accounts := new(MockAccounts)
		sessions := new(MockSessions)
		accounts.On("Authenticate", mock.Anything, "jane@example.com", "correct horse").Return(user, nil)
		sessions.On("Create", mock.Anything, user).Return(nil, errors.New("connection refused"))
		c := newAuthController(t, accounts, sessions)

		rr := httptest.NewRecorder()
		c.PostSignIn(rr, formRequest("/auth/signin", url.Values{"email": {"jane@example.com"}, "password": {"correct horse"}}))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Nil(t, findCookie(rr, testCookie.Name))
	})
}

func TestAuthController_PostSignUp(t *testing.T) {
	t.Run("new account", func(t *testing.T) {
		user := &models.User{ID: 8, Email: "new@example.com"}
		accounts := new(MockAccounts)
		sessions := new(MockSessions)
		accounts.On("Create", mock.Anything, "new@example.com", "long enough").Return(user, nil)
		sessions.On("Create", mock.Anything, user).Return(newSession(user), nil)
		c := newAuthController(t, accounts, sessions)

		rr := httptest.NewRecorder()
		c.PostSignUp(rr, formRequest("/auth/signup", url.Values{"email": {"new@example.com"}, "password": {"long enough"}}))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.NotNil(t, findCookie(rr, testCookie.Name))
	})

	t.Run("duplicate email", func(t *testing.T) {
		accounts := new(MockAccounts)
		accounts.On("Create", mock.Anything, "jane@example.com", "long enough").Return(nil, models.ErrEmailAlreadyExists)
		c := newAuthController(t, accounts, new(MockSessions))

		rr := httptest.NewRecorder()
		c.PostSignUp(rr, formRequest("/auth/signup", url.Values{"email": {"jane@example.com"}, "password": {"long enough"}}))

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Contains(t, rr.Body.String(), "already exists")
	})

	t.Run("short password", func(t *testing.T) {
		accounts := new(MockAccounts)
		accounts.On("Create", mock.Anything, "jane@example.com", "short").Return(nil, models.ErrPasswordTooShort)
		c := newAuthController(t, accounts, new(MockSessions))

		rr := httptest.NewRecorder()
		c.PostSignUp(rr, formRequest("/auth/signup", url.Values{"email": {"jane@example.com"}, "password": {"short"}}))

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "Password must be at least 8 characters")
	})
}

func TestAuthController_PostSignOut(t *testing.T) {
	sessions := new(MockSessions)
	sessions.On("Delete", mock.Anything, "current-token").Return(nil)
	c := newAuthController(t, new(MockAccounts), sessions)

	req := httptest.NewRequest(http.MethodPost, "/signout", nil)
	req.AddCookie(&http.Cookie{Name: testCookie.Name, Value: "current-token"})
	rr := httptest.NewRecorder()
	c.PostSignOut(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/auth?msg=signed_out", rr.Header().Get("Location"))
	cookie := findCookie(rr, testCookie.Name)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	sessions.AssertExpectations(t)
}

func TestAuthController_PostSignOut_AlreadyGone(t *testing.T) {
	sessions := new(MockSessions)
	sessions.On("Delete", mock.Anything, "stale-token").Return(models.ErrSessionNotFound)
	c := newAuthController(t, new(MockAccounts), sessions)

	req := httptest.NewRequest(http.MethodPost, "/signout", nil)
	req.AddCookie(&http.Cookie{Name: testCookie.Name, Value: "stale-token"})
	rr := httptest.NewRecorder()
	c.PostSignOut(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.NotNil(t, findCookie(rr, testCookie.Name))
}
