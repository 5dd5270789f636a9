package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/rahul4469/speciessight/internal/middleware"
	"github.com/rahul4469/speciessight/internal/models"
	"github.com/rahul4469/speciessight/internal/views"
	"github.com/rahul4469/speciessight/templates"
)

func TestMain(m *testing.M) {
	views.TemplateFS = templates.FS
	os.Exit(m.Run())
}

var testCookie = middleware.SessionCookie{Name: "speciessight_session"}

// MockSessions is a mock implementation of SessionManager
type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) Create(ctx context.Context, user *models.User) (*models.Session, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessions) Delete(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func newSession(user *models.User) *models.Session {
	return &models.Session{
		ID:        1,
		UserID:    user.ID,
		UserEmail: user.Email,
		Token:     "fresh-token",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
