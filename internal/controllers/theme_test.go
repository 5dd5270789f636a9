package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rahul4469/speciessight/internal/theme"
)

func TestThemeController_PostTheme(t *testing.T) {
	c := NewThemeController(true)

	t.Run("stores preference and returns to referer", func(t *testing.T) {
		req := formRequest("/theme", url.Values{"theme": {"dark"}})
		req.Header.Set("Referer", "http://example.com/?x=1")
		rr := httptest.NewRecorder()

		c.PostTheme(rr, req)

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/", rr.Header().Get("Location"))
		cookie := findCookie(rr, theme.CookieName)
		require.NotNil(t, cookie)
		assert.Equal(t, "dark", cookie.Value)
	})

	t.Run("foreign referer is ignored", func(t *testing.T) {
		req := formRequest("/theme", url.Values{"theme": {"light"}})
		req.Header.Set("Referer", "https://evil.test/phish")
		rr := httptest.NewRecorder()

		c.PostTheme(rr, req)

		assert.Equal(t, "/", rr.Header().Get("Location"))
	})

	for _, ref := range []string{
		"http://example.com//evil.test/phish",
		`http://example.com/\evil.test/phish`,
	} {
		t.Run("protocol relative path is ignored "+ref, func(t *testing.T) {
			req := formRequest("/theme", url.Values{"theme": {"light"}})
			req.Header.Set("Referer", ref)
			rr := httptest.NewRecorder()

			c.PostTheme(rr, req)

			assert.Equal(t, "/", rr.Header().Get("Location"))
		})
	}

	t.Run("unknown theme", func(t *testing.T) {
		rr := httptest.NewRecorder()
		c.PostTheme(rr, formRequest("/theme", url.Values{"theme": {"sepia"}}))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Nil(t, findCookie(rr, theme.CookieName))
	})
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

func TestHealthController(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		c := NewHealthController(map[string]HealthChecker{
			"database": healthFunc(func(context.Context) error { return nil }),
		}, zap.NewNop())

		rr := httptest.NewRecorder()
		c.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	})

	t.Run("degraded", func(t *testing.T) {
		c := NewHealthController(map[string]HealthChecker{
			"database": healthFunc(func(context.Context) error { return errors.New("down") }),
		}, zap.NewNop())

		rr := httptest.NewRecorder()
		c.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.JSONEq(t, `{"status":"degraded","checks":{"database":"unavailable"}}`, rr.Body.String())
	})
}
