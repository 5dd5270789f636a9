package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCSRF(t *testing.T) {
	handler := CSRF(CSRFConfig{
		Key:        []byte("0123456789abcdef0123456789abcdef"),
		JSONPrefix: "/api/",
	}, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		want        int
	}{
		{name: "safe method", method: http.MethodGet, path: "/", want: http.StatusNoContent},
		{name: "form post without token", method: http.MethodPost, path: "/classify", contentType: "application/x-www-form-urlencoded", want: http.StatusForbidden},
		{name: "json api", method: http.MethodPost, path: "/api/classify", contentType: "application/json; charset=utf-8", want: http.StatusNoContent},
		{name: "form post to api", method: http.MethodPost, path: "/api/classify", contentType: "text/plain", want: http.StatusForbidden},
		{name: "json outside api", method: http.MethodPost, path: "/theme", contentType: "application/json", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Code)
		})
	}
}
