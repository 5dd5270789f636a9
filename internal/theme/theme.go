// Package theme resolves the light/dark preference for each request.
//
// Resolution order: the stored preference (the "theme" cookie), then the
// client's system hint (Sec-CH-Prefers-Color-Scheme), then Light.
package theme

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type Preference string

const (
	Light Preference = "light"
	Dark  Preference = "dark"

	CookieName = "theme"
	HintHeader = "Sec-CH-Prefers-Color-Scheme"
)

// Parse reports whether s names a known preference.
func Parse(s string) (Preference, bool) {
	switch Preference(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light, true
	case Dark:
		return Dark, true
	}
	return "", false
}

// Resolve applies the resolution order to the stored value and the system hint.
func Resolve(stored, hint string) Preference {
	if p, ok := Parse(stored); ok {
		return p
	}
	if p, ok := Parse(hint); ok {
		return p
	}
	return Light
}

// Toggle returns the opposite preference.
func (p Preference) Toggle() Preference {
	if p == Dark {
		return Light
	}
	return Dark
}

func (p Preference) IsDark() bool { return p == Dark }

// FromRequest resolves the preference from the request alone.
func FromRequest(r *http.Request) Preference {
	var stored string
	if c, err := r.Cookie(CookieName); err == nil {
		stored = c.Value
	}
	return Resolve(stored, r.Header.Get(HintHeader))
}

// Store persists p for a year. The cookie is readable by scripts so the page
// can apply it before first paint.
func Store(w http.ResponseWriter, p Preference, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    string(p),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type contextKey struct{}

// Middleware puts the resolved preference in the request context and asks
// supporting browsers to send the system hint on later requests.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Accept-CH", HintHeader)
		w.Header().Add("Vary", HintHeader)
		ctx := context.WithValue(r.Context(), contextKey{}, FromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the preference set by Middleware, or Light.
func FromContext(ctx context.Context) Preference {
	if p, ok := ctx.Value(contextKey{}).(Preference); ok {
		return p
	}
	return Light
}
