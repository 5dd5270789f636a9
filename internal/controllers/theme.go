package controllers

import (
	"net/http"
	"net/url"

	"github.com/rahul4469/speciessight/internal/theme"
)

// ThemeController persists the light/dark preference.
type ThemeController struct {
	secureCookies bool
}

func NewThemeController(secureCookies bool) *ThemeController {
	return &ThemeController{secureCookies: secureCookies}
}

// PostTheme stores the submitted preference and sends the user back to
// the page they came from.
// POST /theme
func (c *ThemeController) PostTheme(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	pref, ok := theme.Parse(r.FormValue("theme"))
	if !ok {
		http.Error(w, "theme must be light or dark", http.StatusBadRequest)
		return
	}

	theme.Store(w, pref, c.secureCookies)
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

// backTo returns the same-origin path of the Referer, or "/".
func backTo(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return "/"
	}
	if ref.Path[0] != '/' || (len(ref.Path) > 1 && (ref.Path[1] == '/' || ref.Path[1] == '\\')) {
		return "/"
	}
	return ref.Path
}
